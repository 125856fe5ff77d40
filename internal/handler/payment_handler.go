package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uzcoder03/maktab/internal/service"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
	"github.com/uzcoder03/maktab/pkg/response"
)

// PaymentHandler exposes the payment ledger and billing endpoints.
type PaymentHandler struct {
	ledger  *service.LedgerService
	billing *service.BillingService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(ledger *service.LedgerService, billing *service.BillingService) *PaymentHandler {
	return &PaymentHandler{ledger: ledger, billing: billing}
}

// Record godoc
// @Summary Record a payment or charge
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.RecordPaymentRequest true "Ledger entry"
// @Success 201 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}

	payment, err := h.ledger.Record(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// History godoc
// @Summary Student payment history
// @Tags Payments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/payments [get]
func (h *PaymentHandler) History(c *gin.Context) {
	payments, err := h.ledger.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Settlements godoc
// @Summary Per-month charge and payment totals for a student
// @Tags Payments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/settlements [get]
func (h *PaymentHandler) Settlements(c *gin.Context) {
	settlements, err := h.ledger.Settlements(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settlements, nil)
}

// VerifyBalance godoc
// @Summary Recompute a student balance from the ledger
// @Tags Payments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/balance/verify [get]
func (h *PaymentHandler) VerifyBalance(c *gin.Context) {
	ok, computed, err := h.ledger.VerifyBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"consistent": ok, "computed_balance": computed}, nil)
}

// Receipt godoc
// @Summary Download a PDF receipt for a payment
// @Tags Payments
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Param paymentId path string true "Payment ID"
// @Success 200 {file} binary
// @Router /students/{id}/payments/{paymentId}/receipt [get]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	data, err := h.ledger.Receipt(c.Request.Context(), c.Param("id"), c.Param("paymentId"), claims.Username)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="kvitansiya.pdf"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// BulkCharge godoc
// @Summary Charge monthly fees for a billing month
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.BulkChargeRequest true "Billing month"
// @Success 200 {object} response.Envelope
// @Router /payments/bulk-charge [post]
func (h *PaymentHandler) BulkCharge(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BulkChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk charge payload"))
		return
	}

	result, err := h.billing.BulkCharge(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
