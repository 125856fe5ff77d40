package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/uzcoder03/maktab/internal/service"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
	"github.com/uzcoder03/maktab/pkg/response"
)

// ExamHandler exposes the proctored exam session endpoints. Every route
// is scoped to the authenticated student owning the session.
type ExamHandler struct {
	exams *service.ExamService
}

// NewExamHandler constructs ExamHandler.
func NewExamHandler(exams *service.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// Start godoc
// @Summary Start or resume an exam session
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body map[string]string true "Test ID"
// @Success 200 {object} response.Envelope
// @Router /exams/start [post]
func (h *ExamHandler) Start(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		TestID string `json:"test_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "test_id required"))
		return
	}

	state, err := h.exams.Start(c.Request.Context(), claims.UserID, payload.TestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// State godoc
// @Summary Current session snapshot
// @Tags Exams
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id} [get]
func (h *ExamHandler) State(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	state, err := h.exams.State(claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Question godoc
// @Summary Fetch one question without its correct answer
// @Tags Exams
// @Produce json
// @Param id path string true "Session ID"
// @Param idx path int true "Question index"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/questions/{idx} [get]
func (h *ExamHandler) Question(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid question index"))
		return
	}

	question, err := h.exams.Question(claims.UserID, c.Param("id"), idx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Answer godoc
// @Summary Record an answer for the current attempt
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body map[string]int true "Question and option index"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/answer [post]
func (h *ExamHandler) Answer(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		QuestionIdx int `json:"question_idx"`
		OptionIdx   int `json:"option_idx"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid answer payload"))
		return
	}

	state, err := h.exams.Answer(c.Request.Context(), claims.UserID, c.Param("id"), payload.QuestionIdx, payload.OptionIdx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Navigate godoc
// @Summary Move the session cursor to another question
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body map[string]int true "Target index"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/navigate [post]
func (h *ExamHandler) Navigate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Idx int `json:"idx"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid navigate payload"))
		return
	}

	state, err := h.exams.Navigate(c.Request.Context(), claims.UserID, c.Param("id"), payload.Idx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Violation godoc
// @Summary Report a proctoring violation
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body map[string]string true "Violation kind"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/violation [post]
func (h *ExamHandler) Violation(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Kind string `json:"kind" binding:"required,oneof=visibility keyboard"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "kind must be visibility or keyboard"))
		return
	}

	state, err := h.exams.Violation(c.Request.Context(), claims.UserID, c.Param("id"), payload.Kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Submit godoc
// @Summary Submit the attempt for scoring
// @Tags Exams
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/submit [post]
func (h *ExamHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.exams.Submit(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
