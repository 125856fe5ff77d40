package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
	"github.com/uzcoder03/maktab/pkg/export"
)

type ledgerPaymentRepository interface {
	RecordTransaction(ctx context.Context, payment *models.Payment) error
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
	MonthSettlements(ctx context.Context, studentID string) ([]models.MonthSettlement, error)
	SignedSum(ctx context.Context, studentID string) (int64, error)
}

type ledgerStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type ledgerAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type receiptRenderer interface {
	RenderReceipt(receipt export.Receipt) ([]byte, error)
}

// RecordPaymentRequest is the payload for appending a ledger entry.
type RecordPaymentRequest struct {
	StudentID string             `json:"student_id" validate:"required"`
	Amount    int64              `json:"amount" validate:"required,gt=0"`
	Type      models.PaymentType `json:"type" validate:"required"`
	ForMonth  *string            `json:"for_month,omitempty"`
	Comment   *string            `json:"comment,omitempty"`
}

// LedgerService owns the student payment ledger. Balances are never set
// directly; they move one signed ledger entry at a time.
type LedgerService struct {
	payments  ledgerPaymentRepository
	students  ledgerStudentRepository
	audit     ledgerAuditRepository
	receipts  receiptRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(payments ledgerPaymentRepository, students ledgerStudentRepository, audit ledgerAuditRepository, receipts receiptRenderer, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LedgerService{payments: payments, students: students, audit: audit, receipts: receipts, validator: validate, logger: logger}
}

// Record validates and appends a ledger entry, adjusting the student
// balance by the signed amount in the same transaction.
func (s *LedgerService) Record(ctx context.Context, actorID string, req RecordPaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !req.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment type must be income or charge")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	payment := &models.Payment{
		StudentID: req.StudentID,
		Amount:    req.Amount,
		Type:      req.Type,
		ForMonth:  req.ForMonth,
		Comment:   req.Comment,
	}
	if err := s.payments.RecordTransaction(ctx, payment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionPaymentRecord,
		Resource:   "payments",
		ResourceID: &payment.ID,
	}); err != nil {
		s.logger.Warn("failed to record payment audit log", zap.Error(err))
	}

	s.logger.Info("ledger entry recorded",
		zap.String("student_id", payment.StudentID),
		zap.String("type", string(payment.Type)),
		zap.Int64("amount", payment.Amount))
	return payment, nil
}

// History returns the student's ledger newest first.
func (s *LedgerService) History(ctx context.Context, studentID string) ([]models.Payment, error) {
	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment history")
	}
	return payments, nil
}

// Settlements returns the per-month charged/paid breakdown for a student.
func (s *LedgerService) Settlements(ctx context.Context, studentID string) ([]models.MonthSettlement, error) {
	settlements, err := s.payments.MonthSettlements(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settlements")
	}
	return settlements, nil
}

// VerifyBalance recomputes the ledger signed sum and compares it to the
// stored balance. A mismatch means the invariant was broken out of band.
func (s *LedgerService) VerifyBalance(ctx context.Context, studentID string) (bool, int64, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, 0, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return false, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	sum, err := s.payments.SignedSum(ctx, studentID)
	if err != nil {
		return false, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recompute balance")
	}
	if sum != student.Balance {
		s.logger.Error("ledger balance mismatch",
			zap.String("student_id", studentID),
			zap.Int64("stored", student.Balance),
			zap.Int64("recomputed", sum))
	}
	return sum == student.Balance, sum, nil
}

// Receipt renders a printable PDF receipt for one ledger entry.
func (s *LedgerService) Receipt(ctx context.Context, studentID, paymentID, operator string) ([]byte, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment history")
	}
	var payment *models.Payment
	for i := range payments {
		if payments[i].ID == paymentID {
			payment = &payments[i]
			break
		}
	}
	if payment == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}
	if payment.Type != models.PaymentIncome {
		return nil, appErrors.Clone(appErrors.ErrValidation, "receipts are issued for income entries only")
	}

	receipt := export.Receipt{
		StudentName: student.FullName(),
		StudentCode: student.Code,
		Grade:       student.Grade,
		Amount:      payment.Amount,
		Operator:    operator,
		IssuedAt:    time.Now(),
	}
	if payment.ForMonth != nil {
		receipt.ForMonth = *payment.ForMonth
	}
	data, err := s.receipts.RenderReceipt(receipt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return data, nil
}
