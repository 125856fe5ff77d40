package service

import (
	"context"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
)

type billingStudentRepository interface {
	ListBillable(ctx context.Context, grade string) ([]models.Student, error)
}

type billingPaymentRepository interface {
	HasCharge(ctx context.Context, studentID, forMonth string) (bool, error)
	RecordTransaction(ctx context.Context, payment *models.Payment) error
}

// BulkChargeRequest triggers monthly fee charges for a billing month.
type BulkChargeRequest struct {
	ForMonth string `json:"for_month" validate:"required"`
	Grade    string `json:"grade"`
}

var forMonthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// BillingService generates the monthly charge obligations. Running it
// twice for the same month charges nobody twice: each (student, month)
// pair gets at most one charge entry.
type BillingService struct {
	students  billingStudentRepository
	payments  billingPaymentRepository
	audit     ledgerAuditRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBillingService constructs a BillingService.
func NewBillingService(students billingStudentRepository, payments billingPaymentRepository, audit ledgerAuditRepository, validate *validator.Validate, logger *zap.Logger) *BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &BillingService{students: students, payments: payments, audit: audit, validator: validate, logger: logger}
}

// BulkCharge charges every billable student their monthly fee for the
// given month, skipping students already charged for it.
func (s *BillingService) BulkCharge(ctx context.Context, actorID string, req BulkChargeRequest) (*models.BulkChargeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk charge payload")
	}
	if !forMonthPattern.MatchString(req.ForMonth) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "for_month must use the YYYY-MM format")
	}

	students, err := s.students.ListBillable(ctx, req.Grade)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billable students")
	}

	result := &models.BulkChargeResult{ForMonth: req.ForMonth, Grade: req.Grade}
	comment := fmt.Sprintf("%s oyi uchun oylik to'lov majburiyati", req.ForMonth)
	for i := range students {
		student := &students[i]

		exists, err := s.payments.HasCharge(ctx, student.ID, req.ForMonth)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing charge")
		}
		if exists {
			result.Skipped++
			continue
		}

		forMonth := req.ForMonth
		entryComment := comment
		payment := &models.Payment{
			StudentID: student.ID,
			Amount:    student.MonthlyFee,
			Type:      models.PaymentCharge,
			ForMonth:  &forMonth,
			Comment:   &entryComment,
		}
		if err := s.payments.RecordTransaction(ctx, payment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status,
				fmt.Sprintf("failed to charge student %s", student.Code))
		}
		result.Charged++
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:   &actorID,
		Action:   models.AuditActionBulkCharge,
		Resource: "payments",
		NewValues: []byte(fmt.Sprintf(`{"for_month":%q,"charged":%d,"skipped":%d}`,
			req.ForMonth, result.Charged, result.Skipped)),
	}); err != nil {
		s.logger.Warn("failed to record bulk charge audit log", zap.Error(err))
	}

	s.logger.Info("bulk charge finished",
		zap.String("for_month", req.ForMonth),
		zap.String("grade", req.Grade),
		zap.Int("charged", result.Charged),
		zap.Int("skipped", result.Skipped))
	return result, nil
}
