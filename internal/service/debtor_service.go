package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
)

type debtorStudentRepository interface {
	ListDebtors(ctx context.Context) ([]models.Student, error)
}

// DebtorService lists students with negative balances and annotates each
// with a payment deadline derived from the registration date.
type DebtorService struct {
	students  debtorStudentRepository
	graceDays int
	now       func() time.Time
	logger    *zap.Logger
}

// NewDebtorService constructs a DebtorService. graceDays is the number
// of days after registration before an unpaid balance counts as overdue.
func NewDebtorService(students debtorStudentRepository, graceDays int, logger *zap.Logger) *DebtorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if graceDays <= 0 {
		graceDays = 4
	}
	return &DebtorService{students: students, graceDays: graceDays, now: time.Now, logger: logger}
}

// Deadline returns the date by which the debt must be settled.
func (s *DebtorService) Deadline(registration time.Time) time.Time {
	return registration.AddDate(0, 0, s.graceDays)
}

// DaysLeft returns the whole days remaining until the deadline, rounding
// partial days up. Zero or negative means the deadline has passed.
func (s *DebtorService) DaysLeft(registration time.Time) int {
	remaining := s.Deadline(registration).Sub(s.now())
	return int(math.Ceil(remaining.Hours() / 24))
}

// DeadlineText renders the countdown label shown next to a debtor.
func (s *DebtorService) DeadlineText(registration time.Time) string {
	days := s.DaysLeft(registration)
	if days <= 0 {
		return "MUDDATI O'TGAN"
	}
	return fmt.Sprintf("%d kun qoldi", days)
}

// List returns every debtor with deadline annotations, most indebted first.
func (s *DebtorService) List(ctx context.Context) ([]models.Debtor, error) {
	students, err := s.students.ListDebtors(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load debtors")
	}

	debtors := make([]models.Debtor, 0, len(students))
	for i := range students {
		student := students[i]
		days := s.DaysLeft(student.RegistrationDate)
		debtors = append(debtors, models.Debtor{
			Student:      student,
			Deadline:     s.Deadline(student.RegistrationDate),
			DaysLeft:     days,
			Expired:      days <= 0,
			DeadlineText: s.DeadlineText(student.RegistrationDate),
		})
	}
	return debtors, nil
}
