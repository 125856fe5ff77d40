package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzcoder03/maktab/internal/models"
)

type mockDebtorStudents struct {
	students []models.Student
}

func (m *mockDebtorStudents) ListDebtors(ctx context.Context) ([]models.Student, error) {
	return m.students, nil
}

func TestDebtorServiceDeadline(t *testing.T) {
	svc := NewDebtorService(&mockDebtorStudents{}, 4, nil)
	registration := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	deadline := svc.Deadline(registration)
	assert.Equal(t, time.Date(2026, 9, 5, 10, 0, 0, 0, time.UTC), deadline)
}

func TestDebtorServiceExpiredAfterGracePeriod(t *testing.T) {
	svc := NewDebtorService(&mockDebtorStudents{}, 4, nil)
	now := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	// registered five days ago, one day past the four day grace period
	registration := now.AddDate(0, 0, -5)
	assert.LessOrEqual(t, svc.DaysLeft(registration), 0)
	assert.Equal(t, "MUDDATI O'TGAN", svc.DeadlineText(registration))
}

func TestDebtorServiceCountdownText(t *testing.T) {
	svc := NewDebtorService(&mockDebtorStudents{}, 4, nil)
	now := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	// registered yesterday, three full days of grace remain
	registration := now.AddDate(0, 0, -1)
	assert.Equal(t, 3, svc.DaysLeft(registration))
	assert.Equal(t, "3 kun qoldi", svc.DeadlineText(registration))
}

func TestDebtorServiceExactDeadlineBoundary(t *testing.T) {
	svc := NewDebtorService(&mockDebtorStudents{}, 4, nil)
	now := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	registration := now.AddDate(0, 0, -4)
	assert.Equal(t, 0, svc.DaysLeft(registration))
	assert.Equal(t, "MUDDATI O'TGAN", svc.DeadlineText(registration))
}

func TestDebtorServiceListAnnotates(t *testing.T) {
	now := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	students := &mockDebtorStudents{students: []models.Student{
		{ID: "s1", Code: "ST-001", Balance: -800000, RegistrationDate: now.AddDate(0, 0, -10)},
		{ID: "s2", Code: "ST-002", Balance: -100000, RegistrationDate: now.AddDate(0, 0, -2)},
	}}
	svc := NewDebtorService(students, 4, nil)
	svc.now = func() time.Time { return now }

	debtors, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, debtors, 2)

	assert.True(t, debtors[0].Expired)
	assert.Equal(t, "MUDDATI O'TGAN", debtors[0].DeadlineText)

	assert.False(t, debtors[1].Expired)
	assert.Equal(t, 2, debtors[1].DaysLeft)
	assert.Equal(t, "2 kun qoldi", debtors[1].DeadlineText)
}
