package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
)

type mockBillingStudents struct {
	students []models.Student
}

func (m *mockBillingStudents) ListBillable(ctx context.Context, grade string) ([]models.Student, error) {
	if grade == "" || grade == "All" {
		return m.students, nil
	}
	var out []models.Student
	for _, s := range m.students {
		if s.Grade == grade {
			out = append(out, s)
		}
	}
	return out, nil
}

// mockLedger applies every transaction to an in-memory ledger so that
// idempotence across runs can be observed.
type mockLedger struct {
	entries  []models.Payment
	balances map[string]int64
}

func (m *mockLedger) HasCharge(ctx context.Context, studentID, forMonth string) (bool, error) {
	for _, e := range m.entries {
		if e.StudentID == studentID && e.Type == models.PaymentCharge && e.ForMonth != nil && *e.ForMonth == forMonth {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLedger) RecordTransaction(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = fmt.Sprintf("p%d", len(m.entries)+1)
	}
	if m.balances == nil {
		m.balances = make(map[string]int64)
	}
	m.entries = append(m.entries, *payment)
	m.balances[payment.StudentID] += payment.Type.Sign() * payment.Amount
	return nil
}

type mockAudit struct {
	logs []*models.AuditLog
}

func (m *mockAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func TestBillingServiceBulkChargeIsIdempotent(t *testing.T) {
	students := &mockBillingStudents{students: []models.Student{
		{ID: "s1", Code: "ST-001", Grade: "9-A", MonthlyFee: 800000},
		{ID: "s2", Code: "ST-002", Grade: "9-A", MonthlyFee: 600000},
	}}
	ledger := &mockLedger{}
	svc := NewBillingService(students, ledger, &mockAudit{}, nil, nil)

	first, err := svc.BulkCharge(context.Background(), "admin", BulkChargeRequest{ForMonth: "2026-09"})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Charged)
	assert.Equal(t, 0, first.Skipped)
	assert.Equal(t, int64(-800000), ledger.balances["s1"])
	assert.Equal(t, int64(-600000), ledger.balances["s2"])

	second, err := svc.BulkCharge(context.Background(), "admin", BulkChargeRequest{ForMonth: "2026-09"})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Charged)
	assert.Equal(t, 2, second.Skipped)
	assert.Len(t, ledger.entries, 2)
	assert.Equal(t, int64(-800000), ledger.balances["s1"])
}

func TestBillingServiceBulkChargeCommentAndMonth(t *testing.T) {
	students := &mockBillingStudents{students: []models.Student{
		{ID: "s1", Code: "ST-001", Grade: "9-A", MonthlyFee: 500000},
	}}
	ledger := &mockLedger{}
	svc := NewBillingService(students, ledger, &mockAudit{}, nil, nil)

	_, err := svc.BulkCharge(context.Background(), "admin", BulkChargeRequest{ForMonth: "2026-09"})
	require.NoError(t, err)
	require.Len(t, ledger.entries, 1)
	entry := ledger.entries[0]
	assert.Equal(t, models.PaymentCharge, entry.Type)
	require.NotNil(t, entry.ForMonth)
	assert.Equal(t, "2026-09", *entry.ForMonth)
	require.NotNil(t, entry.Comment)
	assert.Equal(t, "2026-09 oyi uchun oylik to'lov majburiyati", *entry.Comment)
}

func TestBillingServiceBulkChargeByGrade(t *testing.T) {
	students := &mockBillingStudents{students: []models.Student{
		{ID: "s1", Grade: "9-A", MonthlyFee: 500000},
		{ID: "s2", Grade: "7-B", MonthlyFee: 500000},
	}}
	ledger := &mockLedger{}
	svc := NewBillingService(students, ledger, &mockAudit{}, nil, nil)

	result, err := svc.BulkCharge(context.Background(), "admin", BulkChargeRequest{ForMonth: "2026-09", Grade: "9-A"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Charged)
	assert.Len(t, ledger.entries, 1)
	assert.Equal(t, "s1", ledger.entries[0].StudentID)
}

func TestBillingServiceBulkChargeRejectsBadMonth(t *testing.T) {
	svc := NewBillingService(&mockBillingStudents{}, &mockLedger{}, &mockAudit{}, nil, nil)

	_, err := svc.BulkCharge(context.Background(), "admin", BulkChargeRequest{ForMonth: "sentabr"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
