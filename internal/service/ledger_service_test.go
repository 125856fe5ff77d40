package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
	"github.com/uzcoder03/maktab/pkg/export"
)

type mockLedgerStudents struct {
	student *models.Student
}

func (m *mockLedgerStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if m.student == nil || m.student.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.student, nil
}

type mockLedgerPayments struct {
	mockLedger
}

func (m *mockLedgerPayments) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	var out []models.Payment
	for _, e := range m.entries {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockLedgerPayments) MonthSettlements(ctx context.Context, studentID string) ([]models.MonthSettlement, error) {
	byMonth := map[string]*models.MonthSettlement{}
	var order []string
	for _, e := range m.entries {
		if e.StudentID != studentID || e.ForMonth == nil {
			continue
		}
		s, ok := byMonth[*e.ForMonth]
		if !ok {
			s = &models.MonthSettlement{ForMonth: *e.ForMonth}
			byMonth[*e.ForMonth] = s
			order = append(order, *e.ForMonth)
		}
		if e.Type == models.PaymentCharge {
			s.Charged += e.Amount
		} else {
			s.Paid += e.Amount
		}
	}
	out := make([]models.MonthSettlement, 0, len(order))
	for _, month := range order {
		out = append(out, *byMonth[month])
	}
	return out, nil
}

func (m *mockLedgerPayments) SignedSum(ctx context.Context, studentID string) (int64, error) {
	return m.balances[studentID], nil
}

func TestLedgerServiceRecordIncomeAndCharge(t *testing.T) {
	students := &mockLedgerStudents{student: &models.Student{ID: "s1", Code: "ST-001"}}
	payments := &mockLedgerPayments{}
	svc := NewLedgerService(payments, students, &mockAudit{}, export.NewPDFExporter(), nil, nil)
	ctx := context.Background()

	_, err := svc.Record(ctx, "admin", RecordPaymentRequest{StudentID: "s1", Amount: 500000, Type: models.PaymentIncome})
	require.NoError(t, err)
	_, err = svc.Record(ctx, "admin", RecordPaymentRequest{StudentID: "s1", Amount: 800000, Type: models.PaymentCharge})
	require.NoError(t, err)

	assert.Equal(t, int64(-300000), payments.balances["s1"])
}

func TestLedgerServiceRecordRejectsNonPositiveAmount(t *testing.T) {
	students := &mockLedgerStudents{student: &models.Student{ID: "s1"}}
	svc := NewLedgerService(&mockLedgerPayments{}, students, &mockAudit{}, export.NewPDFExporter(), nil, nil)

	_, err := svc.Record(context.Background(), "admin", RecordPaymentRequest{StudentID: "s1", Amount: 0, Type: models.PaymentIncome})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Record(context.Background(), "admin", RecordPaymentRequest{StudentID: "s1", Amount: -100, Type: models.PaymentIncome})
	require.Error(t, err)
}

func TestLedgerServiceRecordRejectsUnknownType(t *testing.T) {
	students := &mockLedgerStudents{student: &models.Student{ID: "s1"}}
	svc := NewLedgerService(&mockLedgerPayments{}, students, &mockAudit{}, export.NewPDFExporter(), nil, nil)

	_, err := svc.Record(context.Background(), "admin", RecordPaymentRequest{StudentID: "s1", Amount: 100, Type: "refund"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLedgerServiceRecordUnknownStudent(t *testing.T) {
	svc := NewLedgerService(&mockLedgerPayments{}, &mockLedgerStudents{}, &mockAudit{}, export.NewPDFExporter(), nil, nil)

	_, err := svc.Record(context.Background(), "admin", RecordPaymentRequest{StudentID: "missing", Amount: 100, Type: models.PaymentIncome})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLedgerServiceSettlements(t *testing.T) {
	students := &mockLedgerStudents{student: &models.Student{ID: "s1"}}
	payments := &mockLedgerPayments{}
	svc := NewLedgerService(payments, students, &mockAudit{}, export.NewPDFExporter(), nil, nil)
	ctx := context.Background()

	month := "2026-09"
	_, err := svc.Record(ctx, "admin", RecordPaymentRequest{StudentID: "s1", Amount: 800000, Type: models.PaymentCharge, ForMonth: &month})
	require.NoError(t, err)
	_, err = svc.Record(ctx, "admin", RecordPaymentRequest{StudentID: "s1", Amount: 500000, Type: models.PaymentIncome, ForMonth: &month})
	require.NoError(t, err)

	settlements, err := svc.Settlements(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, settlements, 1)
	assert.Equal(t, int64(300000), settlements[0].Remaining())
	assert.False(t, settlements[0].FullyPaid())
}

func TestLedgerServiceVerifyBalance(t *testing.T) {
	students := &mockLedgerStudents{student: &models.Student{ID: "s1", Balance: -300000}}
	payments := &mockLedgerPayments{}
	payments.balances = map[string]int64{"s1": -300000}
	svc := NewLedgerService(payments, students, &mockAudit{}, export.NewPDFExporter(), nil, nil)

	ok, sum, err := svc.VerifyBalance(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(-300000), sum)

	students.student.Balance = 0
	ok, _, err = svc.VerifyBalance(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerServiceReceiptOnlyForIncome(t *testing.T) {
	students := &mockLedgerStudents{student: &models.Student{ID: "s1", Code: "ST-001", FirstName: "Ali", LastName: "Valiyev", Grade: "9-A"}}
	payments := &mockLedgerPayments{}
	svc := NewLedgerService(payments, students, &mockAudit{}, export.NewPDFExporter(), nil, nil)
	ctx := context.Background()

	charge, err := svc.Record(ctx, "admin", RecordPaymentRequest{StudentID: "s1", Amount: 800000, Type: models.PaymentCharge})
	require.NoError(t, err)
	income, err := svc.Record(ctx, "admin", RecordPaymentRequest{StudentID: "s1", Amount: 500000, Type: models.PaymentIncome})
	require.NoError(t, err)

	_, err = svc.Receipt(ctx, "s1", charge.ID, "Kassir")
	require.Error(t, err)

	data, err := svc.Receipt(ctx, "s1", income.ID, "Kassir")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
