package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzcoder03/maktab/internal/models"
)

func newPaymentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryRecordTransactionIncome(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(sqlmock.AnyArg(), "s1", int64(500000), "income", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET balance = balance + $2, updated_at = $3 WHERE id = $1")).
		WithArgs("s1", int64(500000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.RecordTransaction(context.Background(), &models.Payment{StudentID: "s1", Amount: 500000, Type: models.PaymentIncome})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryRecordTransactionChargeNegates(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	forMonth := "2026-09"
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(sqlmock.AnyArg(), "s1", int64(800000), "charge", forMonth, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET balance = balance + $2, updated_at = $3 WHERE id = $1")).
		WithArgs("s1", int64(-800000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.RecordTransaction(context.Background(), &models.Payment{StudentID: "s1", Amount: 800000, Type: models.PaymentCharge, ForMonth: &forMonth})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryRecordTransactionMissingStudent(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(sqlmock.AnyArg(), "missing", int64(100), "income", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET balance = balance + $2, updated_at = $3 WHERE id = $1")).
		WithArgs("missing", int64(100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.RecordTransaction(context.Background(), &models.Payment{StudentID: "missing", Amount: 100, Type: models.PaymentIncome})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryHasCharge(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM payments WHERE student_id = $1 AND type = $2 AND for_month = $3 LIMIT 1")).
		WithArgs("s1", models.PaymentCharge, "2026-09").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.HasCharge(context.Background(), "s1", "2026-09")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM payments WHERE student_id = $1 AND type = $2 AND for_month = $3 LIMIT 1")).
		WithArgs("s1", models.PaymentCharge, "2026-10").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.HasCharge(context.Background(), "s1", "2026-10")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryMonthSettlements(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{"for_month", "charged", "paid"}).
		AddRow("2026-09", int64(800000), int64(500000)).
		AddRow("2026-08", int64(800000), int64(800000))
	mock.ExpectQuery("SELECT for_month").
		WithArgs("s1").
		WillReturnRows(rows)

	settlements, err := repo.MonthSettlements(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, settlements, 2)
	assert.Equal(t, int64(300000), settlements[0].Remaining())
	assert.False(t, settlements[0].FullyPaid())
	assert.True(t, settlements[1].FullyPaid())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "amount", "type", "for_month", "date", "comment", "created_at"}).
		AddRow("p1", "s1", int64(500000), "income", nil, time.Now(), nil, time.Now())
	mock.ExpectQuery("SELECT id, student_id, amount, type, for_month, date, comment, created_at").
		WithArgs("s1").
		WillReturnRows(rows)

	payments, err := repo.ListByStudent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	assert.Equal(t, models.PaymentIncome, payments[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}
