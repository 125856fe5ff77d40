package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uzcoder03/maktab/internal/models"
)

// PaymentRepository manages the append-only payment ledger. Every
// balance mutation goes through RecordTransaction; the students table
// balance column is only ever written as the signed-sum side effect of
// inserting a ledger entry.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// RecordTransaction inserts the payment and adjusts the student balance
// atomically within one database transaction.
func (r *PaymentRepository) RecordTransaction(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.Date.IsZero() {
		payment.Date = now
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO payments (id, student_id, amount, type, for_month, date, comment, created_at)
        VALUES (:id, :student_id, :amount, :type, :for_month, :date, :comment, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, payment); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	delta := payment.Type.Sign() * payment.Amount
	const update = `UPDATE students SET balance = balance + $2, updated_at = $3 WHERE id = $1`
	res, err := tx.ExecContext(ctx, update, payment.StudentID, delta, now)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// ListByStudent returns the student's ledger newest first.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	const query = `SELECT id, student_id, amount, type, for_month, date, comment, created_at
        FROM payments WHERE student_id = $1 ORDER BY date DESC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// HasCharge reports whether a charge already exists for the student and
// billing month. The bulk charge generator uses this for idempotence.
func (r *PaymentRepository) HasCharge(ctx context.Context, studentID, forMonth string) (bool, error) {
	const query = `SELECT 1 FROM payments WHERE student_id = $1 AND type = $2 AND for_month = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, models.PaymentCharge, forMonth); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check charge: %w", err)
	}
	return true, nil
}

// MonthSettlements aggregates charges and incomes per billing month for
// one student, most recent month first.
func (r *PaymentRepository) MonthSettlements(ctx context.Context, studentID string) ([]models.MonthSettlement, error) {
	const query = `SELECT for_month,
        COALESCE(SUM(CASE WHEN type = 'charge' THEN amount ELSE 0 END), 0) AS charged,
        COALESCE(SUM(CASE WHEN type = 'income' THEN amount ELSE 0 END), 0) AS paid
        FROM payments WHERE student_id = $1 AND for_month IS NOT NULL
        GROUP BY for_month ORDER BY for_month DESC`
	var settlements []models.MonthSettlement
	if err := r.db.SelectContext(ctx, &settlements, query, studentID); err != nil {
		return nil, fmt.Errorf("month settlements: %w", err)
	}
	return settlements, nil
}

// SignedSum recomputes the balance from the ledger. Used by integrity
// checks; the stored balance must always match it.
func (r *PaymentRepository) SignedSum(ctx context.Context, studentID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(CASE WHEN type = 'income' THEN amount ELSE -amount END), 0)
        FROM payments WHERE student_id = $1`
	var sum int64
	if err := r.db.GetContext(ctx, &sum, query, studentID); err != nil {
		return 0, fmt.Errorf("signed sum: %w", err)
	}
	return sum, nil
}
