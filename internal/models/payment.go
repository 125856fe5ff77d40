package models

import "time"

// PaymentType discriminates ledger entries: income credits the student
// balance, charge debits it.
type PaymentType string

const (
	PaymentIncome PaymentType = "income"
	PaymentCharge PaymentType = "charge"
)

// Valid reports whether the type is one of the known discriminators.
func (t PaymentType) Valid() bool {
	return t == PaymentIncome || t == PaymentCharge
}

// Sign returns the balance multiplier for the type: +1 for income,
// -1 for charge.
func (t PaymentType) Sign() int64 {
	if t == PaymentCharge {
		return -1
	}
	return 1
}

// Payment is one append-only ledger entry belonging to a student.
// The student balance equals the signed sum of all entries.
type Payment struct {
	ID        string      `db:"id" json:"id"`
	StudentID string      `db:"student_id" json:"student_id"`
	Amount    int64       `db:"amount" json:"amount"`
	Type      PaymentType `db:"type" json:"type"`
	ForMonth  *string     `db:"for_month" json:"for_month,omitempty"`
	Date      time.Time   `db:"date" json:"date"`
	Comment   *string     `db:"comment" json:"comment,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// MonthSettlement aggregates the charges and incomes tagged with one
// billing month. Settlement status is derived, never stored.
type MonthSettlement struct {
	ForMonth string `db:"for_month" json:"for_month"`
	Charged  int64  `db:"charged" json:"charged"`
	Paid     int64  `db:"paid" json:"paid"`
}

// Remaining is the still-owed amount for the month.
func (m MonthSettlement) Remaining() int64 {
	return m.Charged - m.Paid
}

// FullyPaid reports whether the month is settled. A month with no
// charges is never considered paid.
func (m MonthSettlement) FullyPaid() bool {
	return m.Charged > 0 && m.Paid >= m.Charged
}

// BulkChargeResult summarises one bulk charge run.
type BulkChargeResult struct {
	ForMonth string `json:"for_month"`
	Grade    string `json:"grade"`
	Charged  int    `json:"charged"`
	Skipped  int    `json:"skipped"`
}
