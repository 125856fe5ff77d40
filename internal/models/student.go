package models

import "time"

// LivingStatus distinguishes day students from dormitory residents.
type LivingStatus string

const (
	LivingHome      LivingStatus = "home"
	LivingDormitory LivingStatus = "dormitory"
)

// Student represents a learner registered in the institution. The
// balance is a signed amount in UZS derived exclusively from ledger
// transactions; a negative balance marks the student as a debtor.
type Student struct {
	ID               string       `db:"id" json:"id"`
	Code             string       `db:"code" json:"code"`
	FirstName        string       `db:"first_name" json:"first_name"`
	LastName         string       `db:"last_name" json:"last_name"`
	Grade            string       `db:"grade" json:"grade"`
	StudentPhone     *string      `db:"student_phone" json:"student_phone,omitempty"`
	ParentName       *string      `db:"parent_name" json:"parent_name,omitempty"`
	ParentPhone      *string      `db:"parent_phone" json:"parent_phone,omitempty"`
	MonthlyFee       int64        `db:"monthly_fee" json:"monthly_fee"`
	Balance          int64        `db:"balance" json:"balance"`
	RegistrationDate time.Time    `db:"registration_date" json:"registration_date"`
	LivingStatus     LivingStatus `db:"living_status" json:"living_status"`
	Address          *string      `db:"address" json:"address,omitempty"`
	HasFood          bool         `db:"has_food" json:"has_food"`
	HasTransport     bool         `db:"has_transport" json:"has_transport"`
	Comment          *string      `db:"comment" json:"comment,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}

// FullName joins the name parts for display and exports.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// IsDebtor reports whether the student owes money.
func (s Student) IsDebtor() bool {
	return s.Balance < 0
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search      string
	Grade       string
	DebtorsOnly bool
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// ImportRowError describes a spreadsheet row that could not be imported.
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// StudentImportResult summarizes a spreadsheet import run.
type StudentImportResult struct {
	Created int              `json:"created"`
	Skipped int              `json:"skipped"`
	Errors  []ImportRowError `json:"errors,omitempty"`
}

// Debtor pairs a student with the computed payment deadline status.
type Debtor struct {
	Student
	Deadline     time.Time `json:"deadline"`
	DaysLeft     int       `json:"days_left"`
	Expired      bool      `json:"expired"`
	DeadlineText string    `json:"deadline_text"`
}
