package models

import (
	"time"

	"github.com/lib/pq"
)

// Question is one multiple-choice entry in a test's question bank.
// Options keep their import order; CorrectAnswer indexes into them.
type Question struct {
	ID            string         `db:"id" json:"id"`
	TestID        string         `db:"test_id" json:"test_id"`
	Position      int            `db:"position" json:"position"`
	Text          string         `db:"text" json:"text"`
	Options       pq.StringArray `db:"options" json:"options"`
	CorrectAnswer int            `db:"correct_answer" json:"correct_answer"`
}

// Test is an immutable question bank committed as a single unit.
type Test struct {
	ID               string     `db:"id" json:"id"`
	Title            string     `db:"title" json:"title"`
	SubjectID        string     `db:"subject_id" json:"subject_id"`
	Grade            string     `db:"grade" json:"grade"`
	TotalTimeLimit   int        `db:"total_time_limit" json:"total_time_limit"`
	AntiCheatEnabled bool       `db:"anti_cheat_enabled" json:"anti_cheat_enabled"`
	Active           bool       `db:"active" json:"active"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	Questions        []Question `json:"questions,omitempty"`
}

// TestResultStatus is the terminal outcome of one attempt.
type TestResultStatus string

const (
	ResultPassed  TestResultStatus = "passed"
	ResultFailed  TestResultStatus = "failed"
	ResultCheated TestResultStatus = "cheated"
)

// TestResult records one finished attempt per (test, student) pair.
// A cheated result may be deleted by staff to permit a retake.
type TestResult struct {
	ID        string           `db:"id" json:"id"`
	TestID    string           `db:"test_id" json:"test_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Score     int              `db:"score" json:"score"`
	Status    TestResultStatus `db:"status" json:"status"`
	Date      time.Time        `db:"date" json:"date"`
}

// TestFilter scopes test bank queries.
type TestFilter struct {
	Grade  string
	Active *bool
}

// TestResultFilter scopes attempt queries.
type TestResultFilter struct {
	TestID    string
	StudentID string
}
