package models

import "time"

// HomeworkStatus marks whether a student turned in the day's homework.
type HomeworkStatus string

const (
	HomeworkDone    HomeworkStatus = "done"
	HomeworkNotDone HomeworkStatus = "not_done"
)

// Homework is one per-student homework check. At most one row exists
// per (student, subject, date); re-submitting replaces the old status.
type Homework struct {
	ID        string         `db:"id" json:"id"`
	StudentID string         `db:"student_id" json:"student_id"`
	SubjectID string         `db:"subject_id" json:"subject_id"`
	TeacherID string         `db:"teacher_id" json:"teacher_id"`
	Date      time.Time      `db:"date" json:"date"`
	Status    HomeworkStatus `db:"status" json:"status"`
	Comment   *string        `db:"comment" json:"comment,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// HomeworkFilter scopes homework queries.
type HomeworkFilter struct {
	StudentID string
	SubjectID string
	Date      *time.Time
}
