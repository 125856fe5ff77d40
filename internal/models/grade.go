package models

import "time"

// DailyGrade is a classroom mark for one student and subject. The
// exam subsystem writes a zero grade here as the anti-cheat penalty.
type DailyGrade struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TeacherID *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Date      time.Time `db:"date" json:"date"`
	Grade     int       `db:"grade" json:"grade"`
	Comment   *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DailyGradeFilter scopes grade book queries.
type DailyGradeFilter struct {
	StudentID string
	SubjectID string
	Date      *time.Time
}
