package models

import "time"

// ExamRecord is a score from an exam held on paper, entered by staff
// after grading. Online proctored attempts are tracked separately as
// test results.
type ExamRecord struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	ExamName  string    `db:"exam_name" json:"exam_name"`
	Date      time.Time `db:"date" json:"date"`
	Score     int       `db:"score" json:"score"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ExamRecordFilter scopes offline exam score queries.
type ExamRecordFilter struct {
	StudentID string
	SubjectID string
}
