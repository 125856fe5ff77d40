package models

import "time"

// AttendanceStatus marks a student present or absent for a day.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// Attendance is one per-student register entry, stamped with the
// recording teacher.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	SubjectID *string          `db:"subject_id" json:"subject_id,omitempty"`
	TeacherID string           `db:"teacher_id" json:"teacher_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Comment   *string          `db:"comment" json:"comment,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// AttendanceFilter scopes register queries.
type AttendanceFilter struct {
	StudentID string
	SubjectID string
	Date      *time.Time
}
