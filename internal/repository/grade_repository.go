package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uzcoder03/maktab/internal/models"
)

// GradeRepository manages daily grade book entries.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs a GradeRepository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Create inserts one grade entry. The exam subsystem's anti-cheat
// penalty arrives through this path as well.
func (r *GradeRepository) Create(ctx context.Context, grade *models.DailyGrade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	if grade.Date.IsZero() {
		grade.Date = now
	}
	const query = `INSERT INTO daily_grades (id, student_id, subject_id, teacher_id, date, grade, comment, created_at)
        VALUES (:id, :student_id, :subject_id, :teacher_id, :date, :grade, :comment, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("create daily grade: %w", err)
	}
	return nil
}

// BulkCreate inserts a batch of grade entries in one transaction.
func (r *GradeRepository) BulkCreate(ctx context.Context, grades []models.DailyGrade) error {
	if len(grades) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO daily_grades (id, student_id, subject_id, teacher_id, date, grade, comment, created_at)
        VALUES (:id, :student_id, :subject_id, :teacher_id, :date, :grade, :comment, :created_at)`
	now := time.Now().UTC()
	for i := range grades {
		g := &grades[i]
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		if g.CreatedAt.IsZero() {
			g.CreatedAt = now
		}
		if g.Date.IsZero() {
			g.Date = now
		}
		if _, err := tx.NamedExecContext(ctx, query, g); err != nil {
			return fmt.Errorf("insert daily grade %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade tx: %w", err)
	}
	return nil
}

// List returns grade book entries matching the filter.
func (r *GradeRepository) List(ctx context.Context, filter models.DailyGradeFilter) ([]models.DailyGrade, error) {
	query := `SELECT id, student_id, subject_id, teacher_id, date, grade, comment, created_at FROM daily_grades WHERE 1=1`
	var args []interface{}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		query += fmt.Sprintf(" AND subject_id = $%d", len(args)+1)
		args = append(args, filter.SubjectID)
	}
	if filter.Date != nil {
		query += fmt.Sprintf(" AND date = $%d", len(args)+1)
		args = append(args, *filter.Date)
	}
	query += " ORDER BY date DESC"
	var grades []models.DailyGrade
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list daily grades: %w", err)
	}
	return grades, nil
}
