package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uzcoder03/maktab/internal/models"
)

// HomeworkRepository manages homework check entries.
type HomeworkRepository struct {
	db *sqlx.DB
}

// NewHomeworkRepository constructs a HomeworkRepository.
func NewHomeworkRepository(db *sqlx.DB) *HomeworkRepository {
	return &HomeworkRepository{db: db}
}

// BulkUpsert stores a batch of homework checks in one transaction.
// A row already present for the same (student, subject, date) is
// overwritten, so a teacher can correct a submission for the day.
func (r *HomeworkRepository) BulkUpsert(ctx context.Context, entries []models.Homework) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin homework tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO homework (id, student_id, subject_id, teacher_id, date, status, comment, created_at)
        VALUES (:id, :student_id, :subject_id, :teacher_id, :date, :status, :comment, :created_at)
        ON CONFLICT (student_id, subject_id, date)
        DO UPDATE SET teacher_id = EXCLUDED.teacher_id, status = EXCLUDED.status, comment = EXCLUDED.comment`
	now := time.Now().UTC()
	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.Date.IsZero() {
			e.Date = now
		}
		if _, err := tx.NamedExecContext(ctx, query, e); err != nil {
			return fmt.Errorf("upsert homework %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit homework tx: %w", err)
	}
	return nil
}

// List returns homework entries matching the filter.
func (r *HomeworkRepository) List(ctx context.Context, filter models.HomeworkFilter) ([]models.Homework, error) {
	query := `SELECT id, student_id, subject_id, teacher_id, date, status, comment, created_at FROM homework WHERE 1=1`
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
	var entries []models.Homework
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list homework: %w", err)
	}
	return entries, nil
}
