package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uzcoder03/maktab/internal/models"
)

// ExamRecordRepository manages offline exam scores.
type ExamRecordRepository struct {
	db *sqlx.DB
}

// NewExamRecordRepository constructs an ExamRecordRepository.
func NewExamRecordRepository(db *sqlx.DB) *ExamRecordRepository {
	return &ExamRecordRepository{db: db}
}

// BulkCreate inserts a batch of exam scores in one transaction.
func (r *ExamRecordRepository) BulkCreate(ctx context.Context, records []models.ExamRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin exam record tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO exam_records (id, student_id, subject_id, exam_name, date, score, created_at)
        VALUES (:id, :student_id, :subject_id, :exam_name, :date, :score, :created_at)`
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		if rec.Date.IsZero() {
			rec.Date = now
		}
		if _, err := tx.NamedExecContext(ctx, query, rec); err != nil {
			return fmt.Errorf("insert exam record %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit exam record tx: %w", err)
	}
	return nil
}

// List returns exam scores matching the filter.
func (r *ExamRecordRepository) List(ctx context.Context, filter models.ExamRecordFilter) ([]models.ExamRecord, error) {
	query := `SELECT id, student_id, subject_id, exam_name, date, score, created_at FROM exam_records WHERE 1=1`
	var args []interface{}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		query += fmt.Sprintf(" AND subject_id = $%d", len(args)+1)
		args = append(args, filter.SubjectID)
	}
	query += " ORDER BY date DESC"
	var records []models.ExamRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list exam records: %w", err)
	}
	return records, nil
}
