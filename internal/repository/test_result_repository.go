package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uzcoder03/maktab/internal/models"
)

// TestResultRepository persists finished exam attempts.
type TestResultRepository struct {
	db *sqlx.DB
}

// NewTestResultRepository constructs a TestResultRepository.
func NewTestResultRepository(db *sqlx.DB) *TestResultRepository {
	return &TestResultRepository{db: db}
}

// Create inserts one attempt record.
func (r *TestResultRepository) Create(ctx context.Context, result *models.TestResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.Date.IsZero() {
		result.Date = time.Now().UTC()
	}
	const query = `INSERT INTO test_results (id, test_id, student_id, score, status, date)
        VALUES (:id, :test_id, :student_id, :score, :status, :date)`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("create test result: %w", err)
	}
	return nil
}

// List returns attempts matching the filter, newest first.
func (r *TestResultRepository) List(ctx context.Context, filter models.TestResultFilter) ([]models.TestResult, error) {
	query := `SELECT id, test_id, student_id, score, status, date FROM test_results WHERE 1=1`
	var args []interface{}
	if filter.TestID != "" {
		query += fmt.Sprintf(" AND test_id = $%d", len(args)+1)
		args = append(args, filter.TestID)
	}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	query += " ORDER BY date DESC"
	var results []models.TestResult
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("list test results: %w", err)
	}
	return results, nil
}

// FindByID fetches one attempt.
func (r *TestResultRepository) FindByID(ctx context.Context, id string) (*models.TestResult, error) {
	const query = `SELECT id, test_id, student_id, score, status, date FROM test_results WHERE id = $1`
	var result models.TestResult
	if err := r.db.GetContext(ctx, &result, query, id); err != nil {
		return nil, err
	}
	return &result, nil
}

// FindByTestAndStudent returns the attempt for one (test, student)
// pair. The exam service uses it to gate retakes.
func (r *TestResultRepository) FindByTestAndStudent(ctx context.Context, testID, studentID string) (*models.TestResult, error) {
	const query = `SELECT id, test_id, student_id, score, status, date FROM test_results
        WHERE test_id = $1 AND student_id = $2 LIMIT 1`
	var result models.TestResult
	if err := r.db.GetContext(ctx, &result, query, testID, studentID); err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes an attempt, re-opening eligibility for a retake.
func (r *TestResultRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM test_results WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete test result: %w", err)
	}
	return nil
}
