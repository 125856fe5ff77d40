package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uzcoder03/maktab/internal/models"
)

// TestRepository persists tests and their question banks. Tests are
// committed as a single unit and never edited afterwards.
type TestRepository struct {
	db *sqlx.DB
}

// NewTestRepository constructs a TestRepository.
func NewTestRepository(db *sqlx.DB) *TestRepository {
	return &TestRepository{db: db}
}

// Create inserts the test and all its questions in one transaction.
func (r *TestRepository) Create(ctx context.Context, test *models.Test) error {
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	if test.CreatedAt.IsZero() {
		test.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin test tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertTest = `INSERT INTO tests (id, title, subject_id, grade, total_time_limit, anti_cheat_enabled, active, created_at)
        VALUES (:id, :title, :subject_id, :grade, :total_time_limit, :anti_cheat_enabled, :active, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertTest, test); err != nil {
		return fmt.Errorf("insert test: %w", err)
	}

	const insertQuestion = `INSERT INTO questions (id, test_id, position, text, options, correct_answer)
        VALUES (:id, :test_id, :position, :text, :options, :correct_answer)`
	for i := range test.Questions {
		q := &test.Questions[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.TestID = test.ID
		q.Position = i
		if _, err := tx.NamedExecContext(ctx, insertQuestion, q); err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit test tx: %w", err)
	}
	return nil
}

// List returns tests matching the filter with questions attached.
func (r *TestRepository) List(ctx context.Context, filter models.TestFilter) ([]models.Test, error) {
	query := `SELECT id, title, subject_id, grade, total_time_limit, anti_cheat_enabled, active, created_at FROM tests WHERE 1=1`
	var args []interface{}
	if filter.Grade != "" {
		query += fmt.Sprintf(" AND grade = $%d", len(args)+1)
		args = append(args, filter.Grade)
	}
	if filter.Active != nil {
		query += fmt.Sprintf(" AND active = $%d", len(args)+1)
		args = append(args, *filter.Active)
	}
	query += " ORDER BY created_at DESC"

	var tests []models.Test
	if err := r.db.SelectContext(ctx, &tests, query, args...); err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}

	for i := range tests {
		questions, err := r.questionsFor(ctx, tests[i].ID)
		if err != nil {
			return nil, err
		}
		tests[i].Questions = questions
	}
	return tests, nil
}

// FindByID fetches one test with its question bank.
func (r *TestRepository) FindByID(ctx context.Context, id string) (*models.Test, error) {
	const query = `SELECT id, title, subject_id, grade, total_time_limit, anti_cheat_enabled, active, created_at FROM tests WHERE id = $1`
	var test models.Test
	if err := r.db.GetContext(ctx, &test, query, id); err != nil {
		return nil, err
	}
	questions, err := r.questionsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	test.Questions = questions
	return &test, nil
}

func (r *TestRepository) questionsFor(ctx context.Context, testID string) ([]models.Question, error) {
	const query = `SELECT id, test_id, position, text, options, correct_answer FROM questions WHERE test_id = $1 ORDER BY position`
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, query, testID); err != nil {
		return nil, fmt.Errorf("load questions for %s: %w", testID, err)
	}
	return questions, nil
}
