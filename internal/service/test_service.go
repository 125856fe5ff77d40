package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
	"github.com/uzcoder03/maktab/pkg/spreadsheet"
)

type testRepository interface {
	Create(ctx context.Context, test *models.Test) error
	List(ctx context.Context, filter models.TestFilter) ([]models.Test, error)
	FindByID(ctx context.Context, id string) (*models.Test, error)
}

type testCacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Spreadsheet column headers for the question import template.
var questionImportHeaders = []string{"Savol", "A", "B", "C", "D", "To'g'ri Javob"}

// QuestionDraft is one parsed spreadsheet row shown in the import preview.
type QuestionDraft struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
}

// CreateTestRequest commits a test with its full question bank.
type CreateTestRequest struct {
	Title            string          `json:"title" validate:"required"`
	SubjectID        string          `json:"subject_id" validate:"required"`
	Grade            string          `json:"grade" validate:"required"`
	TotalTimeLimit   int             `json:"total_time_limit" validate:"required,gt=0"`
	AntiCheatEnabled bool            `json:"anti_cheat_enabled"`
	Questions        []QuestionDraft `json:"questions" validate:"required,min=1,dive"`
}

// TestService manages the test bank. Tests are committed whole and kept
// immutable afterwards; listings for exam-takers are cached in Redis.
type TestService struct {
	repo      testRepository
	cache     testCacheRepository
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTestService constructs a TestService.
func NewTestService(repo testRepository, cache testCacheRepository, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *TestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &TestService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Create commits a new test and its questions as one unit.
func (s *TestService) Create(ctx context.Context, req CreateTestRequest) (*models.Test, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid test payload")
	}

	questions := make([]models.Question, 0, len(req.Questions))
	for i, draft := range req.Questions {
		if strings.TrimSpace(draft.Text) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d has no text", i+1))
		}
		if len(draft.Options) < 2 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d needs at least two options", i+1))
		}
		if draft.CorrectAnswer < 0 || draft.CorrectAnswer >= len(draft.Options) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d has an out-of-range answer", i+1))
		}
		questions = append(questions, models.Question{
			Text:          draft.Text,
			Options:       pq.StringArray(draft.Options),
			CorrectAnswer: draft.CorrectAnswer,
		})
	}

	test := &models.Test{
		Title:            req.Title,
		SubjectID:        req.SubjectID,
		Grade:            req.Grade,
		TotalTimeLimit:   req.TotalTimeLimit,
		AntiCheatEnabled: req.AntiCheatEnabled,
		Active:           true,
		Questions:        questions,
	}
	if err := s.repo.Create(ctx, test); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create test")
	}

	s.invalidate(ctx, test.Grade)
	s.logger.Info("test committed",
		zap.String("test_id", test.ID),
		zap.String("grade", test.Grade),
		zap.Int("questions", len(test.Questions)))
	return test, nil
}

// List returns tests for a grade, served from cache when possible.
func (s *TestService) List(ctx context.Context, filter models.TestFilter) ([]models.Test, error) {
	key := s.cacheKey(filter)
	if s.cache != nil && key != "" {
		var cached []models.Test
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("test cache read failed", zap.Error(err))
		}
	}

	tests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tests")
	}

	if s.cache != nil && key != "" {
		if err := s.cache.Set(ctx, key, tests, s.cacheTTL); err != nil {
			s.logger.Warn("test cache write failed", zap.Error(err))
		}
	}
	return tests, nil
}

// Get returns one test with its question bank.
func (s *TestService) Get(ctx context.Context, id string) (*models.Test, error) {
	test, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "test not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load test")
	}
	return test, nil
}

// Template produces the xlsx file used to author question banks offline.
func (s *TestService) Template() ([]byte, error) {
	sample := spreadsheet.Row{
		"Savol": "O'zbekiston poytaxti qaysi shahar?",
		"A":     "Samarqand", "B": "Toshkent", "C": "Buxoro", "D": "Xiva",
		"To'g'ri Javob": "B",
	}
	data, err := spreadsheet.Build("Savollar", questionImportHeaders, []spreadsheet.Row{sample})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build template")
	}
	return data, nil
}

// ParseUpload turns an uploaded xlsx into question drafts for preview.
// The answer letter maps A through D onto option indexes; anything else
// falls back to the first option.
func (s *TestService) ParseUpload(file io.Reader) ([]QuestionDraft, error) {
	rows, err := spreadsheet.ReadFirstSheet(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not parse spreadsheet")
	}

	drafts := make([]QuestionDraft, 0, len(rows))
	for _, row := range rows {
		text := strings.TrimSpace(row["Savol"])
		if text == "" {
			continue
		}
		// columns left blank in the sheet are dropped, keeping order
		options := make([]string, 0, 4)
		for _, col := range []string{"A", "B", "C", "D"} {
			if value := strings.TrimSpace(row[col]); value != "" {
				options = append(options, value)
			}
		}
		drafts = append(drafts, QuestionDraft{
			Text:          text,
			Options:       options,
			CorrectAnswer: answerIndex(row["To'g'ri Javob"]),
		})
	}
	return drafts, nil
}

func answerIndex(letter string) int {
	switch strings.ToUpper(strings.TrimSpace(letter)) {
	case "A":
		return 0
	case "B":
		return 1
	case "C":
		return 2
	case "D":
		return 3
	default:
		return 0
	}
}

func (s *TestService) cacheKey(filter models.TestFilter) string {
	if filter.Grade == "" {
		return ""
	}
	key := "tests:" + filter.Grade
	if filter.Active != nil {
		key = fmt.Sprintf("%s:active:%t", key, *filter.Active)
	}
	return key
}

func (s *TestService) invalidate(ctx context.Context, grade string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "tests:"+grade+"*"); err != nil {
		s.logger.Warn("test cache invalidation failed", zap.Error(err))
	}
}
