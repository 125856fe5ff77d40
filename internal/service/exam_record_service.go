package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
)

type examRecordRepository interface {
	BulkCreate(ctx context.Context, records []models.ExamRecord) error
	List(ctx context.Context, filter models.ExamRecordFilter) ([]models.ExamRecord, error)
}

// ExamScoreEntry is one student's score in a bulk score submission.
type ExamScoreEntry struct {
	StudentID string `json:"student_id" validate:"required"`
	Score     int    `json:"score" validate:"gte=0,lte=100"`
}

// RecordExamScoresRequest submits graded paper-exam scores for one
// subject and date.
type RecordExamScoresRequest struct {
	SubjectID string           `json:"subject_id" validate:"required"`
	ExamName  string           `json:"exam_name" validate:"required"`
	Date      time.Time        `json:"date" validate:"required"`
	Entries   []ExamScoreEntry `json:"entries" validate:"required,min=1,dive"`
}

// ExamRecordService manages offline exam scores. It has no tie to the
// proctored session engine; these rows come straight from staff.
type ExamRecordService struct {
	repo      examRecordRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamRecordService constructs an ExamRecordService.
func NewExamRecordService(repo examRecordRepository, validate *validator.Validate, logger *zap.Logger) *ExamRecordService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamRecordService{repo: repo, validator: validate, logger: logger}
}

// Record stores a batch of scores.
func (s *ExamRecordService) Record(ctx context.Context, req RecordExamScoresRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam scores payload")
	}

	records := make([]models.ExamRecord, 0, len(req.Entries))
	for _, entry := range req.Entries {
		records = append(records, models.ExamRecord{
			StudentID: entry.StudentID,
			SubjectID: req.SubjectID,
			ExamName:  req.ExamName,
			Date:      req.Date,
			Score:     entry.Score,
		})
	}
	if err := s.repo.BulkCreate(ctx, records); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store exam scores")
	}
	return len(records), nil
}

// List returns exam scores matching the filter.
func (s *ExamRecordService) List(ctx context.Context, filter models.ExamRecordFilter) ([]models.ExamRecord, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam scores")
	}
	return records, nil
}
