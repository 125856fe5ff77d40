package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
)

type homeworkRepository interface {
	BulkUpsert(ctx context.Context, entries []models.Homework) error
	List(ctx context.Context, filter models.HomeworkFilter) ([]models.Homework, error)
}

// HomeworkEntry is one student's check in a bulk homework submission.
type HomeworkEntry struct {
	StudentID string                `json:"student_id" validate:"required"`
	Status    models.HomeworkStatus `json:"status" validate:"required,oneof=done not_done"`
	Comment   *string               `json:"comment"`
}

// RecordHomeworkRequest submits homework checks for one subject and
// day. Re-submitting for the same day replaces the earlier checks.
type RecordHomeworkRequest struct {
	SubjectID string          `json:"subject_id" validate:"required"`
	Date      time.Time       `json:"date" validate:"required"`
	Entries   []HomeworkEntry `json:"entries" validate:"required,min=1,dive"`
}

// HomeworkService manages the homework check book.
type HomeworkService struct {
	repo      homeworkRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHomeworkService constructs a HomeworkService.
func NewHomeworkService(repo homeworkRepository, validate *validator.Validate, logger *zap.Logger) *HomeworkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HomeworkService{repo: repo, validator: validate, logger: logger}
}

// Record upserts a batch of checks stamped with the recording teacher.
func (s *HomeworkService) Record(ctx context.Context, teacherID string, req RecordHomeworkRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid homework payload")
	}

	entries := make([]models.Homework, 0, len(req.Entries))
	for _, entry := range req.Entries {
		entries = append(entries, models.Homework{
			StudentID: entry.StudentID,
			SubjectID: req.SubjectID,
			TeacherID: teacherID,
			Date:      req.Date,
			Status:    entry.Status,
			Comment:   entry.Comment,
		})
	}
	if err := s.repo.BulkUpsert(ctx, entries); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store homework")
	}
	return len(entries), nil
}

// List returns homework entries matching the filter.
func (s *HomeworkService) List(ctx context.Context, filter models.HomeworkFilter) ([]models.Homework, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list homework")
	}
	return entries, nil
}
