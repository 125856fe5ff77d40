package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
)

type gradeRepository interface {
	Create(ctx context.Context, grade *models.DailyGrade) error
	BulkCreate(ctx context.Context, grades []models.DailyGrade) error
	List(ctx context.Context, filter models.DailyGradeFilter) ([]models.DailyGrade, error)
}

// GradeEntry is one mark in a bulk grade submission.
type GradeEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	Grade     int     `json:"grade" validate:"gte=0,lte=100"`
	Comment   *string `json:"comment"`
}

// RecordGradesRequest submits marks for one subject and day.
type RecordGradesRequest struct {
	SubjectID string       `json:"subject_id" validate:"required"`
	Date      time.Time    `json:"date" validate:"required"`
	Entries   []GradeEntry `json:"entries" validate:"required,min=1,dive"`
}

// GradeService manages the daily grade book.
type GradeService struct {
	repo      gradeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs a GradeService.
func NewGradeService(repo gradeRepository, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, validator: validate, logger: logger}
}

// Record stores a batch of marks stamped with the recording teacher.
func (s *GradeService) Record(ctx context.Context, teacherID string, req RecordGradesRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grades payload")
	}

	grades := make([]models.DailyGrade, 0, len(req.Entries))
	for _, entry := range req.Entries {
		tid := teacherID
		grades = append(grades, models.DailyGrade{
			StudentID: entry.StudentID,
			SubjectID: req.SubjectID,
			TeacherID: &tid,
			Date:      req.Date,
			Grade:     entry.Grade,
			Comment:   entry.Comment,
		})
	}
	if err := s.repo.BulkCreate(ctx, grades); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store grades")
	}
	return len(grades), nil
}

// List returns grade book entries matching the filter.
func (s *GradeService) List(ctx context.Context, filter models.DailyGradeFilter) ([]models.DailyGrade, error) {
	grades, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}
