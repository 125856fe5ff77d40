package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
)

type attendanceRepository interface {
	BulkCreate(ctx context.Context, records []models.Attendance) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error)
}

// AttendanceEntry is one row of a daily register submission.
type AttendanceEntry struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required,oneof=present absent"`
	Comment   *string                 `json:"comment"`
}

// RecordAttendanceRequest submits a register for one day.
type RecordAttendanceRequest struct {
	SubjectID *string           `json:"subject_id"`
	Date      time.Time         `json:"date" validate:"required"`
	Entries   []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceService manages the daily register.
type AttendanceService struct {
	repo      attendanceRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceRepository, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, validator: validate, logger: logger}
}

// Record stores a register submission stamped with the recording teacher.
func (s *AttendanceService) Record(ctx context.Context, teacherID string, req RecordAttendanceRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	records := make([]models.Attendance, 0, len(req.Entries))
	for _, entry := range req.Entries {
		records = append(records, models.Attendance{
			StudentID: entry.StudentID,
			SubjectID: req.SubjectID,
			TeacherID: teacherID,
			Date:      req.Date,
			Status:    entry.Status,
			Comment:   entry.Comment,
		})
	}
	if err := s.repo.BulkCreate(ctx, records); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attendance")
	}
	return len(records), nil
}

// List returns register entries matching the filter.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}
