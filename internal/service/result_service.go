package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
)

type resultRepository interface {
	List(ctx context.Context, filter models.TestResultFilter) ([]models.TestResult, error)
	FindByID(ctx context.Context, id string) (*models.TestResult, error)
	Delete(ctx context.Context, id string) error
}

// ResultService exposes recorded attempts and the staff-only reset that
// clears a result so the student may retake the test.
type ResultService struct {
	repo   resultRepository
	audit  ledgerAuditRepository
	logger *zap.Logger
}

// NewResultService constructs a ResultService.
func NewResultService(repo resultRepository, audit ledgerAuditRepository, logger *zap.Logger) *ResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{repo: repo, audit: audit, logger: logger}
}

// List returns recorded attempts matching the filter.
func (s *ResultService) List(ctx context.Context, filter models.TestResultFilter) ([]models.TestResult, error) {
	results, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return results, nil
}

// Reset deletes a recorded attempt, re-opening the test for the student.
func (s *ResultService) Reset(ctx context.Context, actorID, resultID string) error {
	result, err := s.repo.FindByID(ctx, resultID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}

	if err := s.repo.Delete(ctx, resultID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete result")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionResultReset,
		Resource:   "test_results",
		ResourceID: &resultID,
	}); err != nil {
		s.logger.Warn("failed to record result reset audit log", zap.Error(err))
	}

	s.logger.Info("test result reset",
		zap.String("result_id", resultID),
		zap.String("test_id", result.TestID),
		zap.String("student_id", result.StudentID))
	return nil
}
