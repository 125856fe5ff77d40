package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/uzcoder03/maktab/internal/models"
	"github.com/uzcoder03/maktab/internal/repository"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
	"github.com/uzcoder03/maktab/pkg/export"
	"github.com/uzcoder03/maktab/pkg/jobs"
	"github.com/uzcoder03/maktab/pkg/storage"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type debtorLister interface {
	List(ctx context.Context) ([]models.Debtor, error)
}

type reportResultRepository interface {
	List(ctx context.Context, filter models.TestResultFilter) ([]models.TestResult, error)
}

// ReportRequest describes a report the caller wants generated.
type ReportRequest struct {
	Type     models.ReportType   `json:"type" validate:"required"`
	Grade    string              `json:"grade"`
	ForMonth string              `json:"for_month"`
	Format   models.ReportFormat `json:"format"`
}

// ReportStatusResponse mirrors one job's lifecycle to the client.
type ReportStatusResponse struct {
	ID           string              `json:"id"`
	Type         models.ReportType   `json:"type"`
	Status       models.ReportStatus `json:"status"`
	DownloadURL  *string             `json:"download_url,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
}

// ReportDownload resolves a signed token into a readable file.
type ReportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
}

// ReportService generates financial and exam reports asynchronously.
// Requests become persisted jobs, workers render the files into local
// storage, and downloads go through expiring signed tokens.
type ReportService struct {
	repo     reportJobStore
	queue    jobDispatcher
	debtors  debtorLister
	students billingStudentRepository
	payments ledgerPaymentRepository
	results  reportResultRepository
	store    *storage.Archive
	signer   *storage.DownloadSigner
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
	retain   time.Duration
}

// NewReportService constructs a ReportService.
func NewReportService(repo reportJobStore, debtors debtorLister, students billingStudentRepository, payments ledgerPaymentRepository, results reportResultRepository, store *storage.Archive, signer *storage.DownloadSigner, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:     repo,
		debtors:  debtors,
		students: students,
		payments: payments,
		results:  results,
		store:    store,
		signer:   signer,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
		retain:   24 * time.Hour,
	}
}

// SetQueue wires the dispatcher after construction; the queue handler
// needs the service, so the two reference each other.
func (s *ReportService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// CreateJob persists a report job and dispatches it to the workers.
func (s *ReportService) CreateJob(ctx context.Context, actorID string, req ReportRequest) (*ReportStatusResponse, error) {
	switch req.Type {
	case models.ReportTypeDebtors, models.ReportTypeSettlements, models.ReportTypeResults:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown report type")
	}
	format := req.Format
	if format == "" {
		format = models.ReportFormatPDF
	}
	if format != models.ReportFormatPDF && format != models.ReportFormatCSV {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be pdf or csv")
	}

	job := &models.ReportJob{
		Type:      req.Type,
		Params:    models.ReportJobParams{Grade: req.Grade, ForMonth: req.ForMonth, Format: format},
		Status:    models.ReportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		s.logger.Error("failed to enqueue report job", zap.String("job_id", job.ID), zap.Error(err))
	}
	return s.statusOf(job), nil
}

// GetStatus returns the lifecycle state of a job.
func (s *ReportService) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*ReportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if role != models.RoleAdmin && job.CreatedBy != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}
	return s.statusOf(job), nil
}

// ResolveDownload validates a signed token and opens the report file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, _, err := s.signer.Verify(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}
	if job.Status != models.ReportStatusFinished || job.ResultPath == nil || *job.ResultPath != relPath {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "report is not ready")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	contentType := "application/pdf"
	if job.Params.Format == models.ReportFormatCSV {
		contentType = "text/csv"
	}
	return &ReportDownload{File: file, Filename: relPath, ContentType: contentType}, nil
}

// Process is the queue handler rendering one report job.
func (s *ReportService) Process(ctx context.Context, job jobs.Job) error {
	record, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", job.ID, err)
	}
	if record.Status == models.ReportStatusFinished {
		return nil
	}

	processing := models.ReportStatusProcessing
	if err := s.repo.Update(ctx, record.ID, repository.UpdateReportJobParams{Status: &processing}); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}

	dataset, title, err := s.buildDataset(ctx, record)
	if err != nil {
		s.fail(ctx, record.ID, err)
		return err
	}

	var payload []byte
	ext := "pdf"
	if record.Params.Format == models.ReportFormatCSV {
		payload, err = s.csv.Render(*dataset)
		ext = "csv"
	} else {
		payload, err = s.pdf.Render(*dataset, title)
	}
	if err != nil {
		s.fail(ctx, record.ID, err)
		return err
	}

	filename := fmt.Sprintf("%s-%s.%s", record.Type, record.ID, ext)
	if err := s.store.Save(filename, payload); err != nil {
		s.fail(ctx, record.ID, err)
		return err
	}

	finished := models.ReportStatusFinished
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, record.ID, repository.UpdateReportJobParams{Status: &finished, ResultPath: &filename, FinishedAt: &now}); err != nil {
		return fmt.Errorf("mark job finished: %w", err)
	}
	s.logger.Info("report rendered", zap.String("job_id", record.ID), zap.String("file", filename))
	return nil
}

// RecoverPendingJobs re-dispatches jobs left queued by a previous run.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	queued, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Error("failed to recover queued report jobs", zap.Error(err))
		return
	}
	for _, job := range queued {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Error("failed to requeue report job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup periodically removes report files past their retention.
func (s *ReportService) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				old, err := s.repo.ListFinishedBefore(ctx, time.Now().Add(-s.retain), 50)
				if err != nil {
					s.logger.Warn("report cleanup listing failed", zap.Error(err))
					continue
				}
				for _, job := range old {
					if job.ResultPath == nil {
						continue
					}
					if err := s.store.Delete(*job.ResultPath); err != nil {
						s.logger.Warn("report cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
					}
				}
				// sweep files orphaned by deleted job rows
				if removed, err := s.store.RemoveOlderThan(s.retain); err != nil {
					s.logger.Warn("report archive sweep failed", zap.Error(err))
				} else if removed > 0 {
					s.logger.Info("report archive swept", zap.Int("removed", removed))
				}
			}
		}
	}()
}

func (s *ReportService) buildDataset(ctx context.Context, job *models.ReportJob) (*export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeDebtors:
		debtors, err := s.debtors.List(ctx)
		if err != nil {
			return nil, "", err
		}
		rows := make([]map[string]string, 0, len(debtors))
		for _, d := range debtors {
			rows = append(rows, map[string]string{
				"ID":     d.Code,
				"Ism":    d.FullName(),
				"Sinf":   d.Grade,
				"Qarz":   strconv.FormatInt(-d.Balance, 10),
				"Muddat": d.DeadlineText,
			})
		}
		return &export.Dataset{Headers: []string{"ID", "Ism", "Sinf", "Qarz", "Muddat"}, Rows: rows}, "Qarzdorlar ro'yxati", nil

	case models.ReportTypeSettlements:
		students, err := s.students.ListBillable(ctx, job.Params.Grade)
		if err != nil {
			return nil, "", err
		}
		rows := make([]map[string]string, 0, len(students))
		for _, st := range students {
			settlements, err := s.payments.MonthSettlements(ctx, st.ID)
			if err != nil {
				return nil, "", err
			}
			for _, m := range settlements {
				if job.Params.ForMonth != "" && m.ForMonth != job.Params.ForMonth {
					continue
				}
				rows = append(rows, map[string]string{
					"ID":         st.Code,
					"Ism":        st.FullName(),
					"Oy":         m.ForMonth,
					"Hisoblandi": strconv.FormatInt(m.Charged, 10),
					"To'landi":   strconv.FormatInt(m.Paid, 10),
					"Qoldiq":     strconv.FormatInt(m.Remaining(), 10),
				})
			}
		}
		return &export.Dataset{Headers: []string{"ID", "Ism", "Oy", "Hisoblandi", "To'landi", "Qoldiq"}, Rows: rows}, "Oylik hisob-kitob", nil

	case models.ReportTypeResults:
		results, err := s.results.List(ctx, models.TestResultFilter{})
		if err != nil {
			return nil, "", err
		}
		rows := make([]map[string]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, map[string]string{
				"Test":     r.TestID,
				"O'quvchi": r.StudentID,
				"Ball":     strconv.Itoa(r.Score),
				"Holat":    string(r.Status),
				"Sana":     r.Date.Format("2006-01-02"),
			})
		}
		return &export.Dataset{Headers: []string{"Test", "O'quvchi", "Ball", "Holat", "Sana"}, Rows: rows}, "Imtihon natijalari", nil
	}
	return nil, "", fmt.Errorf("unknown report type %q", job.Type)
}

func (s *ReportService) fail(ctx context.Context, id string, cause error) {
	failed := models.ReportStatusFailed
	msg := cause.Error()
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, id, repository.UpdateReportJobParams{Status: &failed, ErrorMessage: &msg, FinishedAt: &now}); err != nil {
		s.logger.Error("failed to mark report job failed", zap.String("job_id", id), zap.Error(err))
	}
}

func (s *ReportService) statusOf(job *models.ReportJob) *ReportStatusResponse {
	resp := &ReportStatusResponse{
		ID:           job.ID,
		Type:         job.Type,
		Status:       job.Status,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		FinishedAt:   job.FinishedAt,
	}
	if job.Status == models.ReportStatusFinished && job.ResultPath != nil && s.signer != nil {
		if url, _, err := s.signer.Sign(job.ID, *job.ResultPath); err == nil {
			resp.DownloadURL = &url
		} else {
			s.logger.Warn("failed to sign download url", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	return resp
}
