package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
	"github.com/uzcoder03/maktab/pkg/export"
	"github.com/uzcoder03/maktab/pkg/spreadsheet"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

// Spreadsheet column headers for the student import template.
var studentImportHeaders = []string{"Ism", "Familiya", "ID", "Sinf", "Ota-ona", "Telefon", "Tolov", "Manzil", "Yashash"}

// CreateStudentRequest holds payload for registering students.
type CreateStudentRequest struct {
	Code         string              `json:"code" validate:"required"`
	FirstName    string              `json:"first_name" validate:"required"`
	LastName     string              `json:"last_name" validate:"required"`
	Grade        string              `json:"grade" validate:"required"`
	StudentPhone *string             `json:"student_phone"`
	ParentName   *string             `json:"parent_name"`
	ParentPhone  *string             `json:"parent_phone"`
	MonthlyFee   int64               `json:"monthly_fee" validate:"gte=0"`
	LivingStatus models.LivingStatus `json:"living_status"`
	Address      *string             `json:"address"`
	HasFood      bool                `json:"has_food"`
	HasTransport bool                `json:"has_transport"`
	Comment      *string             `json:"comment"`
}

// UpdateStudentRequest holds payload for updating students. Balance is
// absent on purpose; it only moves through the ledger.
type UpdateStudentRequest struct {
	Code         string              `json:"code" validate:"required"`
	FirstName    string              `json:"first_name" validate:"required"`
	LastName     string              `json:"last_name" validate:"required"`
	Grade        string              `json:"grade" validate:"required"`
	StudentPhone *string             `json:"student_phone"`
	ParentName   *string             `json:"parent_name"`
	ParentPhone  *string             `json:"parent_phone"`
	MonthlyFee   int64               `json:"monthly_fee" validate:"gte=0"`
	LivingStatus models.LivingStatus `json:"living_status"`
	Address      *string             `json:"address"`
	HasFood      bool                `json:"has_food"`
	HasTransport bool                `json:"has_transport"`
	Comment      *string             `json:"comment"`
}

// StudentService handles student registry use-cases.
type StudentService struct {
	repo      studentRepository
	csv       *export.CSVExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, csv *export.CSVExporter, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	return &StudentService{repo: repo, csv: csv, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.repo.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student code already used")
	}

	living := req.LivingStatus
	if living == "" {
		living = models.LivingHome
	}
	student := &models.Student{
		Code:         req.Code,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Grade:        req.Grade,
		StudentPhone: req.StudentPhone,
		ParentName:   req.ParentName,
		ParentPhone:  req.ParentPhone,
		MonthlyFee:   req.MonthlyFee,
		LivingStatus: living,
		Address:      req.Address,
		HasFood:      req.HasFood,
		HasTransport: req.HasTransport,
		Comment:      req.Comment,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	exists, err := s.repo.ExistsByCode(ctx, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student code already used")
	}

	student.Code = req.Code
	student.FirstName = req.FirstName
	student.LastName = req.LastName
	student.Grade = req.Grade
	student.StudentPhone = req.StudentPhone
	student.ParentName = req.ParentName
	student.ParentPhone = req.ParentPhone
	student.MonthlyFee = req.MonthlyFee
	if req.LivingStatus != "" {
		student.LivingStatus = req.LivingStatus
	}
	student.Address = req.Address
	student.HasFood = req.HasFood
	student.HasTransport = req.HasTransport
	student.Comment = req.Comment

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes a student record.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

// Template produces the xlsx file teachers fill in for bulk imports.
func (s *StudentService) Template() ([]byte, error) {
	sample := spreadsheet.Row{
		"Ism": "Ali", "Familiya": "Valiyev", "ID": "ST-001", "Sinf": "9-A",
		"Ota-ona": "Vali aka", "Telefon": "+998901234567", "Tolov": "800000",
		"Manzil": "Toshkent", "Yashash": "Uy",
	}
	data, err := spreadsheet.Build("O'quvchilar", studentImportHeaders, []spreadsheet.Row{sample})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build template")
	}
	return data, nil
}

// Import reads an xlsx upload and registers a student per valid row.
// Rows whose code already exists are skipped, malformed rows are
// reported with their sheet position.
func (s *StudentService) Import(ctx context.Context, file io.Reader) (*models.StudentImportResult, error) {
	rows, err := spreadsheet.ReadFirstSheet(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not parse spreadsheet")
	}

	result := &models.StudentImportResult{}
	for i, row := range rows {
		sheetRow := i + 2 // account for the header row

		firstName := strings.TrimSpace(row["Ism"])
		lastName := strings.TrimSpace(row["Familiya"])
		code := strings.TrimSpace(row["ID"])
		grade := strings.TrimSpace(row["Sinf"])
		if firstName == "" || lastName == "" || code == "" || grade == "" {
			result.Errors = append(result.Errors, models.ImportRowError{Row: sheetRow, Message: "Ism, Familiya, ID va Sinf talab qilinadi"})
			continue
		}

		exists, err := s.repo.ExistsByCode(ctx, code, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student code")
		}
		if exists {
			result.Skipped++
			continue
		}

		var fee int64
		if raw := strings.TrimSpace(row["Tolov"]); raw != "" {
			fee, err = strconv.ParseInt(strings.ReplaceAll(raw, " ", ""), 10, 64)
			if err != nil || fee < 0 {
				result.Errors = append(result.Errors, models.ImportRowError{Row: sheetRow, Message: fmt.Sprintf("Tolov qiymati noto'g'ri: %q", raw)})
				continue
			}
		}

		living := models.LivingHome
		if strings.EqualFold(strings.TrimSpace(row["Yashash"]), "Yotoqxona") {
			living = models.LivingDormitory
		}

		student := &models.Student{
			Code:         code,
			FirstName:    firstName,
			LastName:     lastName,
			Grade:        grade,
			MonthlyFee:   fee,
			LivingStatus: living,
		}
		if parent := strings.TrimSpace(row["Ota-ona"]); parent != "" {
			student.ParentName = &parent
		}
		if phone := strings.TrimSpace(row["Telefon"]); phone != "" {
			student.ParentPhone = &phone
		}
		if address := strings.TrimSpace(row["Manzil"]); address != "" {
			student.Address = &address
		}

		if err := s.repo.Create(ctx, student); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import student")
		}
		result.Created++
	}

	s.logger.Info("student import finished",
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// ExportCSV renders the current registry as CSV for download.
func (s *StudentService) ExportCSV(ctx context.Context, filter models.StudentFilter) ([]byte, error) {
	filter.Page = 1
	filter.PageSize = 200
	var rows []map[string]string
	for {
		students, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
		}
		for _, st := range students {
			row := map[string]string{
				"Ism":      st.FirstName,
				"Familiya": st.LastName,
				"ID":       st.Code,
				"Sinf":     st.Grade,
				"Tolov":    strconv.FormatInt(st.MonthlyFee, 10),
				"Balans":   strconv.FormatInt(st.Balance, 10),
				"Yashash":  "Uy",
			}
			if st.LivingStatus == models.LivingDormitory {
				row["Yashash"] = "Yotoqxona"
			}
			if st.ParentName != nil {
				row["Ota-ona"] = *st.ParentName
			}
			if st.ParentPhone != nil {
				row["Telefon"] = *st.ParentPhone
			}
			if st.Address != nil {
				row["Manzil"] = *st.Address
			}
			rows = append(rows, row)
		}
		if filter.Page*filter.PageSize >= total || len(students) == 0 {
			break
		}
		filter.Page++
	}

	headers := append(append([]string{}, studentImportHeaders...), "Balans")
	data, err := s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}
