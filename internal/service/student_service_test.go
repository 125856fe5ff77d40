package service

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
	"github.com/uzcoder03/maktab/pkg/spreadsheet"
)

type mockStudentRepo struct {
	students []models.Student
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	return m.students, len(m.students), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for i := range m.students {
		if m.students[i].ID == id {
			return &m.students[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	for _, s := range m.students {
		if s.Code == code && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = student.Code
	}
	m.students = append(m.students, *student)
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	for i := range m.students {
		if m.students[i].ID == student.ID {
			m.students[i] = *student
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	for i := range m.students {
		if m.students[i].ID == id {
			m.students = append(m.students[:i], m.students[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func TestStudentServiceCreateRejectsDuplicateCode(t *testing.T) {
	repo := &mockStudentRepo{students: []models.Student{{ID: "s1", Code: "ST-001"}}}
	svc := NewStudentService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		Code: "ST-001", FirstName: "Ali", LastName: "Valiyev", Grade: "9-A",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceImportRoundTrip(t *testing.T) {
	payload, err := spreadsheet.Build("O'quvchilar", studentImportHeaders, []spreadsheet.Row{
		{"Ism": "Ali", "Familiya": "Valiyev", "ID": "ST-001", "Sinf": "9-A",
			"Ota-ona": "Vali aka", "Telefon": "+998901234567", "Tolov": "800000",
			"Manzil": "Toshkent", "Yashash": "Yotoqxona"},
		{"Ism": "Lola", "Familiya": "Karimova", "ID": "ST-002", "Sinf": "7-B",
			"Tolov": "600000", "Yashash": "Uy"},
		{"Ism": "Bekzod", "Familiya": "", "ID": "ST-003", "Sinf": "8-A"},
	})
	require.NoError(t, err)

	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, nil, nil, nil)

	result, err := svc.Import(context.Background(), bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 4, result.Errors[0].Row)

	require.Len(t, repo.students, 2)
	first := repo.students[0]
	assert.Equal(t, "ST-001", first.Code)
	assert.Equal(t, int64(800000), first.MonthlyFee)
	assert.Equal(t, models.LivingDormitory, first.LivingStatus)
	require.NotNil(t, first.ParentName)
	assert.Equal(t, "Vali aka", *first.ParentName)

	second := repo.students[1]
	assert.Equal(t, models.LivingHome, second.LivingStatus)
	assert.Nil(t, second.ParentName)
}

func TestStudentServiceImportSkipsExistingCodes(t *testing.T) {
	payload, err := spreadsheet.Build("O'quvchilar", studentImportHeaders, []spreadsheet.Row{
		{"Ism": "Ali", "Familiya": "Valiyev", "ID": "ST-001", "Sinf": "9-A"},
	})
	require.NoError(t, err)

	repo := &mockStudentRepo{students: []models.Student{{ID: "s1", Code: "ST-001"}}}
	svc := NewStudentService(repo, nil, nil, nil)

	result, err := svc.Import(context.Background(), bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, repo.students, 1)
}

func TestStudentServiceExportCSV(t *testing.T) {
	parent := "Vali aka"
	repo := &mockStudentRepo{students: []models.Student{
		{ID: "s1", Code: "ST-001", FirstName: "Ali", LastName: "Valiyev", Grade: "9-A",
			MonthlyFee: 800000, Balance: -800000, LivingStatus: models.LivingDormitory, ParentName: &parent},
	}}
	svc := NewStudentService(repo, nil, nil, nil)

	data, err := svc.ExportCSV(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "ST-001")
	assert.Contains(t, text, "Yotoqxona")
	assert.Contains(t, text, "-800000")
}
