package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
)

type mockHomeworkRepo struct {
	entries map[string]models.Homework
}

func homeworkKey(e models.Homework) string {
	return e.StudentID + "|" + e.SubjectID + "|" + e.Date.Format("2006-01-02")
}

func (m *mockHomeworkRepo) BulkUpsert(ctx context.Context, entries []models.Homework) error {
	if m.entries == nil {
		m.entries = make(map[string]models.Homework)
	}
	for _, e := range entries {
		m.entries[homeworkKey(e)] = e
	}
	return nil
}

func (m *mockHomeworkRepo) List(ctx context.Context, filter models.HomeworkFilter) ([]models.Homework, error) {
	out := make([]models.Homework, 0, len(m.entries))
	for _, e := range m.entries {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func TestHomeworkServiceRecordStampsTeacher(t *testing.T) {
	repo := &mockHomeworkRepo{}
	svc := NewHomeworkService(repo, nil, nil)

	count, err := svc.Record(context.Background(), "teacher-1", RecordHomeworkRequest{
		SubjectID: "sub1",
		Date:      time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		Entries: []HomeworkEntry{
			{StudentID: "s1", Status: models.HomeworkDone},
			{StudentID: "s2", Status: models.HomeworkNotDone},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, repo.entries, 2)
	for _, e := range repo.entries {
		assert.Equal(t, "teacher-1", e.TeacherID)
	}
}

func TestHomeworkServiceResubmitReplacesSameDay(t *testing.T) {
	repo := &mockHomeworkRepo{}
	svc := NewHomeworkService(repo, nil, nil)
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Record(context.Background(), "teacher-1", RecordHomeworkRequest{
		SubjectID: "sub1", Date: day,
		Entries: []HomeworkEntry{{StudentID: "s1", Status: models.HomeworkNotDone}},
	})
	require.NoError(t, err)

	// the student brings the homework later the same day
	_, err = svc.Record(context.Background(), "teacher-1", RecordHomeworkRequest{
		SubjectID: "sub1", Date: day,
		Entries: []HomeworkEntry{{StudentID: "s1", Status: models.HomeworkDone}},
	})
	require.NoError(t, err)

	require.Len(t, repo.entries, 1)
	entries, err := svc.List(context.Background(), models.HomeworkFilter{StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.HomeworkDone, entries[0].Status)
}

func TestHomeworkServiceRecordValidatesStatus(t *testing.T) {
	svc := NewHomeworkService(&mockHomeworkRepo{}, nil, nil)

	_, err := svc.Record(context.Background(), "teacher-1", RecordHomeworkRequest{
		SubjectID: "sub1",
		Date:      time.Now(),
		Entries:   []HomeworkEntry{{StudentID: "s1", Status: "late"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
