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

type mockExamRecordRepo struct {
	records []models.ExamRecord
}

func (m *mockExamRecordRepo) BulkCreate(ctx context.Context, records []models.ExamRecord) error {
	m.records = append(m.records, records...)
	return nil
}

func (m *mockExamRecordRepo) List(ctx context.Context, filter models.ExamRecordFilter) ([]models.ExamRecord, error) {
	out := make([]models.ExamRecord, 0, len(m.records))
	for _, r := range m.records {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func TestExamRecordServiceRecordBatch(t *testing.T) {
	repo := &mockExamRecordRepo{}
	svc := NewExamRecordService(repo, nil, nil)

	count, err := svc.Record(context.Background(), RecordExamScoresRequest{
		SubjectID: "sub1",
		ExamName:  "Chorak imtihoni",
		Date:      time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC),
		Entries: []ExamScoreEntry{
			{StudentID: "s1", Score: 87},
			{StudentID: "s2", Score: 64},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, repo.records, 2)
	assert.Equal(t, "Chorak imtihoni", repo.records[0].ExamName)
	assert.Equal(t, 87, repo.records[0].Score)
}

func TestExamRecordServiceRejectsOutOfRangeScore(t *testing.T) {
	svc := NewExamRecordService(&mockExamRecordRepo{}, nil, nil)

	_, err := svc.Record(context.Background(), RecordExamScoresRequest{
		SubjectID: "sub1",
		ExamName:  "Chorak imtihoni",
		Date:      time.Now(),
		Entries:   []ExamScoreEntry{{StudentID: "s1", Score: 120}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExamRecordServiceListFiltersByStudent(t *testing.T) {
	repo := &mockExamRecordRepo{records: []models.ExamRecord{
		{ID: "e1", StudentID: "s1", SubjectID: "sub1", ExamName: "Yarim yillik", Score: 90},
		{ID: "e2", StudentID: "s2", SubjectID: "sub1", ExamName: "Yarim yillik", Score: 70},
	}}
	svc := NewExamRecordService(repo, nil, nil)

	records, err := svc.List(context.Background(), models.ExamRecordFilter{StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "s1", records[0].StudentID)
}
