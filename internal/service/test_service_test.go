package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
	"github.com/uzcoder03/maktab/pkg/spreadsheet"
)

type mockTestRepo struct {
	tests     []models.Test
	listCalls int
}

func (m *mockTestRepo) Create(ctx context.Context, test *models.Test) error {
	if test.ID == "" {
		test.ID = "t1"
	}
	m.tests = append(m.tests, *test)
	return nil
}

func (m *mockTestRepo) List(ctx context.Context, filter models.TestFilter) ([]models.Test, error) {
	m.listCalls++
	return m.tests, nil
}

func (m *mockTestRepo) FindByID(ctx context.Context, id string) (*models.Test, error) {
	for i := range m.tests {
		if m.tests[i].ID == id {
			return &m.tests[i], nil
		}
	}
	return nil, appErrors.ErrNotFound
}

type mockTestCache struct {
	store map[string][]byte
}

func (m *mockTestCache) Get(ctx context.Context, key string, dest interface{}) error {
	if _, ok := m.store[key]; !ok {
		return appErrors.ErrCacheMiss
	}
	return nil
}

func (m *mockTestCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.store == nil {
		m.store = make(map[string][]byte)
	}
	m.store[key] = []byte("cached")
	return nil
}

func (m *mockTestCache) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range m.store {
		delete(m.store, key)
	}
	return nil
}

func TestTestServiceParseUploadLetterMapping(t *testing.T) {
	payload, err := spreadsheet.Build("Savollar", questionImportHeaders, []spreadsheet.Row{
		{"Savol": "q1", "A": "1", "B": "2", "C": "3", "D": "4", "To'g'ri Javob": "a"},
		{"Savol": "q2", "A": "1", "B": "2", "C": "3", "D": "4", "To'g'ri Javob": "D"},
		{"Savol": "q3", "A": "1", "B": "2", "C": "3", "D": "4", "To'g'ri Javob": "X"},
		{"Savol": "", "A": "1", "B": "2", "C": "3", "D": "4", "To'g'ri Javob": "B"},
	})
	require.NoError(t, err)

	svc := NewTestService(&mockTestRepo{}, nil, 0, nil, nil)
	drafts, err := svc.ParseUpload(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, drafts, 3)

	assert.Equal(t, 0, drafts[0].CorrectAnswer)
	assert.Equal(t, 3, drafts[1].CorrectAnswer)
	// unrecognised letters fall back to the first option
	assert.Equal(t, 0, drafts[2].CorrectAnswer)
}

func TestTestServiceParseUploadDropsBlankOptionColumns(t *testing.T) {
	payload, err := spreadsheet.Build("Savollar", questionImportHeaders, []spreadsheet.Row{
		{"Savol": "To'g'rimi?", "A": "Ha", "B": "Yo'q", "To'g'ri Javob": "A"},
		{"Savol": "q2", "A": "1", "B": "2", "C": "3", "To'g'ri Javob": "C"},
	})
	require.NoError(t, err)

	svc := NewTestService(&mockTestRepo{}, nil, 0, nil, nil)
	drafts, err := svc.ParseUpload(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	assert.Equal(t, []string{"Ha", "Yo'q"}, drafts[0].Options)
	assert.Equal(t, []string{"1", "2", "3"}, drafts[1].Options)
	assert.Equal(t, 2, drafts[1].CorrectAnswer)
}

func TestTestServiceCreateValidatesAnswers(t *testing.T) {
	svc := NewTestService(&mockTestRepo{}, nil, 0, nil, nil)

	_, err := svc.Create(context.Background(), CreateTestRequest{
		Title: "Algebra", SubjectID: "sub1", Grade: "9-A", TotalTimeLimit: 30,
		Questions: []QuestionDraft{
			{Text: "q1", Options: []string{"a", "b"}, CorrectAnswer: 5},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTestServiceCreateAssignsPositionsAndInvalidates(t *testing.T) {
	repo := &mockTestRepo{}
	cache := &mockTestCache{store: map[string][]byte{"tests:9-A": []byte("stale")}}
	svc := NewTestService(repo, cache, time.Minute, nil, nil)

	test, err := svc.Create(context.Background(), CreateTestRequest{
		Title: "Algebra", SubjectID: "sub1", Grade: "9-A", TotalTimeLimit: 30,
		Questions: []QuestionDraft{
			{Text: "q1", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 1},
			{Text: "q2", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 0},
		},
	})
	require.NoError(t, err)
	assert.True(t, test.Active)
	assert.Len(t, test.Questions, 2)
	assert.Empty(t, cache.store, "creating a test flushes cached listings for the grade")
}

func TestTestServiceListPopulatesCache(t *testing.T) {
	repo := &mockTestRepo{tests: []models.Test{{ID: "t1", Grade: "9-A"}}}
	cache := &mockTestCache{}
	svc := NewTestService(repo, cache, time.Minute, nil, nil)

	_, err := svc.List(context.Background(), models.TestFilter{Grade: "9-A"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)
	assert.Contains(t, cache.store, "tests:9-A")

	// second call is served from the cache
	_, err = svc.List(context.Background(), models.TestFilter{Grade: "9-A"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)
}
