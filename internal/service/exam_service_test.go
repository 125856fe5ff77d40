package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
)

type mockExamTests struct {
	test *models.Test
}

func (m *mockExamTests) FindByID(ctx context.Context, id string) (*models.Test, error) {
	if m.test == nil || m.test.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.test, nil
}

type mockExamResults struct {
	results []*models.TestResult
}

func (m *mockExamResults) Create(ctx context.Context, result *models.TestResult) error {
	m.results = append(m.results, result)
	return nil
}

func (m *mockExamResults) FindByTestAndStudent(ctx context.Context, testID, studentID string) (*models.TestResult, error) {
	for _, r := range m.results {
		if r.TestID == testID && r.StudentID == studentID {
			return r, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockExamGrades struct {
	grades []*models.DailyGrade
}

func (m *mockExamGrades) Create(ctx context.Context, grade *models.DailyGrade) error {
	m.grades = append(m.grades, grade)
	return nil
}

func fourQuestionTest() *models.Test {
	return &models.Test{
		ID:               "t1",
		Title:            "Matematika",
		SubjectID:        "sub1",
		Grade:            "9-A",
		TotalTimeLimit:   30,
		AntiCheatEnabled: true,
		Active:           true,
		Questions: []models.Question{
			{Text: "q1", Options: pq.StringArray{"a", "b", "c", "d"}, CorrectAnswer: 1},
			{Text: "q2", Options: pq.StringArray{"a", "b", "c", "d"}, CorrectAnswer: 1},
			{Text: "q3", Options: pq.StringArray{"a", "b", "c", "d"}, CorrectAnswer: 0},
			{Text: "q4", Options: pq.StringArray{"a", "b", "c", "d"}, CorrectAnswer: 3},
		},
	}
}

func TestExamServiceSubmitScoresPercentage(t *testing.T) {
	results := &mockExamResults{}
	grades := &mockExamGrades{}
	svc := NewExamService(&mockExamTests{test: fourQuestionTest()}, results, grades, 2, nil)
	ctx := context.Background()

	state, err := svc.Start(ctx, "stu1", "t1")
	require.NoError(t, err)

	// three of four correct: 1, 1, 0 match, last one wrong
	answers := []int{1, 1, 0, 2}
	for idx, choice := range answers {
		_, err := svc.Answer(ctx, "stu1", state.SessionID, idx, choice)
		require.NoError(t, err)
	}

	result, err := svc.Submit(ctx, "stu1", state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 75, result.Score)
	assert.Equal(t, models.ResultPassed, result.Status)
	assert.Empty(t, grades.grades)
}

func TestExamServiceSubmitPerfectScore(t *testing.T) {
	results := &mockExamResults{}
	svc := NewExamService(&mockExamTests{test: fourQuestionTest()}, results, &mockExamGrades{}, 2, nil)
	ctx := context.Background()

	state, err := svc.Start(ctx, "stu1", "t1")
	require.NoError(t, err)
	for idx, choice := range []int{1, 1, 0, 3} {
		_, err := svc.Answer(ctx, "stu1", state.SessionID, idx, choice)
		require.NoError(t, err)
	}

	result, err := svc.Submit(ctx, "stu1", state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Score)
}

func TestExamServiceSecondViolationTerminatesAsCheated(t *testing.T) {
	results := &mockExamResults{}
	grades := &mockExamGrades{}
	svc := NewExamService(&mockExamTests{test: fourQuestionTest()}, results, grades, 2, nil)
	ctx := context.Background()

	state, err := svc.Start(ctx, "stu1", "t1")
	require.NoError(t, err)

	// answer everything correctly first; cheating still zeroes the score
	for idx, choice := range []int{1, 1, 0, 3} {
		_, err := svc.Answer(ctx, "stu1", state.SessionID, idx, choice)
		require.NoError(t, err)
	}

	state, err = svc.Violation(ctx, "stu1", state.SessionID, ViolationVisibility)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Warnings)
	assert.False(t, state.IsFinished)

	state, err = svc.Violation(ctx, "stu1", state.SessionID, ViolationKeyboard)
	require.NoError(t, err)
	assert.Equal(t, 2, state.Warnings)
	assert.True(t, state.IsFinished)
	assert.True(t, state.IsCheated)

	require.Len(t, results.results, 1)
	assert.Equal(t, 0, results.results[0].Score)
	assert.Equal(t, models.ResultCheated, results.results[0].Status)

	require.Len(t, grades.grades, 1)
	assert.Equal(t, 0, grades.grades[0].Grade)
	assert.Equal(t, "sub1", grades.grades[0].SubjectID)
	require.NotNil(t, grades.grades[0].Comment)
	assert.Equal(t, antiCheatComment, *grades.grades[0].Comment)

	// nothing more is allowed on a terminated session
	_, err = svc.Answer(ctx, "stu1", state.SessionID, 0, 0)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionFinished.Code, appErrors.FromError(err).Code)
}

func TestExamServiceViolationIgnoredWhenAntiCheatDisabled(t *testing.T) {
	test := fourQuestionTest()
	test.AntiCheatEnabled = false
	results := &mockExamResults{}
	grades := &mockExamGrades{}
	svc := NewExamService(&mockExamTests{test: test}, results, grades, 2, nil)
	ctx := context.Background()

	state, err := svc.Start(ctx, "stu1", "t1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		state, err = svc.Violation(ctx, "stu1", state.SessionID, ViolationVisibility)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, state.Warnings)
	assert.False(t, state.IsFinished)
	assert.False(t, state.IsCheated)
	assert.Empty(t, results.results)
	assert.Empty(t, grades.grades)

	// the attempt still submits and scores normally
	_, err = svc.Answer(ctx, "stu1", state.SessionID, 0, 1)
	require.NoError(t, err)
	result, err := svc.Submit(ctx, "stu1", state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 25, result.Score)
	assert.Equal(t, models.ResultPassed, result.Status)
}

func TestExamServiceViolationRejectsUnknownKind(t *testing.T) {
	svc := NewExamService(&mockExamTests{test: fourQuestionTest()}, &mockExamResults{}, &mockExamGrades{}, 2, nil)
	ctx := context.Background()

	state, err := svc.Start(ctx, "stu1", "t1")
	require.NoError(t, err)

	_, err = svc.Violation(ctx, "stu1", state.SessionID, "screenshot")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExamServiceStartBlockedAfterRecordedResult(t *testing.T) {
	results := &mockExamResults{results: []*models.TestResult{
		{ID: "r1", TestID: "t1", StudentID: "stu1", Score: 50, Status: models.ResultPassed},
	}}
	svc := NewExamService(&mockExamTests{test: fourQuestionTest()}, results, &mockExamGrades{}, 2, nil)

	_, err := svc.Start(context.Background(), "stu1", "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyAttempted.Code, appErrors.FromError(err).Code)
}

func TestExamServiceStartReturnsExistingSession(t *testing.T) {
	svc := NewExamService(&mockExamTests{test: fourQuestionTest()}, &mockExamResults{}, &mockExamGrades{}, 2, nil)
	ctx := context.Background()

	first, err := svc.Start(ctx, "stu1", "t1")
	require.NoError(t, err)
	second, err := svc.Start(ctx, "stu1", "t1")
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestExamServiceExpiredSessionIsForceSubmitted(t *testing.T) {
	results := &mockExamResults{}
	svc := NewExamService(&mockExamTests{test: fourQuestionTest()}, results, &mockExamGrades{}, 2, nil)
	ctx := context.Background()

	state, err := svc.Start(ctx, "stu1", "t1")
	require.NoError(t, err)
	_, err = svc.Answer(ctx, "stu1", state.SessionID, 0, 1)
	require.NoError(t, err)

	svc.mu.Lock()
	svc.sessions[state.SessionID].Deadline = time.Now().Add(-time.Second)
	svc.mu.Unlock()

	_, err = svc.Answer(ctx, "stu1", state.SessionID, 1, 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionFinished.Code, appErrors.FromError(err).Code)

	// only the answer given before expiry counts
	require.Len(t, results.results, 1)
	assert.Equal(t, 25, results.results[0].Score)
	assert.Equal(t, models.ResultPassed, results.results[0].Status)
}

func TestExamServiceQuestionHidesCorrectAnswer(t *testing.T) {
	svc := NewExamService(&mockExamTests{test: fourQuestionTest()}, &mockExamResults{}, &mockExamGrades{}, 2, nil)
	ctx := context.Background()

	state, err := svc.Start(ctx, "stu1", "t1")
	require.NoError(t, err)

	q, err := svc.Question("stu1", state.SessionID, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, q.CorrectAnswer)
	assert.Len(t, q.Options, 4)
}

func TestExamServiceSessionOwnership(t *testing.T) {
	svc := NewExamService(&mockExamTests{test: fourQuestionTest()}, &mockExamResults{}, &mockExamGrades{}, 2, nil)
	ctx := context.Background()

	state, err := svc.Start(ctx, "stu1", "t1")
	require.NoError(t, err)

	_, err = svc.Answer(ctx, "stu2", state.SessionID, 0, 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
