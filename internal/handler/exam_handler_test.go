package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/uzcoder03/maktab/internal/middleware"
	"github.com/uzcoder03/maktab/internal/models"
	"github.com/uzcoder03/maktab/internal/service"
)

type examTestRepoMock struct {
	test *models.Test
}

func (m *examTestRepoMock) FindByID(ctx context.Context, id string) (*models.Test, error) {
	if m.test == nil || m.test.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.test, nil
}

type examResultRepoMock struct {
	results []*models.TestResult
}

func (m *examResultRepoMock) Create(ctx context.Context, result *models.TestResult) error {
	m.results = append(m.results, result)
	return nil
}

func (m *examResultRepoMock) FindByTestAndStudent(ctx context.Context, testID, studentID string) (*models.TestResult, error) {
	for _, r := range m.results {
		if r.TestID == testID && r.StudentID == studentID {
			return r, nil
		}
	}
	return nil, sql.ErrNoRows
}

type examGradeRepoMock struct {
	grades []*models.DailyGrade
}

func (m *examGradeRepoMock) Create(ctx context.Context, grade *models.DailyGrade) error {
	m.grades = append(m.grades, grade)
	return nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func newExamHandler() (*ExamHandler, *examResultRepoMock) {
	tests := &examTestRepoMock{test: &models.Test{
		ID:               "t1",
		Title:            "Algebra",
		SubjectID:        "sub1",
		Grade:            "9-A",
		TotalTimeLimit:   600,
		AntiCheatEnabled: true,
		Active:           true,
		Questions: []models.Question{
			{ID: "q1", TestID: "t1", Position: 0, Text: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: 1},
			{ID: "q2", TestID: "t1", Position: 1, Text: "3*3?", Options: []string{"9", "6"}, CorrectAnswer: 0},
		},
	}}
	results := &examResultRepoMock{}
	svc := service.NewExamService(tests, results, &examGradeRepoMock{}, 2, nil)
	return NewExamHandler(svc), results
}

func startSession(t *testing.T, handler *ExamHandler, studentID string) string {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"test_id": "t1"})
	c, w := newGinContext(http.MethodPost, "/exams/start", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: studentID, Role: models.RoleStudent})

	handler.Start(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data service.SessionState `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.SessionID)
	return envelope.Data.SessionID
}

func TestExamHandlerStartRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newExamHandler()

	payload, _ := json.Marshal(map[string]string{"test_id": "t1"})
	c, w := newGinContext(http.MethodPost, "/exams/start", payload)

	handler.Start(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExamHandlerAnswerAndSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, results := newExamHandler()
	sessionID := startSession(t, handler, "stu1")

	answer, _ := json.Marshal(map[string]int{"question_idx": 0, "option_idx": 1})
	c, w := newGinContext(http.MethodPost, "/exams/"+sessionID+"/answer", answer)
	c.Params = gin.Params{{Key: "id", Value: sessionID}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent})
	handler.Answer(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodPost, "/exams/"+sessionID+"/submit", nil)
	c.Params = gin.Params{{Key: "id", Value: sessionID}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent})
	handler.Submit(c)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, results.results, 1)
	require.Equal(t, 50, results.results[0].Score)
}

func TestExamHandlerQuestionHidesAnswer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newExamHandler()
	sessionID := startSession(t, handler, "stu1")

	c, w := newGinContext(http.MethodGet, "/exams/"+sessionID+"/questions/0", nil)
	c.Params = gin.Params{{Key: "id", Value: sessionID}, {Key: "idx", Value: "0"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent})
	handler.Question(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.Question `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, -1, envelope.Data.CorrectAnswer)
}

func TestExamHandlerViolationCountsWarning(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newExamHandler()
	sessionID := startSession(t, handler, "stu1")

	payload, _ := json.Marshal(map[string]string{"kind": "visibility"})
	c, w := newGinContext(http.MethodPost, "/exams/"+sessionID+"/violation", payload)
	c.Params = gin.Params{{Key: "id", Value: sessionID}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent})
	handler.Violation(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data service.SessionState `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, 1, envelope.Data.Warnings)
}

func TestExamHandlerViolationRejectsUnknownKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newExamHandler()
	sessionID := startSession(t, handler, "stu1")

	payload, _ := json.Marshal(map[string]string{"kind": "screenshot"})
	c, w := newGinContext(http.MethodPost, "/exams/"+sessionID+"/violation", payload)
	c.Params = gin.Params{{Key: "id", Value: sessionID}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent})
	handler.Violation(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExamHandlerForeignSessionForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newExamHandler()
	sessionID := startSession(t, handler, "stu1")

	c, w := newGinContext(http.MethodGet, "/exams/"+sessionID, nil)
	c.Params = gin.Params{{Key: "id", Value: sessionID}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu2", Role: models.RoleStudent})
	handler.State(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
