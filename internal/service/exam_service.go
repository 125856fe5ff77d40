package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
)

type examTestRepository interface {
	FindByID(ctx context.Context, id string) (*models.Test, error)
}

type examResultRepository interface {
	Create(ctx context.Context, result *models.TestResult) error
	FindByTestAndStudent(ctx context.Context, testID, studentID string) (*models.TestResult, error)
}

type examGradeRepository interface {
	Create(ctx context.Context, grade *models.DailyGrade) error
}

type examMetricsRecorder interface {
	SetActiveExamSessions(n int)
	RecordExamViolation()
}

const antiCheatComment = "Anti-Cheat: Imtihon qoidalari buzilganligi uchun 0 ball"

// examSession is the live, server-side state of one attempt. It stays
// in memory only; the durable outcome is the TestResult written when
// the session ends.
type examSession struct {
	ID         string
	TestID     string
	StudentID  string
	SubjectID  string
	Grade      string
	AntiCheat  bool
	Questions  []models.Question
	CurrentIdx int
	Deadline   time.Time
	Warnings   int
	Answers    map[int]int
	Finished   bool
	Cheated    bool
}

// SessionState is the client-facing snapshot of an exam session. The
// correct answers never leave the server.
type SessionState struct {
	SessionID     string `json:"session_id"`
	TestID        string `json:"test_id"`
	CurrentIdx    int    `json:"current_idx"`
	TotalTimeLeft int    `json:"total_time_left"`
	Warnings      int    `json:"warnings"`
	IsFinished    bool   `json:"is_finished"`
	IsCheated     bool   `json:"is_cheated"`
	Answered      []int  `json:"answered"`
}

// ExamService runs proctored attempts as an in-memory state machine.
// Every transition is re-checked server-side so a tampering client can
// not extend time, answer after finishing, or dodge the violation cap.
type ExamService struct {
	tests       examTestRepository
	results     examResultRepository
	grades      examGradeRepository
	maxWarnings int
	logger      *zap.Logger
	metrics     examMetricsRecorder

	mu        sync.Mutex
	sessions  map[string]*examSession
	byAttempt map[string]string

	stop chan struct{}
	done chan struct{}
}

// NewExamService constructs an ExamService. maxWarnings is the number
// of proctor violations that terminates an attempt.
func NewExamService(tests examTestRepository, results examResultRepository, grades examGradeRepository, maxWarnings int, logger *zap.Logger) *ExamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxWarnings <= 0 {
		maxWarnings = 2
	}
	return &ExamService{
		tests:       tests,
		results:     results,
		grades:      grades,
		maxWarnings: maxWarnings,
		logger:      logger,
		sessions:    make(map[string]*examSession),
		byAttempt:   make(map[string]string),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// SetMetrics attaches the recorder tracking the active-session gauge
// and the violation counter. Optional.
func (s *ExamService) SetMetrics(metrics examMetricsRecorder) {
	s.metrics = metrics
}

// StartSweeper launches the background loop that force-submits sessions
// whose time ran out. Call Shutdown to stop it.
func (s *ExamService) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// Shutdown stops the sweeper and waits for it to exit.
func (s *ExamService) Shutdown() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}

// Start opens a session for the student on the given test. A student
// who already has a recorded result for the test cannot start again
// until staff delete that result.
func (s *ExamService) Start(ctx context.Context, studentID, testID string) (*SessionState, error) {
	if _, err := s.results.FindByTestAndStudent(ctx, testID, studentID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyAttempted, "test already attempted")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check previous attempts")
	}

	test, err := s.tests.FindByID(ctx, testID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "test not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load test")
	}
	if !test.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "test is not active")
	}
	if len(test.Questions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "test has no questions")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	attemptKey := testID + ":" + studentID
	if existingID, ok := s.byAttempt[attemptKey]; ok {
		if existing := s.sessions[existingID]; existing != nil && !existing.Finished {
			return s.snapshot(existing), nil
		}
	}

	session := &examSession{
		ID:        uuid.NewString(),
		TestID:    testID,
		StudentID: studentID,
		SubjectID: test.SubjectID,
		Grade:     test.Grade,
		AntiCheat: test.AntiCheatEnabled,
		Questions: test.Questions,
		Deadline:  time.Now().Add(time.Duration(test.TotalTimeLimit) * time.Minute),
		Answers:   make(map[int]int),
	}
	s.sessions[session.ID] = session
	s.byAttempt[attemptKey] = session.ID
	s.reportActive()

	s.logger.Info("exam session started",
		zap.String("session_id", session.ID),
		zap.String("test_id", testID),
		zap.String("student_id", studentID))
	return s.snapshot(session), nil
}

// State returns the current snapshot of a session.
func (s *ExamService) State(studentID, sessionID string) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.owned(studentID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(session), nil
}

// Question returns one question of an active session with the correct
// answer stripped.
func (s *ExamService) Question(studentID, sessionID string, idx int) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.owned(studentID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Finished {
		return nil, appErrors.Clone(appErrors.ErrSessionFinished, "exam session already finished")
	}
	if idx < 0 || idx >= len(session.Questions) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "question index out of range")
	}
	q := session.Questions[idx]
	q.CorrectAnswer = -1
	return &q, nil
}

// Answer records the student's choice for one question.
func (s *ExamService) Answer(ctx context.Context, studentID, sessionID string, questionIdx, optionIdx int) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.owned(studentID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureActive(ctx, session); err != nil {
		return nil, err
	}
	if questionIdx < 0 || questionIdx >= len(session.Questions) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "question index out of range")
	}
	if optionIdx < 0 || optionIdx >= len(session.Questions[questionIdx].Options) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "option index out of range")
	}

	session.Answers[questionIdx] = optionIdx
	return s.snapshot(session), nil
}

// Navigate moves the session cursor to another question.
func (s *ExamService) Navigate(ctx context.Context, studentID, sessionID string, idx int) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.owned(studentID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureActive(ctx, session); err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(session.Questions) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "question index out of range")
	}

	session.CurrentIdx = idx
	return s.snapshot(session), nil
}

// Violation kinds accepted from the proctoring client.
const (
	ViolationVisibility = "visibility"
	ViolationKeyboard   = "keyboard"
)

// Violation registers a proctor violation. Reaching the warning cap
// terminates the attempt as cheated regardless of answers or timer.
// Violations against a test created with anti-cheat disabled are
// ignored and leave the session untouched.
func (s *ExamService) Violation(ctx context.Context, studentID, sessionID, kind string) (*SessionState, error) {
	if kind != ViolationVisibility && kind != ViolationKeyboard {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown violation kind")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.owned(studentID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Finished {
		return nil, appErrors.Clone(appErrors.ErrSessionFinished, "exam session already finished")
	}
	if !session.AntiCheat {
		return s.snapshot(session), nil
	}

	session.Warnings++
	if s.metrics != nil {
		s.metrics.RecordExamViolation()
	}
	s.logger.Warn("exam violation registered",
		zap.String("session_id", session.ID),
		zap.String("student_id", session.StudentID),
		zap.String("kind", kind),
		zap.Int("warnings", session.Warnings))

	if session.Warnings >= s.maxWarnings {
		if err := s.finalizeCheated(ctx, session); err != nil {
			return nil, err
		}
	}
	return s.snapshot(session), nil
}

// Submit finishes the attempt, grades the answers and persists the
// result. Score is the rounded percentage of correct answers.
func (s *ExamService) Submit(ctx context.Context, studentID, sessionID string) (*models.TestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.owned(studentID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Finished {
		return nil, appErrors.Clone(appErrors.ErrSessionFinished, "exam session already finished")
	}
	return s.finalizeSubmitted(ctx, session)
}

func (s *ExamService) owned(studentID, sessionID string) (*examSession, error) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam session not found")
	}
	if session.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another student")
	}
	return session, nil
}

// ensureActive rejects finished sessions and force-submits expired ones.
// Callers must hold the mutex.
func (s *ExamService) ensureActive(ctx context.Context, session *examSession) error {
	if session.Finished {
		return appErrors.Clone(appErrors.ErrSessionFinished, "exam session already finished")
	}
	if time.Now().After(session.Deadline) {
		if _, err := s.finalizeSubmitted(ctx, session); err != nil {
			return err
		}
		return appErrors.Clone(appErrors.ErrSessionFinished, "time is up")
	}
	return nil
}

func (s *ExamService) finalizeSubmitted(ctx context.Context, session *examSession) (*models.TestResult, error) {
	correct := 0
	for idx, q := range session.Questions {
		if answer, ok := session.Answers[idx]; ok && answer == q.CorrectAnswer {
			correct++
		}
	}
	score := int(math.Round(100 * float64(correct) / float64(len(session.Questions))))

	result := &models.TestResult{
		TestID:    session.TestID,
		StudentID: session.StudentID,
		Score:     score,
		Status:    models.ResultPassed,
		Date:      time.Now().UTC(),
	}
	if err := s.results.Create(ctx, result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist result")
	}

	session.Finished = true
	s.reportActive()
	s.logger.Info("exam session submitted",
		zap.String("session_id", session.ID),
		zap.String("student_id", session.StudentID),
		zap.Int("score", score))
	return result, nil
}

func (s *ExamService) finalizeCheated(ctx context.Context, session *examSession) error {
	result := &models.TestResult{
		TestID:    session.TestID,
		StudentID: session.StudentID,
		Score:     0,
		Status:    models.ResultCheated,
		Date:      time.Now().UTC(),
	}
	if err := s.results.Create(ctx, result); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist result")
	}

	comment := antiCheatComment
	if err := s.grades.Create(ctx, &models.DailyGrade{
		StudentID: session.StudentID,
		SubjectID: session.SubjectID,
		Date:      time.Now().UTC(),
		Grade:     0,
		Comment:   &comment,
	}); err != nil {
		s.logger.Error("failed to record anti-cheat grade", zap.Error(err))
	}

	session.Finished = true
	session.Cheated = true
	s.reportActive()
	s.logger.Warn("exam session terminated for cheating",
		zap.String("session_id", session.ID),
		zap.String("student_id", session.StudentID))
	return nil
}

// sweep force-submits every session whose deadline passed. Sessions
// finished more than an hour ago are dropped from memory.
func (s *ExamService) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for id, session := range s.sessions {
		if !session.Finished && now.After(session.Deadline) {
			if _, err := s.finalizeSubmitted(ctx, session); err != nil {
				s.logger.Error("failed to finalize expired session",
					zap.String("session_id", id), zap.Error(err))
			}
			continue
		}
		if session.Finished && now.After(session.Deadline.Add(time.Hour)) {
			delete(s.sessions, id)
			delete(s.byAttempt, session.TestID+":"+session.StudentID)
		}
	}
	s.reportActive()
}

// reportActive pushes the count of unfinished sessions to the metrics
// recorder. Callers must hold the mutex.
func (s *ExamService) reportActive() {
	if s.metrics == nil {
		return
	}
	active := 0
	for _, session := range s.sessions {
		if !session.Finished {
			active++
		}
	}
	s.metrics.SetActiveExamSessions(active)
}

func (s *ExamService) snapshot(session *examSession) *SessionState {
	left := int(time.Until(session.Deadline).Seconds())
	if left < 0 || session.Finished {
		left = 0
	}
	answered := make([]int, 0, len(session.Answers))
	for idx := range session.Answers {
		answered = append(answered, idx)
	}
	return &SessionState{
		SessionID:     session.ID,
		TestID:        session.TestID,
		CurrentIdx:    session.CurrentIdx,
		TotalTimeLeft: left,
		Warnings:      session.Warnings,
		IsFinished:    session.Finished,
		IsCheated:     session.Cheated,
		Answered:      answered,
	}
}
