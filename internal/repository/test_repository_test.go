package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzcoder03/maktab/internal/models"
)

func newTestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTestRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTestRepoMock(t)
	defer cleanup()
	repo := NewTestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tests").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO questions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO questions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	test := &models.Test{
		Title:          "Algebra 1-chorak",
		SubjectID:      "sub1",
		Grade:          "9-A",
		TotalTimeLimit: 30,
		Active:         true,
		Questions: []models.Question{
			{Text: "2+2=?", Options: pq.StringArray{"3", "4", "5", "6"}, CorrectAnswer: 1},
			{Text: "3*3=?", Options: pq.StringArray{"6", "8", "9", "12"}, CorrectAnswer: 2},
		},
	}
	err := repo.Create(context.Background(), test)
	require.NoError(t, err)
	assert.NotEmpty(t, test.ID)
	assert.Equal(t, test.ID, test.Questions[0].TestID)
	assert.Equal(t, 0, test.Questions[0].Position)
	assert.Equal(t, 1, test.Questions[1].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTestRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newTestRepoMock(t)
	defer cleanup()
	repo := NewTestRepository(db)

	mock.ExpectQuery("SELECT id, title, subject_id").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "subject_id", "grade", "total_time_limit", "anti_cheat_enabled", "active", "created_at"}).
			AddRow("t1", "Algebra", "sub1", "9-A", 30, true, true, time.Now()))
	mock.ExpectQuery("SELECT id, test_id, position").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "test_id", "position", "text", "options", "correct_answer"}).
			AddRow("q1", "t1", 0, "2+2=?", pq.StringArray{"3", "4", "5", "6"}, 1))

	test, err := repo.FindByID(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, test.Questions, 1)
	assert.Equal(t, 1, test.Questions[0].CorrectAnswer)
	assert.NoError(t, mock.ExpectationsWereMet())
}
