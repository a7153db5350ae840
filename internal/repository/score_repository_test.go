package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmarks/markbook-api/internal/models"
)

func TestScoreRepositoryFetchByAssessments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	raw := 18.5
	rows := sqlmock.NewRows([]string{"id", "assessment_id", "student_id", "raw", "status", "created_at", "updated_at"}).
		AddRow("sc1", "a1", "s1", raw, models.ScoreScored, time.Now(), time.Now()).
		AddRow("sc2", "a2", "s1", nil, models.ScoreNoMark, time.Now(), time.Now())
	mock.ExpectQuery("FROM scores WHERE assessment_id IN").
		WithArgs("a1", "a2").
		WillReturnRows(rows)

	scores, err := repo.FetchByAssessments(context.Background(), []string{"a1", "a2"})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	got := scores[ScoreKey{StudentID: "s1", AssessmentID: "a1"}]
	require.NotNil(t, got.Raw)
	assert.Equal(t, 18.5, *got.Raw)
	assert.False(t, scores[ScoreKey{StudentID: "s1", AssessmentID: "a2"}].Usable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreRepositoryFetchByAssessmentsEmpty(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	scores, err := repo.FetchByAssessments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestScoreRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	mock.ExpectExec("INSERT INTO scores").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	raw := 7.0
	score := &models.Score{AssessmentID: "a1", StudentID: "s1", Raw: &raw, Status: models.ScoreScored}
	require.NoError(t, repo.Upsert(context.Background(), score))
	assert.NotEmpty(t, score.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreRepositoryBulkUpsertRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scores").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO scores").
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	scores := []models.Score{
		{AssessmentID: "a1", StudentID: "s1", Status: models.ScoreZero},
		{AssessmentID: "a1", StudentID: "s2", Status: models.ScoreZero},
	}
	err := repo.BulkUpsert(context.Background(), scores)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreRepositoryBulkUpsertCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scores").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO scores").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	scores := []models.Score{
		{AssessmentID: "a1", StudentID: "s1", Status: models.ScoreZero},
		{AssessmentID: "a2", StudentID: "s1", Status: models.ScoreZero},
	}
	require.NoError(t, repo.BulkUpsert(context.Background(), scores))
	assert.NoError(t, mock.ExpectationsWereMet())
}
