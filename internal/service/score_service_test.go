package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmarks/markbook-api/internal/models"
	appErrors "github.com/openmarks/markbook-api/pkg/errors"
)

type assessmentStub struct {
	items map[string]models.Assessment
}

func (s *assessmentStub) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	if a, ok := s.items[id]; ok {
		return &a, nil
	}
	return nil, nil
}

type rosterStub struct {
	students map[int]models.Student
}

func (s *rosterStub) FindByPosition(ctx context.Context, classID string, position int) (*models.Student, error) {
	if st, ok := s.students[position]; ok {
		return &st, nil
	}
	return nil, sql.ErrNoRows
}

type scoreWriterStub struct {
	upserts []models.Score
	bulks   [][]models.Score
	err     error
}

func (s *scoreWriterStub) Upsert(ctx context.Context, score *models.Score) error {
	if s.err != nil {
		return s.err
	}
	s.upserts = append(s.upserts, *score)
	return nil
}

func (s *scoreWriterStub) BulkUpsert(ctx context.Context, scores []models.Score) error {
	if s.err != nil {
		return s.err
	}
	s.bulks = append(s.bulks, scores)
	return nil
}

func newScoreFixture() (*ScoreService, *scoreWriterStub) {
	assessments := &assessmentStub{items: map[string]models.Assessment{
		"a1": {ID: "a1", MarkSetID: "ms1", Category: "TESTS", Title: "Quiz 1", Weight: 1, OutOf: 20},
	}}
	roster := &rosterStub{students: map[int]models.Student{
		0: {ID: "s1", ClassID: "c1", FullName: "Ada Byron", Position: 0, Active: true},
		1: {ID: "s2", ClassID: "c1", FullName: "Alan Turing", Position: 1, Active: true},
	}}
	writer := &scoreWriterStub{}
	svc := NewScoreService(assessments, roster, writer, 5000, nil, nil)
	return svc, writer
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestApplyEditStoresScore(t *testing.T) {
	svc, writer := newScoreFixture()

	score, err := svc.ApplyEdit(context.Background(), "c1", ScoreEdit{
		Row:          intPtr(0),
		AssessmentID: "a1",
		Status:       models.ScoreScored,
		Value:        floatPtr(15),
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", score.StudentID)
	require.Len(t, writer.upserts, 1)
	assert.Equal(t, 15.0, *writer.upserts[0].Raw)
}

func TestApplyEditRejectsMissingRow(t *testing.T) {
	svc, _ := newScoreFixture()

	_, err := svc.ApplyEdit(context.Background(), "c1", ScoreEdit{
		AssessmentID: "a1",
		Status:       models.ScoreScored,
		Value:        floatPtr(15),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBadParams.Code, appErrors.FromError(err).Code)
}

func TestApplyEditRejectsNegativeValue(t *testing.T) {
	svc, writer := newScoreFixture()

	_, err := svc.ApplyEdit(context.Background(), "c1", ScoreEdit{
		Row:          intPtr(0),
		AssessmentID: "a1",
		Status:       models.ScoreScored,
		Value:        floatPtr(-2),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBadParams.Code, appErrors.FromError(err).Code)
	assert.Empty(t, writer.upserts)
}

func TestApplyEditRejectsUnknownStudent(t *testing.T) {
	svc, _ := newScoreFixture()

	_, err := svc.ApplyEdit(context.Background(), "c1", ScoreEdit{
		Row:          intPtr(99),
		AssessmentID: "a1",
		Status:       models.ScoreZero,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBulkEditCeilingRejectsWholesale(t *testing.T) {
	svc, writer := newScoreFixture()

	edits := make([]ScoreEdit, 5001)
	for i := range edits {
		edits[i] = ScoreEdit{Row: intPtr(0), AssessmentID: "a1", Status: models.ScoreScored, Value: floatPtr(10)}
	}
	result, err := svc.BulkEdit(context.Background(), BulkEditRequest{ClassID: "c1", Edits: edits})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 5001, result.Rejected)
	assert.True(t, result.LimitExceeded)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, appErrors.ErrTooManyEdits.Code, result.Errors[0].Code)
	assert.Empty(t, writer.bulks)
}

func TestBulkEditMixedBatch(t *testing.T) {
	svc, writer := newScoreFixture()

	edits := []ScoreEdit{
		{Row: intPtr(0), AssessmentID: "a1", Status: models.ScoreScored, Value: floatPtr(12)},
		{Row: intPtr(1), AssessmentID: "a1", Status: models.ScoreScored, Value: floatPtr(-5)},
		{AssessmentID: "a1", Status: models.ScoreScored, Value: floatPtr(12)},
		{Row: intPtr(40), AssessmentID: "a1", Status: models.ScoreScored, Value: floatPtr(12)},
	}
	result, err := svc.BulkEdit(context.Background(), BulkEditRequest{ClassID: "c1", Edits: edits})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 3, result.Rejected)
	assert.False(t, result.LimitExceeded)
	require.Len(t, result.Errors, 3)

	codes := map[int]string{}
	for _, e := range result.Errors {
		codes[e.Index] = e.Code
	}
	assert.Equal(t, appErrors.ErrBadParams.Code, codes[1])
	assert.Equal(t, appErrors.ErrBadParams.Code, codes[2])
	assert.Equal(t, appErrors.ErrNotFound.Code, codes[3])

	require.Len(t, writer.bulks, 1)
	assert.Len(t, writer.bulks[0], 1)
}

func TestBulkEditRejectsOverMaximum(t *testing.T) {
	svc, _ := newScoreFixture()

	result, err := svc.BulkEdit(context.Background(), BulkEditRequest{ClassID: "c1", Edits: []ScoreEdit{
		{Row: intPtr(0), AssessmentID: "a1", Status: models.ScoreScored, Value: floatPtr(25)},
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 1, result.Rejected)
}
