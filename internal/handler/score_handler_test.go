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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmarks/markbook-api/internal/models"
	"github.com/openmarks/markbook-api/internal/service"
	"github.com/openmarks/markbook-api/pkg/response"
)

type assessmentReaderMock struct {
	byID map[string]*models.Assessment
}

func (m *assessmentReaderMock) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	return m.byID[id], nil
}

type rosterReaderMock struct {
	byPosition map[int]*models.Student
}

func (m *rosterReaderMock) FindByPosition(ctx context.Context, classID string, position int) (*models.Student, error) {
	if s, ok := m.byPosition[position]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type scoreWriterMock struct {
	upserts []models.Score
	bulks   [][]models.Score
}

func (m *scoreWriterMock) Upsert(ctx context.Context, score *models.Score) error {
	m.upserts = append(m.upserts, *score)
	return nil
}

func (m *scoreWriterMock) BulkUpsert(ctx context.Context, scores []models.Score) error {
	m.bulks = append(m.bulks, scores)
	return nil
}

func newScoreHandlerFixture() (*ScoreHandler, *scoreWriterMock, *int) {
	assessments := &assessmentReaderMock{byID: map[string]*models.Assessment{
		"a1": {ID: "a1", MarkSetID: "ms1", Title: "Quiz 1", Weight: 1, OutOf: 20},
	}}
	roster := &rosterReaderMock{byPosition: map[int]*models.Student{
		0: {ID: "s1", ClassID: "c1", FullName: "Ada", Position: 0, Active: true},
	}}
	writer := &scoreWriterMock{}
	invalidations := 0
	svc := service.NewScoreService(assessments, roster, writer, 0, nil, nil)
	h := NewScoreHandler(svc, func(context.Context) { invalidations++ })
	return h, writer, &invalidations
}

func performJSON(t *testing.T, handle gin.HandlerFunc, method, target string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	handle(c)
	return w
}

func TestScoreHandlerApplyEdit(t *testing.T) {
	h, writer, invalidations := newScoreHandlerFixture()
	row := 0
	value := 15.0
	w := performJSON(t, h.ApplyEdit, http.MethodPost, "/scores/edit", singleEditRequest{
		ClassID: "c1",
		Edit:    service.ScoreEdit{Row: &row, AssessmentID: "a1", Status: models.ScoreScored, Value: &value},
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, writer.upserts, 1)
	assert.Equal(t, "s1", writer.upserts[0].StudentID)
	assert.Equal(t, 1, *invalidations)
}

func TestScoreHandlerApplyEditInvalidBody(t *testing.T) {
	h, writer, invalidations := newScoreHandlerFixture()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/scores/edit", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.ApplyEdit(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, writer.upserts)
	assert.Zero(t, *invalidations)
}

func TestScoreHandlerApplyEditUnknownRow(t *testing.T) {
	h, writer, invalidations := newScoreHandlerFixture()
	row := 40
	w := performJSON(t, h.ApplyEdit, http.MethodPost, "/scores/edit", singleEditRequest{
		ClassID: "c1",
		Edit:    service.ScoreEdit{Row: &row, AssessmentID: "a1", Status: models.ScoreZero},
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, writer.upserts)
	assert.Zero(t, *invalidations)
}

func TestScoreHandlerBulkEditPartial(t *testing.T) {
	h, writer, invalidations := newScoreHandlerFixture()
	good, bad := 0, 9
	w := performJSON(t, h.BulkEdit, http.MethodPost, "/scores/bulk", service.BulkEditRequest{
		ClassID: "c1",
		Edits: []service.ScoreEdit{
			{Row: &good, AssessmentID: "a1", Status: models.ScoreZero},
			{Row: &bad, AssessmentID: "a1", Status: models.ScoreZero},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	result, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	var bulk service.BulkEditResult
	require.NoError(t, json.Unmarshal(result, &bulk))
	assert.Equal(t, 1, bulk.Updated)
	assert.Equal(t, 1, bulk.Rejected)
	require.Len(t, writer.bulks, 1)
	assert.Equal(t, 1, *invalidations)
}

func TestScoreHandlerBulkEditCeiling(t *testing.T) {
	h, writer, invalidations := newScoreHandlerFixture()
	row := 0
	edits := make([]service.ScoreEdit, 5001)
	for i := range edits {
		edits[i] = service.ScoreEdit{Row: &row, AssessmentID: "a1", Status: models.ScoreZero}
	}
	w := performJSON(t, h.BulkEdit, http.MethodPost, "/scores/bulk", service.BulkEditRequest{ClassID: "c1", Edits: edits})

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, writer.bulks)
	assert.Zero(t, *invalidations)
	assert.Contains(t, w.Body.String(), "TOO_MANY_EDITS")
}
