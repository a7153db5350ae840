package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmarks/markbook-api/internal/models"
	appErrors "github.com/openmarks/markbook-api/pkg/errors"
)

type importAssessmentStub struct {
	items []models.Assessment
}

func (s *importAssessmentStub) FindByTitle(ctx context.Context, markSetID, title string) (*models.Assessment, error) {
	for _, a := range s.items {
		if a.MarkSetID == markSetID && a.Title == title {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (s *importAssessmentStub) Create(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = assessment.Title
	}
	s.items = append(s.items, *assessment)
	return nil
}

type importCategoryStub struct {
	items []models.Category
}

func (s *importCategoryStub) ListByMarkSet(ctx context.Context, markSetID string) ([]models.Category, error) {
	return s.items, nil
}

func (s *importCategoryStub) Upsert(ctx context.Context, category *models.Category) error {
	s.items = append(s.items, *category)
	return nil
}

func writeExportFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "term1.mk")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func importFixture() (*ImportService, *importAssessmentStub, *scoreWriterStub) {
	markSets := &markSetStoreStub{sets: []models.MarkSet{
		{ID: "ms1", ClassID: "c1", Name: "Term 1", SortOrder: 0},
	}}
	assessments := &importAssessmentStub{}
	categories := &importCategoryStub{}
	students := &studentStoreStub{students: []models.Student{
		{ID: "s1", ClassID: "c1", FullName: "Ada Byron", Position: 0, Active: true},
		{ID: "s2", ClassID: "c1", FullName: "Alan Turing", Position: 1, Active: true},
	}}
	writer := &scoreWriterStub{}
	svc := NewImportService(markSets, assessments, categories, students, writer, nil, nil)
	return svc, assessments, writer
}

func TestImportFileSeedsAssessmentsAndScores(t *testing.T) {
	svc, assessments, writer := importFixture()
	path := writeExportFixture(t, "MKEXP1 2\nQuiz 1\n20\n15 -1\nEssay\n50\n40 0 33\n")

	summary, err := svc.ImportFile(context.Background(), ImportRequest{MarkSetID: "ms1", Path: path})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.AssessmentsCreated)
	assert.Equal(t, 4, summary.ScoresWritten)
	assert.Equal(t, 1, summary.ValuesSkipped)
	require.Len(t, assessments.items, 2)
	assert.Equal(t, "IMPORTED", assessments.items[0].Category)
	assert.Equal(t, 20.0, assessments.items[0].OutOf)

	// First block: 15 scored for s1, -1 not entered for s2.
	require.Len(t, writer.bulks, 2)
	first := writer.bulks[0]
	require.Len(t, first, 2)
	assert.Equal(t, models.ScoreScored, first[0].Status)
	assert.Equal(t, 15.0, *first[0].Raw)
	assert.Equal(t, models.ScoreNoMark, first[1].Status)
	assert.Nil(t, first[1].Raw)

	// Second block: explicit zero stays a counted zero.
	second := writer.bulks[1]
	assert.Equal(t, models.ScoreZero, second[1].Status)
}

func TestImportFileCollisionAborts(t *testing.T) {
	svc, assessments, _ := importFixture()
	assessments.items = []models.Assessment{{ID: "a0", MarkSetID: "ms1", Title: "Quiz 1", Weight: 1, OutOf: 20}}
	path := writeExportFixture(t, "MKEXP1 2\nQuiz 1\n20\n15 12\n")

	_, err := svc.ImportFile(context.Background(), ImportRequest{MarkSetID: "ms1", Path: path})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCollision.Code, appErrors.FromError(err).Code)
}

func TestImportFileParseErrorSurfacesForFile(t *testing.T) {
	svc, _, _ := importFixture()
	path := writeExportFixture(t, "NOTMAGIC 2\n")

	_, err := svc.ImportFile(context.Background(), ImportRequest{MarkSetID: "ms1", Path: path})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrParse.Code, appErrors.FromError(err).Code)
}

func TestImportFileUnknownMarkSet(t *testing.T) {
	svc, _, _ := importFixture()
	path := writeExportFixture(t, "MKEXP1 0\n")

	_, err := svc.ImportFile(context.Background(), ImportRequest{MarkSetID: "nope", Path: path})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestImportDirectoryInlineContinuesPastBadFile(t *testing.T) {
	svc, _, _ := importFixture()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mk"), []byte("MKEXP1 2\nQuiz 1\n20\n15 12\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.mk"), []byte("garbage\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.mk"), []byte("MKEXP1 2\nQuiz 2\n20\n9 18\n"), 0o600))

	result, err := svc.ImportDirectory(context.Background(), "ms1", dir, "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Enqueued)
	assert.Len(t, result.Files, 3)
}
