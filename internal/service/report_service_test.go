package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmarks/markbook-api/internal/models"
	"github.com/openmarks/markbook-api/pkg/storage"
)

func reportFixture(t *testing.T) *ReportService {
	t.Helper()
	analytics, _ := analyticsFixture()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("report-test-secret", time.Hour)
	return NewReportService(analytics, store, signer, nil)
}

func TestReportExportMarksCSV(t *testing.T) {
	svc := reportFixture(t)

	file, err := svc.ExportMarks(context.Background(), models.MarkQuery{MarkSetID: "ms1"}, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 2, file.Rows)
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
	assert.NotEmpty(t, file.Token)

	path, err := svc.Download(file.Token)
	require.NoError(t, err)
	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(payload)
	assert.Contains(t, content, "Position,Student,Final")
	assert.Contains(t, content, "80.0")
	assert.Contains(t, content, "60.0")
}

func TestReportExportCombinedColumns(t *testing.T) {
	svc := reportFixture(t)

	file, err := svc.ExportCombined(context.Background(), models.CombinedQuery{MarkSetIDs: []string{"ms1", "ms2"}}, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 2, file.Rows)

	path, err := svc.Download(file.Token)
	require.NoError(t, err)
	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(payload)
	assert.Contains(t, content, "Student,ms1,ms2,Combined")
	assert.Contains(t, content, "70.0")
}

func TestReportExportUnknownFormat(t *testing.T) {
	svc := reportFixture(t)

	_, err := svc.ExportMarks(context.Background(), models.MarkQuery{MarkSetID: "ms1"}, ReportFormat("xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx")
}

func TestReportDownloadBadToken(t *testing.T) {
	svc := reportFixture(t)

	_, err := svc.Download("not-a-token")
	require.Error(t, err)
}

func TestReportPDFRenders(t *testing.T) {
	svc := reportFixture(t)

	file, err := svc.ExportMarks(context.Background(), models.MarkQuery{MarkSetID: "ms1"}, FormatPDF)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(file.Filename, ".pdf"))

	path, err := svc.Download(file.Token)
	require.NoError(t, err)
	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}
