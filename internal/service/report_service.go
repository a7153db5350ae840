package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openmarks/markbook-api/internal/models"
	appErrors "github.com/openmarks/markbook-api/pkg/errors"
	"github.com/openmarks/markbook-api/pkg/export"
	"github.com/openmarks/markbook-api/pkg/storage"
)

// ReportFormat selects the export rendering.
type ReportFormat string

const (
	FormatCSV ReportFormat = "csv"
	FormatPDF ReportFormat = "pdf"
)

// ReportFile describes a rendered export available for download.
type ReportFile struct {
	Filename  string    `json:"filename"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Rows      int       `json:"rows"`
}

// ReportService renders mark analytics to downloadable files. It goes
// through the same analytics shaping as the JSON endpoints, so an exported
// report is numerically identical to what the API returned for the same
// query.
type ReportService struct {
	analytics *AnalyticsService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
}

// NewReportService constructs ReportService.
func NewReportService(analytics *AnalyticsService, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		analytics: analytics,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		store:     store,
		signer:    signer,
		logger:    logger,
	}
}

// ExportMarks renders one mark set's report. Paging is ignored: an export
// always carries the full filtered population.
func (s *ReportService) ExportMarks(ctx context.Context, q models.MarkQuery, format ReportFormat) (*ReportFile, error) {
	q.Page = 0
	q.PageSize = 0
	report, _, _, err := s.analytics.Marks(ctx, q)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Position", "Student", "Final"},
		Rows:    make([]map[string]string, 0, len(report.Rows)),
	}
	for _, row := range report.Rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Position": fmt.Sprintf("%d", row.Position),
			"Student":  row.StudentName,
			"Final":    formatFinal(row.Final),
		})
	}
	title := fmt.Sprintf("Mark Report %s", q.MarkSetID)
	return s.render(dataset, title, fmt.Sprintf("marks-%s", q.MarkSetID), format)
}

// ExportCombined renders a cross-mark-set report.
func (s *ReportService) ExportCombined(ctx context.Context, q models.CombinedQuery, format ReportFormat) (*ReportFile, error) {
	q.Page = 0
	q.PageSize = 0
	report, _, _, err := s.analytics.Combined(ctx, q)
	if err != nil {
		return nil, err
	}

	headers := []string{"Student"}
	for _, id := range report.MarkSetIDs {
		headers = append(headers, id)
	}
	headers = append(headers, "Combined")

	dataset := export.Dataset{Headers: headers, Rows: make([]map[string]string, 0, len(report.Rows))}
	for _, row := range report.Rows {
		cells := map[string]string{"Student": row.StudentName}
		for _, part := range row.PerMarkSet {
			cells[part.MarkSetID] = formatFinal(part.Final)
		}
		cells["Combined"] = formatFinal(row.Combined)
		dataset.Rows = append(dataset.Rows, cells)
	}
	return s.render(dataset, "Combined Mark Report", "combined", format)
}

// Download resolves a signed token back to the stored file.
func (s *ReportService) Download(token string) (string, error) {
	relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "report file not found")
	}
	path := file.Name()
	file.Close()
	return path, nil
}

// CleanupExpired removes report files older than the signer TTL allows.
func (s *ReportService) CleanupExpired(ttl time.Duration) {
	removed, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("report cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("expired reports removed", zap.Int("count", len(removed)))
	}
}

func (s *ReportService) render(dataset export.Dataset, title, stem string, format ReportFormat) (*ReportFile, error) {
	var (
		payload []byte
		err     error
		ext     string
	)
	switch format {
	case FormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		ext = "pdf"
	case FormatCSV, "":
		payload, err = s.csv.Render(dataset)
		ext = "csv"
	default:
		return nil, appErrors.Clone(appErrors.ErrBadParams, fmt.Sprintf("unsupported report format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	filename := fmt.Sprintf("%s-%d.%s", stem, time.Now().UTC().UnixNano(), ext)
	if _, err := s.store.Save(filename, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}
	token, expiresAt, err := s.signer.Generate(filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign report url")
	}

	s.logger.Info("report exported", zap.String("filename", filename), zap.Int("rows", len(dataset.Rows)))
	return &ReportFile{Filename: filename, Token: token, ExpiresAt: expiresAt, Rows: len(dataset.Rows)}, nil
}

func formatFinal(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.1f", *v)
}
