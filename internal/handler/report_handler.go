package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/openmarks/markbook-api/internal/models"
	"github.com/openmarks/markbook-api/internal/service"
	appErrors "github.com/openmarks/markbook-api/pkg/errors"
	"github.com/openmarks/markbook-api/pkg/response"
)

// ReportHandler exposes CSV/PDF exports and signed downloads.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// ExportMarks godoc
// @Summary Export one mark set's report as CSV or PDF
// @Tags Reports
// @Produce json
// @Param id path string true "Mark set id"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Router /reports/mark-sets/{id} [get]
func (h *ReportHandler) ExportMarks(c *gin.Context) {
	q := models.MarkQuery{
		MarkSetID: c.Param("id"),
		Scope:     models.StudentScope(c.DefaultQuery("scope", string(models.ScopeAll))),
		Term:      queryInt(c, "term", 0),
		Category:  c.Query("category"),
		TypesMask: queryInt(c, "typesMask", 0),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortDir:   models.SortDirection(c.DefaultQuery("sortDir", string(models.SortAsc))),
		Cohort:    cohortFromQuery(c),
	}
	file, err := h.reports.ExportMarks(c.Request.Context(), q, service.ReportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// ExportCombined godoc
// @Summary Export a cross-mark-set report as CSV or PDF
// @Tags Reports
// @Produce json
// @Param markSetIds query string true "Comma-separated mark set ids"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Router /reports/combined [get]
func (h *ReportHandler) ExportCombined(c *gin.Context) {
	ids := splitIDs(c.Query("markSetIds"))
	if len(ids) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrBadParams, "markSetIds is required"))
		return
	}
	q := models.CombinedQuery{
		MarkSetIDs: ids,
		Scope:      models.StudentScope(c.DefaultQuery("scope", string(models.ScopeAll))),
		Search:     c.Query("search"),
		SortBy:     c.Query("sortBy"),
		SortDir:    models.SortDirection(c.DefaultQuery("sortDir", string(models.SortAsc))),
		Cohort:     cohortFromQuery(c),
	}
	file, err := h.reports.ExportCombined(c.Request.Context(), q, service.ReportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// Download godoc
// @Summary Download a previously exported report by signed token
// @Tags Reports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /reports/download/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	path, err := h.reports.Download(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
