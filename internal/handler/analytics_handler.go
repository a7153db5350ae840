package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openmarks/markbook-api/internal/models"
	"github.com/openmarks/markbook-api/internal/service"
	appErrors "github.com/openmarks/markbook-api/pkg/errors"
	"github.com/openmarks/markbook-api/pkg/response"
)

// AnalyticsHandler exposes shaped mark analytics.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	metrics   *service.MetricsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService, metrics *service.MetricsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, metrics: metrics}
}

// Marks godoc
// @Summary Shaped analytics for one mark set
// @Tags Analytics
// @Produce json
// @Param id path string true "Mark set id"
// @Param scope query string false "all, active or valid"
// @Param term query int false "Restrict assessments by term"
// @Param category query string false "Restrict assessments by category"
// @Param typesMask query int false "Legacy type bitmask"
// @Param search query string false "Case-insensitive name substring"
// @Param sortBy query string false "position, name or final"
// @Param sortDir query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /analytics/mark-sets/{id} [get]
func (h *AnalyticsHandler) Marks(c *gin.Context) {
	q := models.MarkQuery{
		MarkSetID: c.Param("id"),
		Scope:     models.StudentScope(c.DefaultQuery("scope", string(models.ScopeAll))),
		Term:      queryInt(c, "term", 0),
		Category:  c.Query("category"),
		TypesMask: queryInt(c, "typesMask", 0),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortDir:   models.SortDirection(c.DefaultQuery("sortDir", string(models.SortAsc))),
		Page:      queryInt(c, "page", 0),
		PageSize:  queryInt(c, "pageSize", 0),
		Cohort:    cohortFromQuery(c),
	}
	report, pagination, cached, err := h.analytics.Marks(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, pagination, map[string]interface{}{"cached": cached})
}

// Combined godoc
// @Summary Shaped cross-mark-set analytics
// @Tags Analytics
// @Produce json
// @Param markSetIds query string true "Comma-separated mark set ids"
// @Param scope query string false "all, active or valid"
// @Success 200 {object} response.Envelope
// @Router /analytics/combined [get]
func (h *AnalyticsHandler) Combined(c *gin.Context) {
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
		Page:       queryInt(c, "page", 0),
		PageSize:   queryInt(c, "pageSize", 0),
		Cohort:     cohortFromQuery(c),
	}
	report, pagination, cached, err := h.analytics.Combined(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, pagination, map[string]interface{}{"cached": cached})
}

// Status godoc
// @Summary Runtime counters snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/status [get]
func (h *AnalyticsHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

func cohortFromQuery(c *gin.Context) *models.CohortFilter {
	minRaw, maxRaw := c.Query("finalMin"), c.Query("finalMax")
	includeNoFinal := c.Query("includeNoFinal") == "true"
	if minRaw == "" && maxRaw == "" && !includeNoFinal {
		return nil
	}
	cohort := &models.CohortFilter{IncludeNoFinal: includeNoFinal}
	if v, err := strconv.ParseFloat(minRaw, 64); err == nil {
		cohort.FinalMin = &v
	}
	if v, err := strconv.ParseFloat(maxRaw, 64); err == nil {
		cohort.FinalMax = &v
	}
	return cohort
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}
