package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openmarks/markbook-api/internal/marks"
	"github.com/openmarks/markbook-api/internal/models"
)

// AnalyticsService wraps the mark engine with read-only shaping: student
// scope, cohort thresholds, search, sort, paging, KPIs and distribution
// binning. Shaping never alters a computed mark; KPIs and distribution
// always cover the full filtered population while rows reflect the page.
type AnalyticsService struct {
	markData *MarkService
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(markData *MarkService, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{markData: markData, cache: cache, metrics: metrics, logger: logger}
}

// Marks returns one mark set's shaped analytics. The boolean reports
// whether the payload came from cache.
func (s *AnalyticsService) Marks(ctx context.Context, q models.MarkQuery) (*models.MarkReport, *models.Pagination, bool, error) {
	cacheKey := markCacheKey(q)
	var cached struct {
		Report     models.MarkReport  `json:"report"`
		Pagination *models.Pagination `json:"pagination"`
	}
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached.Report, cached.Pagination, true, nil
		}
	}

	start := time.Now()
	data, err := s.markData.ComputeMarkSet(ctx, q)
	if err != nil {
		return nil, nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveComputation("marks", time.Since(start))
	}

	rows := make([]models.MarkRow, 0, len(data.Students))
	for _, st := range data.Students {
		if !inScope(q.Scope, st, data.Valid[st.ID]) {
			continue
		}
		result := data.Results[st.ID]
		rows = append(rows, models.MarkRow{
			StudentID:     st.ID,
			StudentName:   st.FullName,
			Position:      st.Position,
			Final:         result.Final,
			PerCategory:   result.PerCategory,
			PerAssessment: result.PerAssessment,
		})
	}
	rows = applyCohort(rows, q.Cohort, func(r models.MarkRow) *float64 { return r.Final })

	report := &models.MarkReport{
		MarkSetID:    q.MarkSetID,
		KPIs:         markKPIs(rows, func(r models.MarkRow) *float64 { return r.Final }),
		Distribution: distributionOf(rows, func(r models.MarkRow) *float64 { return r.Final }),
		GeneratedAt:  time.Now().UTC(),
	}

	rows = searchRows(rows, q.Search, func(r models.MarkRow) string { return r.StudentName })
	sortMarkRows(rows, q.SortBy, q.SortDir)
	paged, pagination := pageRows(rows, q.Page, q.PageSize)
	report.Rows = paged

	if s.cache != nil {
		cached.Report = *report
		cached.Pagination = pagination
		if err := s.cache.Set(ctx, cacheKey, cached, 0); err != nil {
			s.logger.Warn("cache marks", zap.Error(err))
		}
	}
	return report, pagination, false, nil
}

// Combined returns shaped cross-mark-set analytics.
func (s *AnalyticsService) Combined(ctx context.Context, q models.CombinedQuery) (*models.CombinedReport, *models.Pagination, bool, error) {
	cacheKey := combinedCacheKey(q)
	var cached struct {
		Report     models.CombinedReport `json:"report"`
		Pagination *models.Pagination    `json:"pagination"`
	}
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached.Report, cached.Pagination, true, nil
		}
	}

	start := time.Now()
	data, err := s.markData.ComputeCombined(ctx, q.MarkSetIDs)
	if err != nil {
		return nil, nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveComputation("combined", time.Since(start))
	}

	combinedByStudent := make(map[string]marks.StudentCombination, len(data.Result.PerStudent))
	for _, sc := range data.Result.PerStudent {
		combinedByStudent[sc.StudentID] = sc
	}

	rows := make([]models.CombinedRow, 0, len(data.Students))
	for _, st := range data.Students {
		if !inCombinedScope(q.Scope, st, data.Valid[st.ID]) {
			continue
		}
		sc := combinedByStudent[st.ID]
		rows = append(rows, models.CombinedRow{
			StudentID:   st.ID,
			StudentName: st.FullName,
			Combined:    sc.Combined,
			PerMarkSet:  sc.PerMarkSet,
		})
	}
	rows = applyCohort(rows, q.Cohort, func(r models.CombinedRow) *float64 { return r.Combined })

	ids := make([]string, len(data.MarkSets))
	for i, ms := range data.MarkSets {
		ids[i] = ms.ID
	}
	report := &models.CombinedReport{
		MarkSetIDs:        ids,
		KPIs:              markKPIs(rows, func(r models.CombinedRow) *float64 { return r.Combined }),
		Distribution:      distributionOf(rows, func(r models.CombinedRow) *float64 { return r.Combined }),
		FallbackUsedCount: data.Result.FallbackUsedCount,
		GeneratedAt:       time.Now().UTC(),
	}

	rows = searchRows(rows, q.Search, func(r models.CombinedRow) string { return r.StudentName })
	sortCombinedRows(rows, q.SortBy, q.SortDir)
	paged, pagination := pageRows(rows, q.Page, q.PageSize)
	report.Rows = paged

	if s.cache != nil {
		cached.Report = *report
		cached.Pagination = pagination
		if err := s.cache.Set(ctx, cacheKey, cached, 0); err != nil {
			s.logger.Warn("cache combined", zap.Error(err))
		}
	}
	return report, pagination, false, nil
}

// InvalidateClass drops cached analytics after a write touching the class.
func (s *AnalyticsService) InvalidateClass(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "analytics:*"); err != nil {
		s.logger.Warn("analytics cache invalidation failed", zap.Error(err))
	}
}

func inScope(scope models.StudentScope, st models.Student, valid bool) bool {
	switch scope {
	case models.ScopeActive:
		return st.Active
	case models.ScopeValid:
		return st.Active && valid
	default:
		return true
	}
}

// inCombinedScope treats "valid" as valid for every selected mark set.
func inCombinedScope(scope models.StudentScope, st models.Student, valid map[string]bool) bool {
	switch scope {
	case models.ScopeActive:
		return st.Active
	case models.ScopeValid:
		if !st.Active {
			return false
		}
		for _, v := range valid {
			if !v {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func applyCohort[T any](rows []T, cohort *models.CohortFilter, final func(T) *float64) []T {
	if cohort == nil {
		return rows
	}
	kept := rows[:0]
	for _, row := range rows {
		f := final(row)
		if f == nil {
			if cohort.IncludeNoFinal {
				kept = append(kept, row)
			}
			continue
		}
		if cohort.FinalMin != nil && *f < *cohort.FinalMin {
			continue
		}
		if cohort.FinalMax != nil && *f > *cohort.FinalMax {
			continue
		}
		kept = append(kept, row)
	}
	return kept
}

func markKPIs[T any](rows []T, final func(T) *float64) models.MarkKPIs {
	kpis := models.MarkKPIs{Population: len(rows)}
	var sum float64
	for _, row := range rows {
		f := final(row)
		if f == nil {
			continue
		}
		if kpis.WithFinal == 0 {
			min, max := *f, *f
			kpis.Min, kpis.Max = &min, &max
		} else {
			if *f < *kpis.Min {
				*kpis.Min = *f
			}
			if *f > *kpis.Max {
				*kpis.Max = *f
			}
		}
		kpis.WithFinal++
		sum += *f
	}
	if kpis.WithFinal > 0 {
		avg := marks.Round1(sum / float64(kpis.WithFinal))
		kpis.Average = &avg
	}
	return kpis
}

func distributionOf[T any](rows []T, final func(T) *float64) []models.DistributionBin {
	finals := make([]float64, 0, len(rows))
	for _, row := range rows {
		if f := final(row); f != nil {
			finals = append(finals, *f)
		}
	}
	return marks.Distribution(finals)
}

func searchRows[T any](rows []T, search string, name func(T) string) []T {
	if search == "" {
		return rows
	}
	needle := strings.ToLower(search)
	kept := rows[:0]
	for _, row := range rows {
		if strings.Contains(strings.ToLower(name(row)), needle) {
			kept = append(kept, row)
		}
	}
	return kept
}

func sortMarkRows(rows []models.MarkRow, sortBy string, dir models.SortDirection) {
	less := func(i, j int) bool { return rows[i].Position < rows[j].Position }
	switch sortBy {
	case "name":
		less = func(i, j int) bool { return rows[i].StudentName < rows[j].StudentName }
	case "final":
		less = func(i, j int) bool { return lessFinal(rows[i].Final, rows[j].Final) }
	}
	applySort(rows, less, dir)
}

func sortCombinedRows(rows []models.CombinedRow, sortBy string, dir models.SortDirection) {
	less := func(i, j int) bool { return rows[i].StudentName < rows[j].StudentName }
	if sortBy == "final" || sortBy == "combined" {
		less = func(i, j int) bool { return lessFinal(rows[i].Combined, rows[j].Combined) }
	}
	applySort(rows, less, dir)
}

// lessFinal orders ascending with null finals last.
func lessFinal(a, b *float64) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return *a < *b
}

func applySort[T any](rows []T, less func(i, j int) bool, dir models.SortDirection) {
	if dir == models.SortDesc {
		sort.SliceStable(rows, func(i, j int) bool { return less(j, i) })
		return
	}
	sort.SliceStable(rows, less)
}

func pageRows[T any](rows []T, page, pageSize int) ([]T, *models.Pagination) {
	if pageSize <= 0 {
		return rows, nil
	}
	if page < 1 {
		page = 1
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: len(rows)}
	start := (page - 1) * pageSize
	if start >= len(rows) {
		return []T{}, pagination
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], pagination
}

func markCacheKey(q models.MarkQuery) string {
	cohort := "-"
	if q.Cohort != nil {
		cohort = fmt.Sprintf("%v:%v:%t", fmtBound(q.Cohort.FinalMin), fmtBound(q.Cohort.FinalMax), q.Cohort.IncludeNoFinal)
	}
	return fmt.Sprintf("analytics:marks:%s:%s:%d:%s:%d:%s:%s:%s:%d:%d:%s",
		q.MarkSetID, q.Scope, q.Term, q.Category, q.TypesMask, q.Search, q.SortBy, q.SortDir, q.Page, q.PageSize, cohort)
}

func combinedCacheKey(q models.CombinedQuery) string {
	cohort := "-"
	if q.Cohort != nil {
		cohort = fmt.Sprintf("%v:%v:%t", fmtBound(q.Cohort.FinalMin), fmtBound(q.Cohort.FinalMax), q.Cohort.IncludeNoFinal)
	}
	return fmt.Sprintf("analytics:combined:%s:%s:%s:%s:%s:%d:%d:%s",
		strings.Join(q.MarkSetIDs, ","), q.Scope, q.Search, q.SortBy, q.SortDir, q.Page, q.PageSize, cohort)
}

func fmtBound(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}
