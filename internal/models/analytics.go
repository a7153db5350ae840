package models

import "time"

// SortDirection orders analytics rows.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// CohortFilter restricts rows by an inclusive final-mark range. Nil bounds
// leave a side open; IncludeNoFinal keeps students without a computable mark.
type CohortFilter struct {
	FinalMin       *float64
	FinalMax       *float64
	IncludeNoFinal bool
}

// MarkQuery shapes a single-mark-set analytics request. Filters restrict the
// assessments feeding computation; scope restricts students; search, sort,
// paging and cohort are applied after computation.
type MarkQuery struct {
	MarkSetID string
	Scope     StudentScope
	Term      int
	Category  string
	TypesMask int
	Search    string
	SortBy    string
	SortDir   SortDirection
	Page      int
	PageSize  int
	Cohort    *CohortFilter
}

// CombinedQuery shapes a cross-mark-set analytics request.
type CombinedQuery struct {
	MarkSetIDs []string
	Scope      StudentScope
	Search     string
	SortBy     string
	SortDir    SortDirection
	Page       int
	PageSize   int
	Cohort     *CohortFilter
}

// CategoryBreakdown is one category's contribution to a student's final mark.
type CategoryBreakdown struct {
	Category    string   `json:"category"`
	Weight      float64  `json:"weight"`
	Percent     *float64 `json:"percent,omitempty"`
	UsableCount int      `json:"usable_count"`
	Bonus       bool     `json:"bonus"`
	Excluded    bool     `json:"excluded"`
}

// AssessmentBreakdown is one assessment's contribution for a student.
type AssessmentBreakdown struct {
	AssessmentID string      `json:"assessment_id"`
	Title        string      `json:"title"`
	Category     string      `json:"category"`
	Weight       float64     `json:"weight"`
	OutOf        float64     `json:"out_of"`
	Raw          *float64    `json:"raw,omitempty"`
	Percent      *float64    `json:"percent,omitempty"`
	Status       ScoreStatus `json:"status"`
}

// MarkRow is one student's computed result for a mark set.
type MarkRow struct {
	StudentID     string                `json:"student_id"`
	StudentName   string                `json:"student_name"`
	Position      int                   `json:"position"`
	Final         *float64              `json:"final,omitempty"`
	PerCategory   []CategoryBreakdown   `json:"per_category,omitempty"`
	PerAssessment []AssessmentBreakdown `json:"per_assessment,omitempty"`
}

// MarkSetMark is one mark set's share of a combined result.
type MarkSetMark struct {
	MarkSetID string   `json:"mark_set_id"`
	Weight    float64  `json:"weight"`
	Final     *float64 `json:"final,omitempty"`
}

// CombinedRow is one student's cross-mark-set combination.
type CombinedRow struct {
	StudentID   string        `json:"student_id"`
	StudentName string        `json:"student_name"`
	Combined    *float64      `json:"combined,omitempty"`
	PerMarkSet  []MarkSetMark `json:"per_mark_set"`
}

// DistributionBin is one of the six fixed-width bins over 0–100 percent.
type DistributionBin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// MarkKPIs aggregates the full filtered population, independent of paging.
type MarkKPIs struct {
	Population int      `json:"population"`
	WithFinal  int      `json:"with_final"`
	Average    *float64 `json:"average,omitempty"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
}

// MarkReport is the shaped analytics/reporting payload for one mark set.
type MarkReport struct {
	MarkSetID    string            `json:"mark_set_id"`
	Rows         []MarkRow         `json:"rows"`
	KPIs         MarkKPIs          `json:"kpis"`
	Distribution []DistributionBin `json:"distribution"`
	GeneratedAt  time.Time         `json:"generated_at"`
}

// CombinedReport is the shaped cross-mark-set payload.
type CombinedReport struct {
	MarkSetIDs        []string          `json:"mark_set_ids"`
	Rows              []CombinedRow     `json:"rows"`
	KPIs              MarkKPIs          `json:"kpis"`
	Distribution      []DistributionBin `json:"distribution"`
	FallbackUsedCount int               `json:"fallback_used_count"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// SystemMetrics is a lightweight snapshot of runtime counters for the
// status endpoint; Prometheus scrapes carry the full series.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ComputationsTotal        uint64    `json:"computations_total"`
	AverageComputationMs     float64   `json:"average_computation_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
