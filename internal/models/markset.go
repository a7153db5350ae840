package models

import "time"

// WeightMethod selects how assessment results combine into a final mark.
type WeightMethod string

const (
	// WeightByAssessment combines usable scores across the whole mark set.
	WeightByAssessment WeightMethod = "ASSESSMENT"
	// WeightByCategory combines per-category percentages using category weights.
	WeightByCategory WeightMethod = "CATEGORY"
)

// CalcMethod selects the combining statistic.
type CalcMethod string

const (
	CalcAverage CalcMethod = "AVERAGE"
	CalcMedian  CalcMethod = "MEDIAN"
	CalcMode    CalcMethod = "MODE"
)

// BonusCategoryName marks a category as additive: its weighted percentage is
// added on top of the combined non-bonus mark and it never enters the
// non-bonus denominator.
const BonusCategoryName = "BONUS"

// MarkSet is one gradebook/term unit of assessments and scores for a class.
// SortOrder doubles as the student membership-mask bit index.
type MarkSet struct {
	ID           string       `db:"id" json:"id"`
	ClassID      string       `db:"class_id" json:"class_id"`
	Name         string       `db:"name" json:"name"`
	WeightMethod WeightMethod `db:"weight_method" json:"weight_method"`
	CalcMethod   CalcMethod   `db:"calc_method" json:"calc_method"`
	Weight       float64      `db:"weight" json:"weight"`
	SortOrder    int          `db:"sort_order" json:"sort_order"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// Category groups assessments within a mark set. Weight 0 excludes the
// category from the weighted denominator while its breakdown is still
// computed.
type Category struct {
	ID        string    `db:"id" json:"id"`
	MarkSetID string    `db:"mark_set_id" json:"mark_set_id"`
	Name      string    `db:"name" json:"name"`
	Weight    float64   `db:"weight" json:"weight"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsBonus reports whether this category is the additive bonus category.
func (c Category) IsBonus() bool {
	return c.Name == BonusCategoryName
}

// Assessment is a single scored item. Weight 0 means deleted-like: excluded
// from computation and hidden from default listings, scores retained.
type Assessment struct {
	ID         string    `db:"id" json:"id"`
	MarkSetID  string    `db:"mark_set_id" json:"mark_set_id"`
	Category   string    `db:"category" json:"category"`
	Title      string    `db:"title" json:"title"`
	Weight     float64   `db:"weight" json:"weight"`
	OutOf      float64   `db:"out_of" json:"out_of"`
	Term       int       `db:"term" json:"term"`
	LegacyType int       `db:"legacy_type" json:"legacy_type"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Deleted reports the deleted-like soft state.
func (a Assessment) Deleted() bool {
	return a.Weight == 0
}

// ScoreStatus tags how a raw value should be read.
type ScoreStatus string

const (
	// ScoreNoMark means not entered; excluded from averages.
	ScoreNoMark ScoreStatus = "NO_MARK"
	// ScoreZero is a counted zero.
	ScoreZero ScoreStatus = "ZERO"
	// ScoreScored carries a raw value in [0, outOf].
	ScoreScored ScoreStatus = "SCORED"
)

// Score is the raw result of one student on one assessment. Raw is nil for
// NO_MARK entries.
type Score struct {
	ID           string      `db:"id" json:"id"`
	AssessmentID string      `db:"assessment_id" json:"assessment_id"`
	StudentID    string      `db:"student_id" json:"student_id"`
	Raw          *float64    `db:"raw" json:"raw,omitempty"`
	Status       ScoreStatus `db:"status" json:"status"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// Usable reports whether the score participates in averages.
func (s Score) Usable() bool {
	if s.Status == ScoreNoMark {
		return false
	}
	return s.Status == ScoreZero || s.Raw != nil
}

// Value returns the counted raw value for usable scores.
func (s Score) Value() float64 {
	if s.Status == ScoreZero || s.Raw == nil {
		return 0
	}
	return *s.Raw
}

// AssessmentFilter narrows assessment listings; by default deleted-like
// assessments (weight 0) are hidden.
type AssessmentFilter struct {
	MarkSetID      string
	Category       string
	Term           int
	TypesMask      int
	IncludeDeleted bool
}

// Matches applies the filter dimensions that restrict computation inputs.
// Zero values leave a dimension unrestricted; TypesMask matches when the
// assessment's legacy type bit is present in the mask.
func (f AssessmentFilter) Matches(a Assessment) bool {
	if !f.IncludeDeleted && a.Deleted() {
		return false
	}
	if f.Category != "" && a.Category != f.Category {
		return false
	}
	if f.Term != 0 && a.Term != f.Term {
		return false
	}
	if f.TypesMask != 0 && f.TypesMask&(1<<uint(a.LegacyType)) == 0 {
		return false
	}
	return true
}
