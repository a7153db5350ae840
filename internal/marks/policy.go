// Package marks implements the mark computation engine: calculation
// policies, per-student final marks with category/assessment breakdowns,
// cross-mark-set combination and distribution binning. Everything here is a
// pure function of its inputs so results are stable under identical store
// state and configuration.
package marks

import (
	"math"
	"sort"

	"github.com/openmarks/markbook-api/internal/models"
)

// WeightedPercent is one usable score expressed as a percentage with its
// assessment weight.
type WeightedPercent struct {
	Percent float64
	Weight  float64
}

// Policy combines weighted percentages into one percentage. The boolean is
// false when no combination is possible (no entries or zero total weight).
type Policy interface {
	Combine(entries []WeightedPercent) (float64, bool)
}

// PolicyFor selects the policy for a mark set's calc method under the given
// configuration.
func PolicyFor(method models.CalcMethod, cfg models.CalcConfig) Policy {
	switch method {
	case models.CalcMedian:
		return MedianPolicy{}
	case models.CalcMode:
		return ModePolicy{Levels: cfg.ModeActiveLevels, Thresholds: cfg.ModeVals, Roff: cfg.Roff}
	default:
		return AveragePolicy{}
	}
}

// AveragePolicy is the weighted arithmetic mean.
type AveragePolicy struct{}

// Combine returns Σ(percent*weight) / Σ(weight).
func (AveragePolicy) Combine(entries []WeightedPercent) (float64, bool) {
	var sum, total float64
	for _, e := range entries {
		sum += e.Percent * e.Weight
		total += e.Weight
	}
	if total == 0 {
		return 0, false
	}
	return sum / total, true
}

// MedianPolicy is the weighted median.
type MedianPolicy struct{}

// Combine sorts entries by percentage and walks cumulative weight. The
// first entry whose cumulative weight exceeds half the total is the median;
// when the midpoint lands exactly on an entry boundary the two adjacent
// percentages are averaged.
func (MedianPolicy) Combine(entries []WeightedPercent) (float64, bool) {
	var total float64
	for _, e := range entries {
		total += e.Weight
	}
	if len(entries) == 0 || total == 0 {
		return 0, false
	}

	sorted := make([]WeightedPercent, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Percent < sorted[j].Percent })

	half := total / 2
	var cum float64
	for i, e := range sorted {
		cum += e.Weight
		if cum > half {
			return e.Percent, true
		}
		if cum == half {
			if i+1 < len(sorted) {
				return (e.Percent + sorted[i+1].Percent) / 2, true
			}
			return e.Percent, true
		}
	}
	return sorted[len(sorted)-1].Percent, true
}

// ModePolicy snaps the weighted mean percentage onto the configured
// threshold levels and returns the matched level's midpoint.
type ModePolicy struct {
	Levels     int
	Thresholds []float64
	Roff       bool
}

// Combine computes the weighted mean, optionally rounds it to the nearest
// integer first (roff), and maps it through the [low, high) threshold pairs;
// the top pair is inclusive.
func (p ModePolicy) Combine(entries []WeightedPercent) (float64, bool) {
	mean, ok := AveragePolicy{}.Combine(entries)
	if !ok {
		return 0, false
	}
	return p.snap(mean), true
}

func (p ModePolicy) snap(percent float64) float64 {
	if p.Levels < 1 || len(p.Thresholds) < 2*p.Levels {
		return percent
	}
	if p.Roff {
		percent = math.Round(percent)
	}
	for i := 0; i < p.Levels; i++ {
		low := p.Thresholds[2*i]
		high := p.Thresholds[2*i+1]
		last := i == p.Levels-1
		if percent >= low && (percent < high || (last && percent <= high)) {
			return (low + high) / 2
		}
	}
	// Out-of-range inputs clamp to the nearest level.
	if percent < p.Thresholds[0] {
		return (p.Thresholds[0] + p.Thresholds[1]) / 2
	}
	return (p.Thresholds[2*p.Levels-2] + p.Thresholds[2*p.Levels-1]) / 2
}

// Round1 rounds to one decimal place, the precision used for all externally
// reported marks.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
