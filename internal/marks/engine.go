package marks

import (
	"github.com/openmarks/markbook-api/internal/models"
)

// Result is one student's computed outcome for a mark set. Final is nil when
// the student's membership bit is unset or no assessment has a usable score.
type Result struct {
	Final         *float64
	PerCategory   []models.CategoryBreakdown
	PerAssessment []models.AssessmentBreakdown
}

// ComputeFinalMark computes one student's final mark for a mark set.
// Assessments with weight 0 are deleted-like and excluded; categories with
// weight 0 are computed but excluded from the weighted combination; the
// bonus category is added on top after the non-bonus categories combine.
// Scores are keyed by assessment id.
func ComputeFinalMark(
	markSet models.MarkSet,
	categories []models.Category,
	assessments []models.Assessment,
	scores map[string]models.Score,
	membershipValid bool,
	cfg models.CalcConfig,
) Result {
	if !membershipValid {
		return Result{}
	}

	policy := PolicyFor(markSet.CalcMethod, cfg)
	weights := categoryWeights(categories)

	perAssessment := make([]models.AssessmentBreakdown, 0, len(assessments))
	byCategory := make(map[string][]WeightedPercent)
	order := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		order = append(order, c.Name)
		seen[c.Name] = true
	}

	for _, a := range assessments {
		if a.Deleted() {
			continue
		}
		score, ok := scores[a.ID]
		breakdown := models.AssessmentBreakdown{
			AssessmentID: a.ID,
			Title:        a.Title,
			Category:     a.Category,
			Weight:       a.Weight,
			OutOf:        a.OutOf,
			Status:       models.ScoreNoMark,
		}
		if ok {
			breakdown.Status = score.Status
			breakdown.Raw = score.Raw
			if score.Usable() && a.OutOf > 0 {
				pct := score.Value() / a.OutOf * 100
				breakdown.Percent = &pct
				byCategory[a.Category] = append(byCategory[a.Category], WeightedPercent{Percent: pct, Weight: a.Weight})
				if !seen[a.Category] {
					seen[a.Category] = true
					order = append(order, a.Category)
				}
			}
		}
		perAssessment = append(perAssessment, breakdown)
	}

	perCategory := make([]models.CategoryBreakdown, 0, len(order))
	for _, name := range order {
		weight, defined := weights[name]
		bonus := name == models.BonusCategoryName
		entries := byCategory[name]
		breakdown := models.CategoryBreakdown{
			Category:    name,
			Weight:      weight,
			UsableCount: len(entries),
			Bonus:       bonus,
			// Undefined categories carry no weight, so they are computed
			// but never enter the combination.
			Excluded: !bonus && (!defined || weight == 0),
		}
		if pct, ok := policy.Combine(entries); ok {
			breakdown.Percent = &pct
		}
		perCategory = append(perCategory, breakdown)
	}

	final := combineFinal(markSet, perCategory, byCategory, weights, policy)
	return Result{Final: final, PerCategory: perCategory, PerAssessment: perAssessment}
}

func combineFinal(
	markSet models.MarkSet,
	perCategory []models.CategoryBreakdown,
	byCategory map[string][]WeightedPercent,
	weights map[string]float64,
	policy Policy,
) *float64 {
	var beforeBonus float64
	var computed bool

	switch markSet.WeightMethod {
	case models.WeightByCategory:
		var sum, total float64
		for _, c := range perCategory {
			if c.Bonus || c.Excluded || c.Percent == nil {
				continue
			}
			sum += *c.Percent * c.Weight
			total += c.Weight
		}
		if total > 0 {
			beforeBonus = sum / total
			computed = true
		}
	default:
		// Assessment-weighted: category boundaries are ignored and the
		// combiner runs across every usable non-bonus score.
		var entries []WeightedPercent
		for name, list := range byCategory {
			if name == models.BonusCategoryName {
				continue
			}
			entries = append(entries, list...)
		}
		if v, ok := policy.Combine(entries); ok {
			beforeBonus = v
			computed = true
		}
	}

	if !computed {
		return nil
	}

	final := beforeBonus
	for _, c := range perCategory {
		if c.Bonus && c.Percent != nil {
			// Bonus weight never enters the non-bonus denominator.
			final += *c.Percent * c.Weight / 100
		}
	}
	rounded := Round1(final)
	return &rounded
}

func categoryWeights(categories []models.Category) map[string]float64 {
	weights := make(map[string]float64, len(categories))
	for _, c := range categories {
		weights[c.Name] = c.Weight
	}
	return weights
}
