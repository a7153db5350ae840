package marks

import (
	"github.com/openmarks/markbook-api/internal/models"
)

// SelectedMarkSet carries one mark set's declared weight and its already
// computed final marks by student id.
type SelectedMarkSet struct {
	ID             string
	Weight         float64
	FinalByStudent map[string]*float64
}

// CombinedResult is the outcome of combining several mark sets.
type CombinedResult struct {
	PerStudent        []StudentCombination
	FallbackUsedCount int
}

// StudentCombination is one student's combined final mark with the
// per-mark-set inputs that produced it.
type StudentCombination struct {
	StudentID  string
	Combined   *float64
	PerMarkSet []models.MarkSetMark
}

// Combine computes one combined final mark per student. Declared weights are
// renormalised over each student's available (non-nil) marks. When the sum
// of declared weights across the selection is zero, every combination
// switches to equal weights; this is a property of the selection, not of any
// single student.
func Combine(selected []SelectedMarkSet, studentIDs []string) CombinedResult {
	var declaredTotal float64
	for _, ms := range selected {
		declaredTotal += ms.Weight
	}
	fallback := declaredTotal == 0

	result := CombinedResult{PerStudent: make([]StudentCombination, 0, len(studentIDs))}
	for _, studentID := range studentIDs {
		combination := StudentCombination{
			StudentID:  studentID,
			PerMarkSet: make([]models.MarkSetMark, 0, len(selected)),
		}
		var sum, total float64
		for _, ms := range selected {
			final := ms.FinalByStudent[studentID]
			combination.PerMarkSet = append(combination.PerMarkSet, models.MarkSetMark{
				MarkSetID: ms.ID,
				Weight:    ms.Weight,
				Final:     final,
			})
			if final == nil {
				continue
			}
			weight := ms.Weight
			if fallback {
				weight = 1
			}
			sum += *final * weight
			total += weight
		}
		if total > 0 {
			combined := Round1(sum / total)
			combination.Combined = &combined
			if fallback {
				result.FallbackUsedCount++
			}
		}
		result.PerStudent = append(result.PerStudent, combination)
	}
	return result
}
