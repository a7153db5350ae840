package marks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineDeclaredWeights(t *testing.T) {
	selected := []SelectedMarkSet{
		{ID: "ms1", Weight: 3, FinalByStudent: map[string]*float64{"stu1": ptr(80), "stu2": ptr(60)}},
		{ID: "ms2", Weight: 1, FinalByStudent: map[string]*float64{"stu1": ptr(40)}},
	}

	result := Combine(selected, []string{"stu1", "stu2"})
	require.Len(t, result.PerStudent, 2)
	assert.Zero(t, result.FallbackUsedCount)

	// stu1: (80*3 + 40*1) / 4 = 70
	require.NotNil(t, result.PerStudent[0].Combined)
	assert.InDelta(t, 70.0, *result.PerStudent[0].Combined, 0.05)

	// stu2 only has ms1; weights renormalise over available marks.
	require.NotNil(t, result.PerStudent[1].Combined)
	assert.InDelta(t, 60.0, *result.PerStudent[1].Combined, 0.05)
}

func TestCombineEqualWeightFallback(t *testing.T) {
	selected := []SelectedMarkSet{
		{ID: "ms1", Weight: 0, FinalByStudent: map[string]*float64{"stu1": ptr(80)}},
		{ID: "ms2", Weight: 0, FinalByStudent: map[string]*float64{"stu1": ptr(60)}},
	}

	result := Combine(selected, []string{"stu1"})
	require.Len(t, result.PerStudent, 1)
	require.NotNil(t, result.PerStudent[0].Combined)
	assert.InDelta(t, 70.0, *result.PerStudent[0].Combined, 0.05)
	assert.Greater(t, result.FallbackUsedCount, 0)
}

func TestCombineNoAvailableMarks(t *testing.T) {
	selected := []SelectedMarkSet{
		{ID: "ms1", Weight: 1, FinalByStudent: map[string]*float64{}},
	}

	result := Combine(selected, []string{"stu1"})
	require.Len(t, result.PerStudent, 1)
	assert.Nil(t, result.PerStudent[0].Combined)
	assert.Zero(t, result.FallbackUsedCount)
	require.Len(t, result.PerStudent[0].PerMarkSet, 1)
	assert.Nil(t, result.PerStudent[0].PerMarkSet[0].Final)
}
