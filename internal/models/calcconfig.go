package models

// CalcConfig carries the calculation settings threaded into every
// computation call. Defaults come from the legacy settings file imported at
// workspace open; an explicit override may replace them and an explicit
// clear restores the imported values.
type CalcConfig struct {
	// Roff rounds percentages to the nearest integer before threshold
	// comparison in mode calculations.
	Roff bool `json:"roff"`
	// ModeActiveLevels is the number of active threshold levels.
	ModeActiveLevels int `json:"mode_active_levels"`
	// ModeVals holds 2*ModeActiveLevels ascending bounds forming
	// [low, high) pairs; the top pair is inclusive.
	ModeVals []float64 `json:"mode_vals"`
	// ModeSymbols are display symbols per level; not used in computation.
	ModeSymbols []string `json:"mode_symbols"`
}

// DefaultCalcConfig returns the built-in settings used when neither the
// legacy import nor an override supplies values.
func DefaultCalcConfig() CalcConfig {
	return CalcConfig{
		Roff:             false,
		ModeActiveLevels: 5,
		ModeVals:         []float64{0, 50, 50, 60, 60, 70, 70, 80, 80, 100},
		ModeSymbols:      []string{"F", "D", "C", "B", "A"},
	}
}

// Valid reports whether the threshold table is internally consistent.
func (c CalcConfig) Valid() bool {
	if c.ModeActiveLevels < 1 || len(c.ModeVals) < 2*c.ModeActiveLevels {
		return false
	}
	for i := 1; i < 2*c.ModeActiveLevels; i++ {
		if c.ModeVals[i] < c.ModeVals[i-1] {
			return false
		}
	}
	return true
}
