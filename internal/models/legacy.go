package models

// ExportBlock is one assessment column decoded from a legacy export file:
// title, maximum score and the ordered per-student raw values. The value
// slice is either lastStudent or lastStudent+1 long; alignment is by index
// from the start and any trailing extra slot is an artifact of the fixed
// format.
type ExportBlock struct {
	Title  string    `json:"title"`
	OutOf  float64   `json:"out_of"`
	Values []float64 `json:"values"`
}

// ExportFile is the decoded form of one legacy fixed-format export.
type ExportFile struct {
	LastStudent int           `json:"last_student"`
	Blocks      []ExportBlock `json:"blocks"`
}

// LegacyUserConfig is the decoded legacy settings file. Parsing it is
// best-effort; callers treat failure as "no override available".
type LegacyUserConfig struct {
	ModeActiveLevels int       `json:"mode_active_levels"`
	ModeVals         []float64 `json:"mode_vals"`
	ModeSymbols      []string  `json:"mode_symbols"`
	RoffDefault      bool      `json:"roff_default"`
}
