package models

import "time"

// Student belongs to one class roster. Position is the stable roster index
// the legacy system addressed score edits by.
type Student struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Position  int       `db:"position" json:"position"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentScope restricts which students an analytics query covers.
// all ⊇ active ⊇ valid.
type StudentScope string

const (
	ScopeAll    StudentScope = "all"
	ScopeActive StudentScope = "active"
	// ScopeValid further restricts to students whose membership bit is set
	// for the mark set in play.
	ScopeValid StudentScope = "valid"
)

// MembershipMask is a per-student set of validity bits keyed by mark set id.
// The store serialises it as a string of '0'/'1' characters ordered by the
// mark sets' sort order; in memory it stays an indexable bool map.
type MembershipMask map[string]bool

// Valid reports whether the student is valid for the given mark set. Mark
// sets missing from the mask default to valid, matching the legacy reading
// of a short mask string.
func (m MembershipMask) Valid(markSetID string) bool {
	if m == nil {
		return true
	}
	bit, ok := m[markSetID]
	if !ok {
		return true
	}
	return bit
}

// EncodeMembership renders the mask to its store string, one character per
// mark set ordered by sort order.
func EncodeMembership(mask MembershipMask, ordered []MarkSet) string {
	buf := make([]byte, len(ordered))
	for i, ms := range ordered {
		if mask.Valid(ms.ID) {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}

// DecodeMembership parses the store string against the ordered mark sets.
// A short string leaves trailing mark sets valid; extra characters are
// ignored.
func DecodeMembership(raw string, ordered []MarkSet) MembershipMask {
	mask := make(MembershipMask, len(ordered))
	for i, ms := range ordered {
		if i < len(raw) {
			mask[ms.ID] = raw[i] == '1'
		} else {
			mask[ms.ID] = true
		}
	}
	return mask
}

// StudentFilter narrows student listings.
type StudentFilter struct {
	ClassID  string
	Scope    StudentScope
	Search   string
	Page     int
	PageSize int
}
