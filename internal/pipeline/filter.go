package pipeline

import (
	"strings"

	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
)

// AllTypes is the event-type selection that matches every record.
const AllTypes = "all"

// Filter is the operator's current selection. The zero Filter matches
// everything.
type Filter struct {
	EventType string `json:"event"`  // AllTypes, empty, or an exact event type
	Player    string `json:"player"` // case-insensitive substring; empty matches all
}

// Normalize trims the player text and maps an empty type to AllTypes.
func (f Filter) Normalize() Filter {
	f.Player = strings.TrimSpace(f.Player)
	if strings.TrimSpace(f.EventType) == "" {
		f.EventType = AllTypes
	}
	return f
}

// IsZero reports whether f matches every record.
func (f Filter) IsZero() bool {
	return (f.EventType == "" || f.EventType == AllTypes) && f.Player == ""
}

// Match returns true if the record passes both predicates.
func (f Filter) Match(r event.Record) bool {
	if f.EventType != "" && f.EventType != AllTypes && r.Type != f.EventType {
		return false
	}
	if f.Player == "" {
		return true
	}
	name, ok := r.PlayerName()
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(f.Player))
}

// Apply returns the records matching f in their original order. The input
// is never modified.
func (f Filter) Apply(records []event.Record) []event.Record {
	out := make([]event.Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
