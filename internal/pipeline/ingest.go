// Package pipeline holds the pure stages applied to every fetched event
// list: ordering, filtering and aggregation.
package pipeline

import (
	"sort"

	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
)

// Ingest returns a copy of records ordered newest first. Equal timestamps
// keep their input order and records without a valid timestamp go last.
// No record is ever dropped.
func Ingest(records []event.Record) []event.Record {
	out := make([]event.Record, len(records))
	copy(out, records)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.TimeValid && b.TimeValid:
			return a.Time.After(b.Time)
		case a.TimeValid:
			return true
		default:
			return false
		}
	})
	return out
}
