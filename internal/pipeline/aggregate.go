package pipeline

import (
	"sort"

	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
)

// Stats summarises the full ingested set, independent of any Filter.
type Stats struct {
	Total           int            `json:"total"`
	DistinctPlayers int            `json:"distinct_players"`
	PerType         map[string]int `json:"per_type"`
}

// Aggregate counts records, distinct players (case-sensitive) and records
// per event type.
func Aggregate(records []event.Record) Stats {
	s := Stats{
		Total:   len(records),
		PerType: make(map[string]int),
	}
	players := make(map[string]struct{})
	for _, r := range records {
		s.PerType[r.Type]++
		if name, ok := r.PlayerName(); ok {
			players[name] = struct{}{}
		}
	}
	s.DistinctPlayers = len(players)
	return s
}

// Count returns the number of records of the given type, zero when none
// were seen.
func (s Stats) Count(eventType string) int {
	return s.PerType[eventType]
}

// TypeCount pairs an event type with its count.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Types returns observed types ordered by count descending, then name.
func (s Stats) Types() []TypeCount {
	out := make([]TypeCount, 0, len(s.PerType))
	for t, n := range s.PerType {
		out = append(out, TypeCount{Type: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}
