package format

import (
	"strings"
	"time"

	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
)

// Card is the display model of one event.
type Card struct {
	Index     int    `json:"index"` // counts down from the size of the full event set
	Type      string `json:"type"`
	TypeLabel string `json:"type_label"`
	Class     string `json:"class"`
	Time      string `json:"time"`
	Relative  string `json:"relative"`
	Player    string `json:"player"`
	HasPlayer bool   `json:"has_player"`
	Details   []Line `json:"details"`
}

// NewCard builds the card for the record at position (zero based) of a
// view drawn from total ingested records.
func NewCard(r event.Record, position, total int, now time.Time, opts Options) Card {
	opts = opts.withDefaults()
	tr := opts.Localizer

	c := Card{
		Index:     total - position,
		Type:      r.Type,
		TypeLabel: tr.EventType(r.Type),
		Class:     TypeClass(r.Type),
		Relative:  RelativeTime(r, now, tr),
		Details:   Details(r.Details, opts),
	}
	if r.TimeValid {
		c.Time = r.Time.In(opts.Location).Format(tr.TimeLayout())
	} else {
		c.Time = tr.T("unknown")
	}
	if name, ok := r.PlayerName(); ok {
		c.Player, c.HasPlayer = name, true
	} else {
		c.Player = tr.T("unknown_player")
	}
	if r.Type == "" {
		c.TypeLabel = tr.T("unknown")
	}
	return c
}

// Cards builds cards for a filtered view. total is the size of the full
// ingested set so indices match across filters.
func Cards(view []event.Record, total int, now time.Time, opts Options) []Card {
	opts = opts.withDefaults()
	cards := make([]Card, len(view))
	for i, r := range view {
		cards[i] = NewCard(r, i, total, now, opts)
	}
	return cards
}

// TypeClass is the CSS class for an event type. Characters outside
// [a-z0-9_-] become dashes.
func TypeClass(t string) string {
	if t == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, t)
}

// RelativeTime describes how long ago the record happened. Times in the
// future read as "just now".
func RelativeTime(r event.Record, now time.Time, tr Localizer) string {
	if !r.TimeValid {
		return tr.T("unknown")
	}
	return Ago(now.Sub(r.Time), tr)
}

// Ago buckets an elapsed duration into minutes, hours or days.
func Ago(d time.Duration, tr Localizer) string {
	switch {
	case d < time.Minute:
		return tr.T("just_now")
	case d < time.Hour:
		return tr.T("minutes_ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return tr.T("hours_ago", int(d/time.Hour))
	default:
		return tr.T("days_ago", int(d/(24*time.Hour)))
	}
}
