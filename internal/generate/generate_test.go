package generate

import (
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
	"github.com/SmitUplenchwar2687/ServerEye/internal/pipeline"
)

var start = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func TestEvents_AllPatterns(t *testing.T) {
	for _, p := range []string{PatternSteady, PatternBurst, PatternRamp} {
		t.Run(p, func(t *testing.T) {
			records, err := Events(Options{
				Count:    34,
				Players:  3,
				Duration: time.Hour,
				Pattern:  p,
				Start:    start,
				Seed:     7,
			})
			if err != nil {
				t.Fatalf("Events() error = %v", err)
			}
			if len(records) != 34 {
				t.Fatalf("len(records) = %d, want 34", len(records))
			}
			for _, r := range records {
				if r.Type == "" || !r.TimeValid {
					t.Fatalf("record should have type and time: %+v", r)
				}
				if r.Time.Before(start) || r.Time.After(start.Add(time.Hour)) {
					t.Errorf("time %v outside the requested span", r.Time)
				}
				if r.Details.Kind() != event.KindObject {
					t.Errorf("%s details kind = %v", r.Type, r.Details.Kind())
				}
			}
			if got := pipeline.Aggregate(records).DistinctPlayers; got > 3 {
				t.Errorf("distinct players = %d, want at most 3", got)
			}
		})
	}
}

func TestEvents_Deterministic(t *testing.T) {
	opts := Options{Count: 20, Players: 4, Duration: time.Minute, Start: start, Seed: 42, AnonymousRatio: 0.2}
	a, err := Events(opts)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Events(opts)
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("record %d differs between runs with the same seed", i)
		}
	}
}

func TestEvents_RoundTripsThroughJSON(t *testing.T) {
	records, err := Events(Options{Count: 50, Players: 2, Duration: time.Hour, Start: start, Seed: 3, AnonymousRatio: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	data, err := event.MarshalRecords(records)
	if err != nil {
		t.Fatal(err)
	}
	back, err := event.DecodeRecords(data, event.DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	anonymous := 0
	for i := range records {
		if !records[i].Equal(back[i]) {
			t.Errorf("record %d changed across encode/decode", i)
		}
		if _, ok := back[i].PlayerName(); !ok {
			anonymous++
		}
	}
	if anonymous == 0 || anonymous == len(records) {
		t.Errorf("anonymous = %d of %d, want some but not all", anonymous, len(records))
	}
}

func TestEvents_RestrictTypes(t *testing.T) {
	records, err := Events(Options{Count: 10, Players: 1, Duration: time.Minute, Start: start, Seed: 1, Types: []string{event.TypeChatMessage}})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range records {
		if r.Type != event.TypeChatMessage {
			t.Fatalf("type = %q", r.Type)
		}
		if _, ok := r.Details.Get("chat_history"); !ok {
			t.Error("chat message without history")
		}
	}
}

func TestEvents_InvalidOptions(t *testing.T) {
	for _, opts := range []Options{
		{Count: 0, Players: 1, Duration: time.Minute},
		{Count: 1, Players: 0, Duration: time.Minute},
		{Count: 1, Players: 1},
		{Count: 1, Players: 1, Duration: time.Minute, AnonymousRatio: 2},
	} {
		if _, err := Events(opts); err == nil {
			t.Errorf("Events(%+v) should fail", opts)
		}
	}
}

func TestMakePlayers_Unique(t *testing.T) {
	players := makePlayers(20)
	seen := map[string]bool{}
	for _, p := range players {
		if seen[p] {
			t.Fatalf("duplicate player %q", p)
		}
		seen[p] = true
	}
}
