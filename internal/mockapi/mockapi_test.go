package mockapi

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/ServerEye/internal/client"
	"github.com/SmitUplenchwar2687/ServerEye/internal/clock"
	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
	"github.com/SmitUplenchwar2687/ServerEye/internal/generate"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seeded(t *testing.T, opts Options) (*Server, *client.Client) {
	t.Helper()
	records, err := generate.Events(generate.Options{
		Count:    20,
		Players:  3,
		Duration: 4 * time.Hour,
		Start:    now.Add(-4 * time.Hour),
		Seed:     11,
	})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewVirtualClock(now)
	}
	opts.Events = records
	s := New(opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	c, err := client.New(client.Config{Address: ts.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return s, c
}

func TestMockAPI_ServesEvents(t *testing.T) {
	_, c := seeded(t, Options{})
	records, err := c.Events(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 20 {
		t.Fatalf("len = %d, want 20", len(records))
	}
	if _, err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping() = %v", err)
	}
}

func TestMockAPI_Status(t *testing.T) {
	_, c := seeded(t, Options{MaxCacheSize: 25, AutoCleanup: true, CleanupPeriod: 12 * time.Hour})
	st, err := c.CleanupStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.CurrentCacheSize != 20 || st.MaxCacheSize != 25 || st.UsagePercent() != 80 {
		t.Errorf("status = %+v", st)
	}
	if !st.AutoCleanupEnabled || st.CleanupIntervalHours != 12 {
		t.Errorf("cleanup settings = %+v", st)
	}
	if st.OldestEventAgeDays != 0.1 {
		t.Errorf("oldest age = %v days, want 0.1", st.OldestEventAgeDays)
	}
}

func TestMockAPI_Cleanup(t *testing.T) {
	s, c := seeded(t, Options{Retain: 2 * time.Hour})

	res, err := c.TriggerCleanup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.DeletedCount != 10 || s.Len() != 10 {
		t.Errorf("result = %+v, remaining %d", res, s.Len())
	}
	if res.Status == nil || res.Status.CurrentCacheSize != 10 {
		t.Errorf("status = %+v", res.Status)
	}

	s.RefuseCleanup("cleanup already running")
	_, err = c.TriggerCleanup(context.Background())
	var cf *client.CleanupFailure
	if !errors.As(err, &cf) || cf.Result.Message != "cleanup already running" {
		t.Errorf("err = %v, want CleanupFailure", err)
	}
	if s.Len() != 10 {
		t.Error("refused cleanup removed events")
	}
}

func TestMockAPI_MaxCacheDropsOldest(t *testing.T) {
	s := New(Options{Clock: clock.NewVirtualClock(now), MaxCacheSize: 2})
	mk := func(ts string) event.Record {
		return event.DecodeRecord([]byte(`{"event":"block_place","timestamp":"`+ts+`"}`), event.DecodeOptions{})
	}
	s.Add(mk("2024-05-01T10:00:00Z"), mk("2024-04-28T12:00:00Z"), mk("2024-05-01T09:00:00Z"))
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if got := s.Status().OldestEventAgeDays; got != 0.1 {
		t.Errorf("oldest age = %v, want 0.1 (the three day old event dropped)", got)
	}
}

func TestMockAPI_LiveEvents(t *testing.T) {
	vc := clock.NewVirtualClock(now)
	s := New(Options{Clock: vc, Addr: "127.0.0.1:0", LiveInterval: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Len() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("live events = %d, want 3", s.Len())
		}
		vc.Advance(time.Minute)
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v", err)
	}
}
