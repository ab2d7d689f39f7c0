package debounce

import (
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/ServerEye/internal/clock"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	d := New(300*time.Millisecond, vc)

	var got []string
	for _, s := range []string{"a", "al", "ali"} {
		s := s
		d.Trigger(func() { got = append(got, s) })
		vc.Advance(100 * time.Millisecond)
	}
	if len(got) != 0 {
		t.Fatalf("fired during burst: %v", got)
	}
	if !d.Pending() {
		t.Error("Pending() should be true during quiet period")
	}

	vc.Advance(200 * time.Millisecond)
	if len(got) != 1 || got[0] != "ali" {
		t.Fatalf("got %v, want [ali]", got)
	}
	if d.Pending() {
		t.Error("Pending() should be false after firing")
	}
}

func TestDebouncer_SeparateQuietPeriods(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	d := New(time.Second, vc)

	count := 0
	d.Trigger(func() { count++ })
	vc.Advance(time.Second)
	d.Trigger(func() { count++ })
	vc.Advance(time.Second)

	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestDebouncer_ZeroQuietRunsImmediately(t *testing.T) {
	d := New(0, clock.NewVirtualClock(epoch))
	ran := false
	d.Trigger(func() { ran = true })
	if !ran {
		t.Error("zero quiet interval should run immediately")
	}
}

func TestDebouncer_Stop(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	d := New(time.Second, vc)

	ran := false
	d.Trigger(func() { ran = true })
	d.Stop()
	d.Trigger(func() { ran = true })
	vc.Advance(time.Minute)

	if ran {
		t.Error("stopped debouncer ran a function")
	}
}
