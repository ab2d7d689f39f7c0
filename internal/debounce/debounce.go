// Package debounce coalesces bursts of calls into one call after a quiet
// period.
package debounce

import (
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/ServerEye/internal/clock"
)

// Debouncer runs the most recently submitted function once no new
// submission has arrived for the quiet interval.
type Debouncer struct {
	mu      sync.Mutex
	clk     clock.Clock
	quiet   time.Duration
	timer   clock.Timer
	gen     uint64
	stopped bool
}

// New returns a Debouncer. A quiet interval of zero or less runs every
// submission immediately.
func New(quiet time.Duration, clk clock.Clock) *Debouncer {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &Debouncer{clk: clk, quiet: quiet}
}

// Trigger schedules fn, replacing any pending function and restarting the
// quiet period.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	gen := d.gen
	if d.quiet <= 0 {
		d.mu.Unlock()
		fn()
		return
	}
	d.timer = d.clk.AfterFunc(d.quiet, func() {
		d.mu.Lock()
		// A newer Trigger or Stop may have raced with this timer firing.
		if d.stopped || gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
	d.mu.Unlock()
}

// Pending reports whether a function is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop drops any pending function. Later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
