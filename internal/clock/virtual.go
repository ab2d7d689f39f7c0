package clock

import (
	"sort"
	"sync"
	"time"
)

// VirtualClock is a controllable clock for tests. Advancing it fires
// pending After channels and AfterFunc callbacks without waiting.
//
// Thread-safe for concurrent use.
type VirtualClock struct {
	mu      sync.RWMutex
	current time.Time
	seq     uint64
	waiters []*waiter
}

type waiter struct {
	id       uint64
	deadline time.Time
	ch       chan time.Time
	fn       func()
}

// NewVirtualClock creates a VirtualClock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{
		current: start,
	}
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Since returns the virtual duration elapsed since t.
func (c *VirtualClock) Since(t time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Sub(t)
}

// After returns a channel that receives the virtual time once the clock
// has advanced past the current time plus d.
func (c *VirtualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}

	c.seq++
	c.waiters = append(c.waiters, &waiter{
		id:       c.seq,
		deadline: c.current.Add(d),
		ch:       ch,
	})
	return ch
}

// AfterFunc schedules f to run when the clock reaches now+d. Callbacks run
// synchronously inside Advance or Set, after the clock lock is released.
func (c *VirtualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	c.seq++
	w := &waiter{id: c.seq, deadline: c.current.Add(d), fn: f}
	if d <= 0 {
		c.mu.Unlock()
		f()
		return &virtualTimer{clock: c, id: w.id}
	}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()
	return &virtualTimer{clock: c, id: w.id}
}

// Pending returns the number of timers and After channels not yet fired.
func (c *VirtualClock) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.waiters)
}

// Advance moves the virtual clock forward by the given duration.
// Panics if d is negative.
func (c *VirtualClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}

	c.mu.Lock()
	c.current = c.current.Add(d)
	due := c.drainWaiters()
	c.mu.Unlock()

	runCallbacks(due)
}

// Set sets the virtual clock to an exact time.
// Panics if t is before the current time.
func (c *VirtualClock) Set(t time.Time) {
	c.mu.Lock()
	if t.Before(c.current) {
		c.mu.Unlock()
		panic("clock: cannot set time to the past")
	}
	c.current = t
	due := c.drainWaiters()
	c.mu.Unlock()

	runCallbacks(due)
}

// drainWaiters fires channel waiters whose deadline has been reached and
// returns the due callbacks in deadline order. Must be called with c.mu held.
func (c *VirtualClock) drainWaiters() []func() {
	var due []*waiter
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if w.deadline.After(c.current) {
			remaining = append(remaining, w)
			continue
		}
		if w.ch != nil {
			w.ch <- c.current
			continue
		}
		due = append(due, w)
	}
	c.waiters = remaining

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	fns := make([]func(), 0, len(due))
	for _, w := range due {
		fns = append(fns, w.fn)
	}
	return fns
}

func (c *VirtualClock) stop(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, w := range c.waiters {
		if w.id == id {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}

type virtualTimer struct {
	clock *VirtualClock
	id    uint64
}

func (t *virtualTimer) Stop() bool {
	return t.clock.stop(t.id)
}

func runCallbacks(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
