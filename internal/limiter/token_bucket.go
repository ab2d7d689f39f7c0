package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/ServerEye/internal/clock"
)

// TokenBucket implements the token bucket algorithm per key.
//
// Tokens are added at a constant rate (rate tokens per window). Each action
// consumes one token. Burst allows short spikes above the steady rate.
// Buckets that have been full for longer than idleTTL are dropped on the
// next call so per-client state does not grow without bound.
type TokenBucket struct {
	clock    clock.Clock
	rate     float64 // tokens per second
	capacity int
	idleTTL  time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// NewTokenBucket creates a token bucket limiter. A burst of 0 means
// burst = rate.
func NewTokenBucket(rate int, window time.Duration, burst int, c clock.Clock) *TokenBucket {
	if burst <= 0 {
		burst = rate
	}
	return &TokenBucket{
		clock:    c,
		rate:     float64(rate) / window.Seconds(),
		capacity: burst,
		idleTTL:  2 * window,
		buckets:  make(map[string]*bucket),
	}
}

// New builds a limiter from cfg; a non-positive rate disables limiting.
func New(cfg Config, c clock.Clock) Limiter {
	if cfg.Rate <= 0 || cfg.Window <= 0 {
		return Unlimited{}
	}
	return NewTokenBucket(cfg.Rate, cfg.Window, cfg.Burst, c)
}

func (tb *TokenBucket) Allow(_ context.Context, key string) Decision {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.clock.Now()
	tb.prune(now)

	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{
			tokens:   float64(tb.capacity),
			lastFill: now,
		}
		tb.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastFill).Seconds() * tb.rate
	if b.tokens > float64(tb.capacity) {
		b.tokens = float64(tb.capacity)
	}
	b.lastFill = now

	resetAt := now
	if deficit := float64(tb.capacity) - b.tokens; deficit > 0 {
		resetAt = now.Add(time.Duration(deficit / tb.rate * float64(time.Second)))
	}

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return Decision{
			Allowed:   true,
			Remaining: int(b.tokens),
			Limit:     tb.capacity,
			ResetAt:   resetAt,
		}
	}

	needed := 1.0 - b.tokens
	return Decision{
		Allowed:   false,
		Remaining: 0,
		Limit:     tb.capacity,
		ResetAt:   resetAt,
		RetryAt:   now.Add(time.Duration(needed / tb.rate * float64(time.Second))),
	}
}

// Len returns the number of tracked keys.
func (tb *TokenBucket) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.buckets)
}

// prune must be called with tb.mu held.
func (tb *TokenBucket) prune(now time.Time) {
	for key, b := range tb.buckets {
		if now.Sub(b.lastFill) > tb.idleTTL {
			delete(tb.buckets, key)
		}
	}
}
