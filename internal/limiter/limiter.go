package limiter

import (
	"context"
	"time"
)

// Limiter throttles operator-triggered actions (manual refresh, manual
// cleanup) so a busy dashboard cannot hammer the upstream API.
type Limiter interface {
	// Allow checks if an action identified by key may run now.
	Allow(ctx context.Context, key string) Decision
}

// Decision captures the result of a rate limit check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
	RetryAt   time.Time `json:"retry_at,omitempty"`
}

// RetryAfter returns the whole seconds a denied caller should wait,
// rounded up and never below one.
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(d.RetryAt.Sub(now).Seconds()) + 1
	if secs < 1 {
		return 1
	}
	return secs
}

// Config holds the parameters for creating a limiter.
type Config struct {
	Rate   int           `json:"rate"`   // Actions allowed per window
	Window time.Duration `json:"window"` // Window duration
	Burst  int           `json:"burst"`  // Max burst
}

// Unlimited allows every action. Used when limits are disabled.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) Decision {
	return Decision{Allowed: true, Remaining: -1, Limit: -1}
}
