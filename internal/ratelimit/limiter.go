// Package ratelimit implements the per-identity fixed-window counter that
// gates the intake endpoint.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrInvalidConfig is returned when a limiter is built with a non-positive
// limit or window.
var ErrInvalidConfig = errors.New("ratelimit: max requests and window must be positive")

// Config sets the window shape shared by every backend.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultConfig returns the intake endpoint defaults: 10 requests per hour.
func DefaultConfig() Config {
	return Config{
		MaxRequests: 10,
		Window:      60 * time.Minute,
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.MaxRequests <= 0 || c.Window <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds. Denied decisions
// always report at least one second.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter counts hits per identity. Check increments and evaluates atomically.
type Limiter interface {
	Check(ctx context.Context, identity string, now time.Time) (Decision, error)
}

func decide(cfg Config, count int, resetAt, now time.Time) Decision {
	d := Decision{
		Allowed:   count <= cfg.MaxRequests,
		Remaining: cfg.MaxRequests - count,
		ResetAt:   resetAt,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = resetAt.Sub(now)
	}
	return d
}
