// Package retry runs remote operations with bounded exponential backoff.
//
// Failures are classified before any retry decision. Transient failures
// (5xx, timeouts, network errors) and sha conflicts are retried. Rate limits
// are never retried: a rate window can last an hour, and burning attempts
// against it only delays the caller's own backoff. Everything else is
// returned on the first attempt.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/eringen/gitpress/clock"
	"github.com/eringen/gitpress/store"
)

// Class is the retry decision for a failure.
type Class int

const (
	// Permanent failures are returned immediately.
	Permanent Class = iota
	// Transient failures are retried with backoff.
	Transient
	// Conflict failures are retried unless the policy disables it.
	Conflict
	// RateLimited failures are never retried.
	RateLimited
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Conflict:
		return "conflict"
	case RateLimited:
		return "rate_limited"
	default:
		return "permanent"
	}
}

// Classify maps an error onto a retry class.
func Classify(err error) Class {
	switch {
	case err == nil:
		return Permanent
	case errors.Is(err, store.ErrRateLimited):
		return RateLimited
	case errors.Is(err, context.Canceled):
		return Permanent
	case errors.Is(err, store.ErrConflict):
		return Conflict
	case errors.Is(err, store.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return Transient
	}
	return Permanent
}

// Policy bounds a retry loop. The zero value uses the defaults.
type Policy struct {
	// MaxAttempts counts the first call. Defaults to 3.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt. Defaults to 200ms.
	BaseDelay time.Duration
	// MaxDelay caps every delay. Defaults to 2s.
	MaxDelay time.Duration

	// NoConflictRetry returns conflicts immediately. Set it for operations
	// that do not re-read state between attempts, where repeating the same
	// conditioned write can only fail again.
	NoConflictRetry bool

	Clock  clock.Clock
	Logger *slog.Logger

	// Jitter returns a random duration in [0, n). Defaults to math/rand/v2.
	Jitter func(n time.Duration) time.Duration
}

// Default returns the standard policy.
func Default() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// WithoutConflictRetry returns a copy of p that surfaces conflicts.
func (p Policy) WithoutConflictRetry() Policy {
	p.NoConflictRetry = true
	return p
}

func (p Policy) withDefaults() Policy {
	defaults := Default()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaults.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaults.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaults.MaxDelay
	}
	if p.Clock == nil {
		p.Clock = clock.Real()
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Jitter == nil {
		p.Jitter = func(n time.Duration) time.Duration {
			if n <= 0 {
				return 0
			}
			return rand.N(n)
		}
	}
	return p
}

// Delay is the wait before attempt n+1, given attempt n (1-based) failed.
func (p Policy) Delay(n int) time.Duration {
	p = p.withDefaults()
	delay := p.BaseDelay
	for i := 1; i < n && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	delay += p.Jitter(p.BaseDelay)
	return min(delay, p.MaxDelay)
}

func (p Policy) retryable(class Class) bool {
	switch class {
	case Transient:
		return true
	case Conflict:
		return !p.NoConflictRetry
	}
	return false
}

// Do calls op until it succeeds, fails with a non-retryable error, or the
// attempts run out, and returns op's last result. op receives the 1-based
// attempt number.
func Do[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	for attempt := 1; ; attempt++ {
		value, err := op(ctx, attempt)
		if err == nil {
			return value, nil
		}

		class := Classify(err)
		if !p.retryable(class) || attempt >= p.MaxAttempts {
			if class == RateLimited {
				p.Logger.Warn("rate limited, not retrying", "op", name, "attempt", attempt, "error", err)
			}
			return value, err
		}

		delay := p.Delay(attempt)
		p.Logger.Debug("retrying",
			"op", name,
			"attempt", attempt,
			"class", class.String(),
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-p.Clock.After(delay):
		}
	}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, name string, op func(ctx context.Context, attempt int) error) error {
	_, err := Do(ctx, p, name, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, op(ctx, attempt)
	})
	return err
}
