package resilience

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds a retry loop. Attempts counts the first try.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy is three attempts with exponential backoff starting at 500ms.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}

// Backoff returns the delay before retry number attempt (0-based): BaseDelay * 2^attempt, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base << min(attempt, 30)
	if p.MaxDelay > 0 && (delay > p.MaxDelay || delay <= 0) {
		return p.MaxDelay
	}
	return delay
}

// Retry calls fn until it succeeds, returns an error retryable rejects, the
// attempts run out, or ctx ends. A circuit-open error waits for its RetryAfter
// instead of the computed backoff. The last error from fn is returned.
func Retry(ctx context.Context, policy RetryPolicy, retryable func(error) bool, fn func(context.Context) error) error {
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		wait := policy.Backoff(attempt)
		if after, open := CircuitRetryAfter(lastErr); open && after > 0 {
			wait = after
		}
		if !SleepContext(ctx, wait) {
			return lastErr
		}
	}
	return lastErr
}

// CircuitRetryAfter extracts the retry delay from circuit-open errors.
func CircuitRetryAfter(err error) (time.Duration, bool) {
	var openErr *CircuitOpenError
	if errors.As(err, &openErr) {
		return openErr.RetryAfter, true
	}
	if errors.Is(err, ErrCircuitOpen) {
		return 0, true
	}
	return 0, false
}

// SleepContext waits for delay or exits early if ctx is canceled.
func SleepContext(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
