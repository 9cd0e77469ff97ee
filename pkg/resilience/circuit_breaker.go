package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitOpenError reports circuit-open status with a concrete retry delay.
type CircuitOpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	retryAfter := max(e.RetryAfter, 0)
	if e.Name == "" {
		return fmt.Sprintf("%v: retry in %s", ErrCircuitOpen, retryAfter)
	}
	return fmt.Sprintf("%v for %s: retry in %s", ErrCircuitOpen, e.Name, retryAfter)
}

func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

type CircuitBreakerState string

const (
	CircuitClosed   CircuitBreakerState = "closed"
	CircuitOpen     CircuitBreakerState = "open"
	CircuitHalfOpen CircuitBreakerState = "half_open"
)

type CircuitBreakerConfig struct {
	Name              string
	FailureThreshold  int
	SuccessThreshold  int
	OpenTimeout       time.Duration
	HalfOpenMaxFlight int

	// IsFailure decides whether an error counts against the circuit. Nil counts
	// every error except context cancellation.
	IsFailure func(error) bool
	// OnStateChange is called outside the breaker lock after each transition.
	OnStateChange func(name string, from, to CircuitBreakerState)
	// Now is the time source; nil means time.Now.
	Now func() time.Time
}

type CircuitBreaker struct {
	mu  sync.Mutex
	cfg CircuitBreakerConfig

	state        CircuitBreakerState
	failureCount int
	successCount int
	openUntil    time.Time
	halfInFlight int
}

type transition struct {
	from, to CircuitBreakerState
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 10 * time.Second
	}
	if cfg.HalfOpenMaxFlight <= 0 {
		cfg.HalfOpenMaxFlight = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}

	return &CircuitBreaker{cfg: cfg, state: CircuitClosed}
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	t := cb.advanceLocked(cb.cfg.Now())
	state := cb.state
	cb.mu.Unlock()

	cb.notify(t)
	return state
}

// Execute runs fn unless the circuit is open. Errors that IsFailure rejects
// release a half-open slot without moving the circuit.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.acquire(); err != nil {
		return err
	}

	err := fn(ctx)

	cb.mu.Lock()
	var t *transition
	switch {
	case err == nil:
		t = cb.onSuccessLocked()
	case cb.cfg.IsFailure(err):
		t = cb.onFailureLocked()
	default:
		cb.releaseHalfOpenLocked()
	}
	cb.mu.Unlock()

	cb.notify(t)
	return err
}

func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()
	now := cb.cfg.Now()
	t := cb.advanceLocked(now)

	var err error
	switch cb.state {
	case CircuitOpen:
		err = cb.openErrLocked(now)
	case CircuitHalfOpen:
		if cb.halfInFlight >= cb.cfg.HalfOpenMaxFlight {
			err = cb.openErrLocked(now)
		} else {
			cb.halfInFlight++
		}
	}
	cb.mu.Unlock()

	cb.notify(t)
	return err
}

func (cb *CircuitBreaker) onSuccessLocked() *transition {
	if cb.state != CircuitHalfOpen {
		cb.failureCount = 0
		return nil
	}
	cb.releaseHalfOpenLocked()
	cb.successCount++
	if cb.successCount < cb.cfg.SuccessThreshold {
		return nil
	}
	return cb.moveLocked(CircuitClosed)
}

func (cb *CircuitBreaker) onFailureLocked() *transition {
	if cb.state == CircuitHalfOpen {
		return cb.moveLocked(CircuitOpen)
	}
	cb.failureCount++
	if cb.failureCount < cb.cfg.FailureThreshold {
		return nil
	}
	return cb.moveLocked(CircuitOpen)
}

func (cb *CircuitBreaker) releaseHalfOpenLocked() {
	if cb.state == CircuitHalfOpen && cb.halfInFlight > 0 {
		cb.halfInFlight--
	}
}

// advanceLocked moves an expired open circuit to half-open.
func (cb *CircuitBreaker) advanceLocked(now time.Time) *transition {
	if cb.state == CircuitOpen && !now.Before(cb.openUntil) {
		return cb.moveLocked(CircuitHalfOpen)
	}
	return nil
}

func (cb *CircuitBreaker) moveLocked(to CircuitBreakerState) *transition {
	from := cb.state
	cb.state = to
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfInFlight = 0
	if to == CircuitOpen {
		cb.openUntil = cb.cfg.Now().Add(cb.cfg.OpenTimeout)
	}
	if from == to {
		return nil
	}
	return &transition{from: from, to: to}
}

func (cb *CircuitBreaker) notify(t *transition) {
	if t != nil && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, t.from, t.to)
	}
}

func (cb *CircuitBreaker) openErrLocked(now time.Time) error {
	return &CircuitOpenError{
		Name:       cb.cfg.Name,
		RetryAfter: max(cb.openUntil.Sub(now), 0),
	}
}
