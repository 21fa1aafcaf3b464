// Package resilience wraps broker-facing calls with retry and a shared
// circuit breaker. A failing broker throttles all trading activity uniformly
// rather than per symbol.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrBreakerOpen is returned without invoking the wrapped operation while the
// breaker is open and its recovery timeout has not elapsed. The retry wrapper
// treats it as permanent.
var ErrBreakerOpen = errors.New("circuit breaker is open: call rejected")

// State of the circuit breaker.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// CircuitBreaker prevents repeated calls to a failing service. It is shared
// process-wide across all broker operations.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	recoveryTimeout  time.Duration
	failures         int
	lastFailure      time.Time
	state            State

	now func() time.Time // injectable clock for tests
}

func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. While OPEN it transitions lazily
// to HALF_OPEN once the recovery timeout has elapsed, admitting one trial
// call; otherwise it returns ErrBreakerOpen.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	if b.now().Sub(b.lastFailure) > b.recoveryTimeout {
		b.state = StateHalfOpen
		log.Info().Str("component", "breaker").Msg("Circuit breaker is now HALF_OPEN. Allowing a trial call.")
		return nil
	}
	return ErrBreakerOpen
}

// RecordSuccess resets the failure count and closes the breaker after a
// successful trial call.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.lastFailure = time.Time{}
	if b.state == StateHalfOpen {
		b.state = StateClosed
		log.Info().Str("component", "breaker").Msg("Circuit breaker closed. Service has recovered.")
	}
}

// RecordFailure increments the failure count and opens the breaker once the
// threshold is reached. A failure during HALF_OPEN re-opens immediately.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
		b.state = StateOpen
		log.Warn().
			Str("component", "breaker").
			Int("failures", b.failures).
			Dur("recovery", b.recoveryTimeout).
			Msg("Circuit breaker opened")
	}
}

// CurrentState returns the breaker state, for health reporting.
func (b *CircuitBreaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count, for health reporting.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
