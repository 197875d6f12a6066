// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jllopis/gnosis/pkg/errors"
)

// CircuitBreakerState is one of closed, open or half-open.
type CircuitBreakerState string

const (
	StateClosed   CircuitBreakerState = "closed"
	StateOpen     CircuitBreakerState = "open"
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreakerConfig configures a breaker. Zero values fall back to
// 5 failures to open, 2 successes to close, 30s open interval.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

// CircuitBreaker stops hammering an upstream that keeps failing.
// Closed passes calls through; FailureThreshold consecutive failures
// open it; after Timeout it half-opens and SuccessThreshold consecutive
// successes close it again. Any failure while half-open re-opens it.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     CircuitBreakerState
	failures  int
	successes int
	openedAt  time.Time
}

// NewCircuitBreaker builds a breaker in the closed state.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "circuit_breaker"
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// Call runs fn unless the breaker is open. An open breaker returns a
// recoverable CodeInternal error carrying the breaker name in its
// context, without invoking fn.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) < cb.cfg.Timeout {
			return errors.New(errors.CodeInternal, "circuit breaker open", nil).
				WithContext("breaker", cb.cfg.Name).
				WithRecoverable(true)
		}
		cb.state = StateHalfOpen
		cb.successes = 0
	}

	err := fn()
	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
	return err
}

// onFailure is called under the lock after a failed call.
func (cb *CircuitBreaker) onFailure() {
	switch cb.state {
	case StateHalfOpen:
		cb.trip()
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.trip()
		}
	}
}

// onSuccess is called under the lock after a successful call.
func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
		}
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.failures = 0
	cb.successes = 0
}

// State reports the current state. An elapsed open interval still
// reports open until the next Call probes the upstream.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
}
