// SPDX-License-Identifier: Apache-2.0

// Package resilience guards calls to flaky upstreams: retry with
// exponential backoff, a circuit breaker, call timeouts and fallback
// values. Recoverability decisions follow the Recoverable flag on
// GnosisError values.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/jllopis/gnosis/pkg/errors"
)

// RetryConfig controls retry behavior. Attempts are spaced by
// InitialDelay * Multiplier^n, capped at MaxDelay, with +-Jitter
// fraction of randomness.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64

	// IsRecoverable decides whether an error is worth another attempt.
	// Nil means: honor GnosisError.Recoverable, retry everything else.
	IsRecoverable func(error) bool
}

// DefaultRetryConfig is the house default: three attempts, 100ms
// initial delay doubling up to 10s, 10% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// WithMaxAttempts returns a copy with MaxAttempts set.
func (rc RetryConfig) WithMaxAttempts(n int) RetryConfig {
	rc.MaxAttempts = n
	return rc
}

// Do runs fn until it succeeds, the error is non-recoverable, the
// attempts are spent, or ctx is cancelled. Cancellation during a
// backoff wait surfaces as CodeTimeout.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	attempts := rc.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.New(errors.CodeTimeout, "retry abandoned, context cancelled", ctx.Err()).
					WithContext("attempt", attempt).
					WithContext("max_attempts", attempts)
			case <-time.After(rc.backoff(attempt)):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !rc.retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// backoff returns the delay before the given attempt (attempt >= 1).
func (rc RetryConfig) backoff(attempt int) time.Duration {
	multiplier := rc.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	delay := time.Duration(float64(rc.InitialDelay) * math.Pow(multiplier, float64(attempt-1)))
	if rc.MaxDelay > 0 && delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}
	if rc.Jitter > 0 {
		spread := 2 * rc.Jitter * (rand.Float64() - 0.5)
		delay = time.Duration(float64(delay) * (1 + spread))
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}

func (rc RetryConfig) retryable(err error) bool {
	if rc.IsRecoverable != nil {
		return rc.IsRecoverable(err)
	}
	if ge, ok := err.(*errors.GnosisError); ok {
		return ge.Recoverable
	}
	return true
}
