// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jllopis/gnosis/pkg/errors"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := DefaultRetryConfig().Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.CodeEmbedding, "upstream hiccup", nil).WithRecoverable(true)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	cfg := DefaultRetryConfig().WithMaxAttempts(2)
	cfg.InitialDelay = time.Millisecond

	calls := 0
	err := cfg.Do(context.Background(), func() error {
		calls++
		return errors.New(errors.CodeEmbedding, "still down", nil).WithRecoverable(true)
	})
	if err == nil {
		t.Fatal("Do() = nil, want error after exhausting attempts")
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRetryStopsOnNonRecoverable(t *testing.T) {
	calls := 0
	err := DefaultRetryConfig().Do(context.Background(), func() error {
		calls++
		return errors.New(errors.CodeBatchFailed, "batch job failed with status: failed", nil)
	})
	if err == nil {
		t.Fatal("Do() = nil, want the fatal error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (non-recoverable must not retry)", calls)
	}
}

func TestRetryPlainErrorsAreRetried(t *testing.T) {
	cfg := DefaultRetryConfig().WithMaxAttempts(3)
	cfg.InitialDelay = time.Millisecond

	calls := 0
	_ = cfg.Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("connection reset")
	})
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (plain errors default to retryable)", calls)
	}
}

func TestRetryCustomRecoverableCheck(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.IsRecoverable = func(error) bool { return false }

	calls := 0
	_ = cfg.Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("any error")
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetryCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := DefaultRetryConfig().WithMaxAttempts(5)
	cfg.InitialDelay = 50 * time.Millisecond

	calls := 0
	err := cfg.Do(ctx, func() error {
		calls++
		cancel()
		return errors.New(errors.CodeEmbedding, "flaky", nil).WithRecoverable(true)
	})
	if err == nil {
		t.Fatal("Do() = nil, want cancellation error")
	}
	ge := errors.AsGnosisError(err)
	if ge.Code != errors.CodeTimeout {
		t.Fatalf("code = %s, want %s", ge.Code, errors.CodeTimeout)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (cancel must stop the backoff wait)", calls)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     300 * time.Millisecond,
		Multiplier:   2.0,
	}
	if d := cfg.backoff(1); d != 100*time.Millisecond {
		t.Fatalf("backoff(1) = %v, want 100ms", d)
	}
	if d := cfg.backoff(2); d != 200*time.Millisecond {
		t.Fatalf("backoff(2) = %v, want 200ms", d)
	}
	if d := cfg.backoff(4); d != 300*time.Millisecond {
		t.Fatalf("backoff(4) = %v, want the 300ms cap", d)
	}
}

func TestCircuitBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "quotes"})

	for i := 0; i < 10; i++ {
		if err := cb.Call(context.Background(), func() error { return nil }); err != nil {
			t.Fatalf("Call() = %v, want nil", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %s, want %s", cb.State(), StateClosed)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "quotes", FailureThreshold: 3})
	upstream := fmt.Errorf("503 from upstream")

	for i := 0; i < 3; i++ {
		_ = cb.Call(context.Background(), func() error { return upstream })
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want %s", cb.State(), StateOpen)
	}

	// Open breaker rejects without touching the upstream.
	called := false
	err := cb.Call(context.Background(), func() error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("Call() on open breaker = nil, want rejection")
	}
	if called {
		t.Fatal("fn ran while the breaker was open")
	}
	ge := errors.AsGnosisError(err)
	if ge.Context["breaker"] != "quotes" {
		t.Fatalf("breaker context = %v, want quotes", ge.Context["breaker"])
	}
	if !ge.Recoverable {
		t.Fatal("open-breaker error must be recoverable")
	}
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
	})

	_ = cb.Call(context.Background(), func() error { return fmt.Errorf("down") })
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want %s", cb.State(), StateOpen)
	}

	time.Sleep(20 * time.Millisecond)

	// First probe half-opens the breaker; two successes close it.
	for i := 0; i < 2; i++ {
		if err := cb.Call(context.Background(), func() error { return nil }); err != nil {
			t.Fatalf("probe %d = %v, want nil", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %s, want %s", cb.State(), StateClosed)
	}
}

func TestCircuitBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Timeout:          10 * time.Millisecond,
	})

	_ = cb.Call(context.Background(), func() error { return fmt.Errorf("down") })
	time.Sleep(20 * time.Millisecond)

	_ = cb.Call(context.Background(), func() error { return fmt.Errorf("still down") })
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want %s after failed probe", cb.State(), StateOpen)
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	_ = cb.Call(context.Background(), func() error { return fmt.Errorf("down") })
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want %s", cb.State(), StateOpen)
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("state after Reset = %s, want %s", cb.State(), StateClosed)
	}
	if err := cb.Call(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("Call() after Reset = %v, want nil", err)
	}
}

func TestWithTimeoutReturnsResult(t *testing.T) {
	value, err := WithTimeout(context.Background(), time.Second, func() (interface{}, error) {
		return "quote data", nil
	})
	if err != nil {
		t.Fatalf("WithTimeout() = %v, want nil", err)
	}
	if value != "quote data" {
		t.Fatalf("value = %v, want quote data", value)
	}
}

func TestWithTimeoutExpires(t *testing.T) {
	_, err := WithTimeout(context.Background(), 10*time.Millisecond, func() (interface{}, error) {
		time.Sleep(200 * time.Millisecond)
		return "too late", nil
	})
	if err == nil {
		t.Fatal("WithTimeout() = nil, want timeout error")
	}
	ge := errors.AsGnosisError(err)
	if ge.Code != errors.CodeTimeout {
		t.Fatalf("code = %s, want %s", ge.Code, errors.CodeTimeout)
	}
}

func TestWithTimeoutZeroMeansUnbounded(t *testing.T) {
	value, err := WithTimeout(context.Background(), 0, func() (interface{}, error) {
		return 42, nil
	})
	if err != nil || value != 42 {
		t.Fatalf("WithTimeout() = (%v, %v), want (42, nil)", value, err)
	}
}

func TestWithFallbackUsesPrimaryResult(t *testing.T) {
	value, err := WithFallback(context.Background(),
		func() (interface{}, error) { return []string{"a", "b", "c"}, nil },
		FallbackFunc(func(context.Context, error) (interface{}, error) {
			t.Fatal("fallback ran despite primary success")
			return nil, nil
		}))
	if err != nil {
		t.Fatalf("WithFallback() = %v, want nil", err)
	}
	if tags := value.([]string); len(tags) != 3 {
		t.Fatalf("len(tags) = %d, want 3", len(tags))
	}
}

func TestWithFallbackSubstitutesOnError(t *testing.T) {
	var seen error
	value, err := WithFallback(context.Background(),
		func() (interface{}, error) { return nil, fmt.Errorf("model unavailable") },
		FallbackFunc(func(_ context.Context, primaryErr error) (interface{}, error) {
			seen = primaryErr
			return []string{"general", "document", "content"}, nil
		}))
	if err != nil {
		t.Fatalf("WithFallback() = %v, want nil", err)
	}
	if value.([]string)[0] != "general" {
		t.Fatalf("value = %v, want the fallback triple", value)
	}
	if seen == nil || seen.Error() != "model unavailable" {
		t.Fatalf("fallback saw %v, want the primary error", seen)
	}
}
