// SPDX-License-Identifier: Apache-2.0

package resilience

import "context"

// FallbackStrategy produces a substitute result after the primary
// operation failed.
type FallbackStrategy interface {
	Execute(ctx context.Context, primaryErr error) (interface{}, error)
}

// FallbackFunc adapts a function to FallbackStrategy.
type FallbackFunc func(ctx context.Context, primaryErr error) (interface{}, error)

func (f FallbackFunc) Execute(ctx context.Context, primaryErr error) (interface{}, error) {
	return f(ctx, primaryErr)
}

// WithFallback runs fn and, on error, hands the error to the fallback.
// The fallback decides whether to swallow it (returning a substitute)
// or to fail the call with its own error.
func WithFallback(ctx context.Context, fn func() (interface{}, error), fallback FallbackStrategy) (interface{}, error) {
	value, err := fn()
	if err == nil {
		return value, nil
	}
	return fallback.Execute(ctx, err)
}
