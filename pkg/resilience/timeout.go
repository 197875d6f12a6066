// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"time"

	"github.com/jllopis/gnosis/pkg/errors"
)

// WithTimeout runs fn and gives up after d, returning a recoverable
// CodeTimeout error. A timed-out fn keeps running in its goroutine;
// its eventual result is dropped. d <= 0 means no limit.
func WithTimeout(ctx context.Context, d time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	if d <= 0 {
		return fn()
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		value interface{}
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := fn()
		done <- outcome{value, err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
			WithContext("timeout", d.String()).
			WithRecoverable(true)
	case out := <-done:
		return out.value, out.err
	}
}
