package core

import (
	"context"

	"github.com/google/uuid"
)

type runIDKey struct{}

// NewRunID mints a globally unique run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID returns a child context carrying id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID reports the run id carried by ctx, if any.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok
}

// EnsureRunID reuses the context's run id or mints a fresh one, so
// every pipeline entry point can rely on one being present.
func EnsureRunID(ctx context.Context) (context.Context, string) {
	if id, ok := RunID(ctx); ok {
		return ctx, id
	}
	id := NewRunID()
	return WithRunID(ctx, id), id
}
