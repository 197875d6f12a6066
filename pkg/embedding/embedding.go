// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

// Package embedding converts text into fixed-length vectors, selecting
// between a synchronous small-batch path and an asynchronous batch job
// (submit, poll, fetch) for larger inputs.
package embedding

import "context"

// Embedder turns texts into vectors.
//
// Embed guarantees positional alignment: output vector i corresponds to
// input text i regardless of how the backend orders its results. A nil
// vector at index i marks a per-record failure inside an otherwise
// successful call; callers decide whether to skip or abort.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Model() string
}
