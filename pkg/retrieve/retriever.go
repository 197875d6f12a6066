// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

// Package retrieve answers similarity queries against the vector store
// using the same embedding space documents were ingested with.
package retrieve

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/gnosis/pkg/embedding"
	"github.com/jllopis/gnosis/pkg/telemetry"
	"github.com/jllopis/gnosis/pkg/vectorstore"
)

// DefaultLimit is the number of documents returned when none is
// configured.
const DefaultLimit = 3

// Retriever embeds a query and searches the store.
type Retriever struct {
	embedder       embedding.Embedder
	store          vectorstore.Store
	limit          int
	scoreThreshold float32
	tracer         trace.Tracer
}

// New builds a Retriever. limit <= 0 falls back to DefaultLimit;
// scoreThreshold 0 disables score filtering.
func New(embedder embedding.Embedder, store vectorstore.Store, limit int, scoreThreshold float32) *Retriever {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Retriever{
		embedder:       embedder,
		store:          store,
		limit:          limit,
		scoreThreshold: scoreThreshold,
		tracer:         otel.Tracer("gnosis/retrieve"),
	}
}

// Limit returns the configured result limit.
func (r *Retriever) Limit() int { return r.limit }

// Retrieve returns up to the configured limit of documents most similar
// to query, best match first. An empty store yields an empty slice, not
// an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]vectorstore.ScoredDocument, error) {
	ctx, span := r.tracer.Start(ctx, "Retrieve.Query")
	defer span.End()

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	docs, err := r.store.Search(ctx, vector, r.limit, r.scoreThreshold)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(telemetry.StoreAttributes("", 0, r.limit, len(docs))...)
	slog.Debug("retrieve.done", "limit", r.limit, "results", len(docs))
	return docs, nil
}
