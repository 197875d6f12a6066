// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

// Package vectorstore is the gateway to the vector database. It owns
// collection lifecycle, point writes and similarity search; no other
// component talks to the store directly.
package vectorstore

import "context"

// Document is the payload stored alongside each vector.
type Document struct {
	Text        string   `json:"text"`
	FileName    string   `json:"file_name"`
	FileExt     string   `json:"file_ext"`
	Tags        []string `json:"tags"`
	ChunkID     int      `json:"chunk_id"`
	TotalChunks int      `json:"total_chunks"`
	Created     string   `json:"created"`
}

// Point pairs a vector with its payload. An empty ID asks the store to
// assign a sequential integer identifier at write time.
type Point struct {
	ID      string
	Vector  []float32
	Payload Document
}

// ScoredDocument is a search hit: the stored payload annotated with the
// store's similarity score for the query. Scores are only comparable
// within a single search call.
type ScoredDocument struct {
	Document
	Score float32 `json:"score"`
}

// Store is the vector store gateway.
type Store interface {
	// EnsureCollection creates the configured collection if it does not
	// exist. Calling it again is a no-op; an existing collection with a
	// different vector size is rejected.
	EnsureCollection(ctx context.Context, dim int) error
	// Upsert writes points and returns the number written.
	Upsert(ctx context.Context, points []Point) (int, error)
	// Search returns up to limit nearest points, best match first. A
	// zero scoreThreshold disables filtering.
	Search(ctx context.Context, vector []float32, limit int, scoreThreshold float32) ([]ScoredDocument, error)
}
