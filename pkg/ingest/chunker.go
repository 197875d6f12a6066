// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest implements the document ingestion pipeline: documents are
// split into overlapping chunks, tagged by a language model, embedded and
// written to the vector store.
package ingest

import (
	"fmt"

	"github.com/jllopis/gnosis/pkg/errors"
)

// Chunk is one overlapping window of a source document, carrying the
// metadata stored alongside its vector.
type Chunk struct {
	Text        string   `json:"text"`
	FileName    string   `json:"file_name"`
	FileExt     string   `json:"file_ext"`
	Tags        []string `json:"tags"`
	ChunkID     int      `json:"chunk_id"`
	TotalChunks int      `json:"total_chunks"`
	Created     string   `json:"created"`
}

// Chunker splits document text into fixed-size overlapping windows.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker returns a Chunker producing windows of size runes where
// consecutive windows share overlap runes.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("chunk size must be positive, got %d", size), nil)
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("chunk overlap must be in [0, size), got %d", overlap), nil)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split returns the overlapping windows of text in document order. Window
// boundaries are measured in runes so multi-byte characters are never cut.
// Empty input yields no windows.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Size returns the configured window size in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }
