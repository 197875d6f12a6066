// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/gnosis/pkg/core"
	"github.com/jllopis/gnosis/pkg/document"
	"github.com/jllopis/gnosis/pkg/embedding"
	"github.com/jllopis/gnosis/pkg/resilience"
	"github.com/jllopis/gnosis/pkg/telemetry"
	"github.com/jllopis/gnosis/pkg/vectorstore"
)

// pointNamespace seeds content-derived point identifiers so re-ingesting
// the same chunk overwrites its point instead of duplicating it.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("gnosis.jllopis.github.com"))

// Result summarizes one ingestion run.
type Result struct {
	Files       int      `json:"files"`
	Chunks      int      `json:"chunks"`
	Upserted    int      `json:"upserted"`
	FailedFiles []string `json:"failed_files,omitempty"`
}

// Pipeline runs the full ingestion flow: discover files, split them into
// chunks, tag and embed the chunks, and write the points to the store.
type Pipeline struct {
	chunker  *Chunker
	tagger   *Tagger
	embedder embedding.Embedder
	store    vectorstore.Store
	exts     []string
	emitter  core.EventEmitter
	tracer   trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEventEmitter routes pipeline lifecycle events to emitter.
func WithEventEmitter(emitter core.EventEmitter) Option {
	return func(p *Pipeline) { p.emitter = emitter }
}

// NewPipeline wires the ingestion stages together. exts is the file
// extension allow-list.
func NewPipeline(chunker *Chunker, tagger *Tagger, embedder embedding.Embedder, store vectorstore.Store, exts []string, opts ...Option) *Pipeline {
	p := &Pipeline{
		chunker:  chunker,
		tagger:   tagger,
		embedder: embedder,
		store:    store,
		exts:     exts,
		emitter:  core.NoopEventEmitter{},
		tracer:   otel.Tracer("gnosis/ingest"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestDir ingests every supported file under dir. One bad file does
// not abort the run: its failure is logged and recorded in the result
// while sibling files keep processing. Chunks from all files are
// embedded and written in a single pass at the end.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) (*Result, error) {
	ctx, runID := core.EnsureRunID(ctx)

	ctx, span := p.tracer.Start(ctx, "Ingest.Run")
	defer span.End()

	slog.Info("ingest.start", "run_id", runID, "dir", dir)
	p.emitter.Emit(ctx, core.NewEvent(core.EventIngestStarted, runID, map[string]any{"dir": dir}))

	err := resilience.DefaultRetryConfig().Do(ctx, func() error {
		return p.store.EnsureCollection(ctx, p.embedder.Dimensions())
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	paths, err := document.Discover(dir, p.exts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := &Result{}
	if len(paths) == 0 {
		slog.Warn("ingest.no_files", "dir", dir)
		return result, nil
	}

	var chunks []Chunk
	for _, path := range paths {
		fileChunks, err := p.processFile(ctx, path)
		if err != nil {
			slog.Error("ingest.file.failed", "file", path, "error", err)
			result.FailedFiles = append(result.FailedFiles, path)
			continue
		}
		result.Files++
		chunks = append(chunks, fileChunks...)
	}
	result.Chunks = len(chunks)

	if len(chunks) == 0 {
		slog.Warn("ingest.no_chunks", "dir", dir)
		p.emitter.Emit(ctx, core.NewEvent(core.EventIngestCompleted, runID, map[string]any{
			"files": result.Files, "chunks": 0, "upserted": 0,
		}))
		return result, nil
	}

	upserted, err := p.embedAndStore(ctx, chunks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	result.Upserted = upserted

	slog.Info("ingest.complete",
		"run_id", runID,
		"files", result.Files,
		"chunks", result.Chunks,
		"upserted", result.Upserted,
		"failed_files", len(result.FailedFiles))
	p.emitter.Emit(ctx, core.NewEvent(core.EventIngestCompleted, runID, map[string]any{
		"files": result.Files, "chunks": result.Chunks, "upserted": result.Upserted,
	}))

	return result, nil
}

// processFile loads one file and returns its tagged chunks.
func (p *Pipeline) processFile(ctx context.Context, path string) ([]Chunk, error) {
	ctx, span := p.tracer.Start(ctx, "Ingest.File")
	defer span.End()

	doc, err := document.Load(path)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	pieces := p.chunker.Split(doc.Text)
	span.SetAttributes(telemetry.IngestAttributes(doc.FileName, doc.Ext, len(pieces), p.chunker.Size(), p.chunker.Overlap())...)
	if len(pieces) == 0 {
		slog.Warn("ingest.file.empty", "file", doc.FileName)
		return nil, nil
	}

	tags, err := p.tagger.TagAll(ctx, pieces)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	created := time.Now().Format(time.RFC3339)
	chunks := make([]Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = Chunk{
			Text:        text,
			FileName:    doc.FileName,
			FileExt:     doc.Ext,
			Tags:        tags[i],
			ChunkID:     i + 1,
			TotalChunks: len(pieces),
			Created:     created,
		}
	}

	slog.Info("ingest.file", "file", doc.FileName, "chunks", len(chunks))
	return chunks, nil
}

// embedAndStore embeds all chunk texts in one call and upserts the
// resulting points. Chunks whose embedding failed inside an otherwise
// successful batch are skipped with a warning.
func (p *Pipeline) embedAndStore(ctx context.Context, chunks []Chunk) (int, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	points := make([]vectorstore.Point, 0, len(chunks))
	for i, c := range chunks {
		if i >= len(vectors) || vectors[i] == nil {
			slog.Warn("ingest.chunk.skipped", "file", c.FileName, "chunk_id", c.ChunkID)
			continue
		}
		points = append(points, vectorstore.Point{
			ID:     pointID(c),
			Vector: vectors[i],
			Payload: vectorstore.Document{
				Text:        c.Text,
				FileName:    c.FileName,
				FileExt:     c.FileExt,
				Tags:        c.Tags,
				ChunkID:     c.ChunkID,
				TotalChunks: c.TotalChunks,
				Created:     c.Created,
			},
		})
	}

	return p.store.Upsert(ctx, points)
}

// pointID derives a stable identifier from the chunk's source position
// and content.
func pointID(c Chunk) string {
	seed := fmt.Sprintf("%s:%d:%s", c.FileName, c.ChunkID, c.Text)
	return uuid.NewSHA1(pointNamespace, []byte(seed)).String()
}
