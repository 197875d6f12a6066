// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/jllopis/gnosis/pkg/agent"
	"github.com/jllopis/gnosis/pkg/config"
	"github.com/jllopis/gnosis/pkg/ingest"
	"github.com/jllopis/gnosis/pkg/vectorstore"
)

func runIngest(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("ingest", flag.ContinueOnError)
	dir := cmd.String("dir", cfg.Ingest.Dir, "Directory with documents to ingest")
	chunkSize := cmd.Int("chunk-size", cfg.Ingest.ChunkSize, "Chunk size in characters")
	chunkOverlap := cmd.Int("chunk-overlap", cfg.Ingest.ChunkOverlap, "Overlap between consecutive chunks")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	if strings.TrimSpace(*dir) == "" {
		fatal(fmt.Errorf("ingest: -dir is required"))
	}

	shutdown := initTelemetry(cfg)
	defer shutdown()

	provider, err := newChatProvider(cfg)
	if err != nil {
		fatal(err)
	}
	embedder := newEmbedder(cfg)

	store, err := vectorstore.NewQdrant(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	chunker, err := ingest.NewChunker(*chunkSize, *chunkOverlap)
	if err != nil {
		fatal(err)
	}
	metrics := agent.InitErrorMetrics()
	tagger := ingest.NewTagger(provider, cfg.Ingest.TagWorkers,
		ingest.WithTagMetrics(metrics.Metrics()))
	pipeline := ingest.NewPipeline(chunker, tagger, embedder, store, cfg.Ingest.Extensions)

	result, err := pipeline.IngestDir(ctx, *dir)
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(result)
		return
	}
	fmt.Printf("Ingested %d files: %d chunks, %d points upserted\n", result.Files, result.Chunks, result.Upserted)
	for _, file := range result.FailedFiles {
		fmt.Printf("  failed: %s\n", file)
	}
}
