// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/jllopis/gnosis/pkg/agent"
	"github.com/jllopis/gnosis/pkg/config"
	gnosismcp "github.com/jllopis/gnosis/pkg/mcp"
	"github.com/jllopis/gnosis/pkg/retrieve"
	"github.com/jllopis/gnosis/pkg/vectorstore"
)

// runMCP publishes the agent tools over MCP stdio. Logs already go to
// stderr; stdout carries the protocol stream.
func runMCP(ctx context.Context, cfg *config.Config) {
	embedder := newEmbedder(cfg)

	store, err := vectorstore.NewQdrant(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	retriever := retrieve.New(embedder, store, cfg.Retrieve.Limit, float32(cfg.Retrieve.ScoreThreshold))

	metrics := agent.InitErrorMetrics()
	registry, closers := buildRegistry(ctx, cfg, retriever, metrics)
	defer closers.close()

	if err := gnosismcp.NewServer("gnosis", appVersion, registry).ServeStdio(); err != nil {
		fatal(err)
	}
}
