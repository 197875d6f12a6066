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
	"github.com/jllopis/gnosis/pkg/rag"
	"github.com/jllopis/gnosis/pkg/retrieve"
	"github.com/jllopis/gnosis/pkg/server"
	"github.com/jllopis/gnosis/pkg/vectorstore"
)

func runQuery(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("query", flag.ContinueOnError)
	query := cmd.String("q", "", "Question to ask")
	mode := cmd.String("mode", cfg.Agent.Mode, "Answer mode: agent or direct")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	if strings.TrimSpace(*query) == "" && cmd.NArg() > 0 {
		*query = strings.Join(cmd.Args(), " ")
	}
	if strings.TrimSpace(*query) == "" {
		fatal(fmt.Errorf("query: -q is required"))
	}

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

	retriever := retrieve.New(embedder, store, cfg.Retrieve.Limit, float32(cfg.Retrieve.ScoreThreshold))

	switch *mode {
	case server.ModeDirect:
		answerer := rag.NewAnswerer(retriever, provider)
		result, err := answerer.Answer(ctx, *query)
		if err != nil {
			fatal(err)
		}
		if global.JSON {
			printJSON(map[string]any{
				"query":          *query,
				"answer":         result.Answer,
				"retrieved_docs": result.RetrievedDocs,
			})
			return
		}
		fmt.Println(result.Answer)
	case server.ModeAgent:
		metrics := agent.InitErrorMetrics()
		registry, closers := buildRegistry(ctx, cfg, retriever, metrics)
		defer closers.close()

		runner := agent.NewRunner(provider, registry, cfg.LLM.Model,
			agent.WithMaxIterations(cfg.Agent.MaxIterations))
		result, err := runner.Run(ctx, *query)
		if err != nil {
			fatal(err)
		}
		if global.JSON {
			printJSON(map[string]any{
				"query":      result.Query,
				"answer":     result.Answer,
				"tool_calls": result.ToolCallNames(),
			})
			return
		}
		if len(result.ToolCalls) > 0 {
			fmt.Printf("Tools used: %s\n", strings.Join(result.ToolCallNames(), ", "))
		}
		fmt.Println(result.Answer)
	default:
		fatal(fmt.Errorf("unknown mode %q", *mode))
	}
}
