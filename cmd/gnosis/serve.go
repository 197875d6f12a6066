// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/jllopis/gnosis/pkg/agent"
	"github.com/jllopis/gnosis/pkg/config"
	"github.com/jllopis/gnosis/pkg/core"
	"github.com/jllopis/gnosis/pkg/rag"
	"github.com/jllopis/gnosis/pkg/retrieve"
	"github.com/jllopis/gnosis/pkg/server"
	"github.com/jllopis/gnosis/pkg/telemetry"
	"github.com/jllopis/gnosis/pkg/vectorstore"
)

const healthMetricsInterval = 30 * time.Second

func runServe(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := cmd.String("addr", "", "Listen address (overrides config)")
	watch := cmd.Bool("watch", false, "Watch the config file and reapply log settings on change")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}

	shutdown := initTelemetry(cfg)
	defer shutdown()

	if *watch {
		if path := configPathFromArgs(global.ConfigArgs); path != "" {
			watcher, _, err := config.WatchConfig(ctx, path,
				config.WithWatchProfile(profileFromArgs(global.ConfigArgs)))
			if err != nil {
				slog.Warn("serve.config.watch_failed", "path", path, "error", err)
			} else {
				watcher.OnChange(func(next *config.Config) {
					telemetry.ConfigureSlog(os.Stderr, next.Log.Level, next.Log.Format)
					slog.Info("config.reloaded", "path", path)
				})
				defer watcher.Stop()
			}
		} else {
			slog.Warn("serve.config.watch_no_path")
		}
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

	// The service still starts when Qdrant is down: chat degrades to
	// tool errors until the store comes back.
	if err := store.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		slog.Warn("serve.qdrant.init_failed", "collection", cfg.Qdrant.Collection, "error", err)
	}

	retriever := retrieve.New(embedder, store, cfg.Retrieve.Limit, float32(cfg.Retrieve.ScoreThreshold))

	metrics := agent.InitErrorMetrics()
	registry, closers := buildRegistry(ctx, cfg, retriever, metrics)
	defer closers.close()

	runner := agent.NewRunner(provider, registry, cfg.LLM.Model,
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithEventEmitter(core.LogEmitter{}))
	answerer := rag.NewAnswerer(retriever, provider)

	runs, err := newRunStore(cfg)
	if err != nil {
		fatal(err)
	}
	defer runs.Close()

	health := core.NewDefaultHealthCheckProvider()
	health.RegisterChecker("agent", agent.NewRunnerHealthChecker(runner))
	health.RegisterChecker("llm", agent.NewLLMHealthChecker(cfg.LLM.Provider, nil))
	health.RegisterChecker("vectorstore", agent.NewVectorStoreHealthChecker("qdrant", store.Ping))
	go recordHealthMetrics(ctx, health, metrics)

	guard := newGuardrails(cfg)
	if guard != nil {
		slog.Info("serve.guardrails.enabled",
			slog.Bool("block_injection", cfg.Guardrails.BlockInjection),
			slog.Bool("mask_pii", cfg.Guardrails.MaskPII),
			slog.Int("blocked_terms", len(cfg.Guardrails.BlockedTerms)))
	}

	srv := server.New(runner, answerer, runs,
		server.WithMode(cfg.Agent.Mode),
		server.WithHealthProvider(health),
		server.WithGuardrails(guard),
		server.WithEventEmitter(core.LogEmitter{}))

	listenAddr := cfg.Server.Addr
	if *addr != "" {
		listenAddr = *addr
	}
	if err := srv.ListenAndServe(ctx, listenAddr); err != nil {
		fatal(err)
	}
}

// recordHealthMetrics periodically publishes component health as
// metrics so dashboards see degradation without polling /health.
func recordHealthMetrics(ctx context.Context, health core.HealthCheckProvider, metrics *agent.ErrorMetricsIntegration) {
	ticker := time.NewTicker(healthMetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, _ := health.CheckAll(ctx)
			for _, result := range results {
				metrics.RecordHealthStatus(ctx, result.Component, result.Status)
			}
		}
	}
}
