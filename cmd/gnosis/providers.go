// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/option"

	"github.com/jllopis/gnosis/pkg/agent"
	"github.com/jllopis/gnosis/pkg/config"
	"github.com/jllopis/gnosis/pkg/embedding"
	"github.com/jllopis/gnosis/pkg/guardrails"
	"github.com/jllopis/gnosis/pkg/llm"
	"github.com/jllopis/gnosis/pkg/llm/openai"
	gnosismcp "github.com/jllopis/gnosis/pkg/mcp"
	"github.com/jllopis/gnosis/pkg/retrieve"
	"github.com/jllopis/gnosis/pkg/runstore"
	"github.com/jllopis/gnosis/pkg/telemetry"
	"github.com/jllopis/gnosis/pkg/tools"
)

// newChatProvider builds the chat provider named by the config.
func newChatProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case "", "openai":
		opts := []openai.Option{openai.WithModel(cfg.LLM.Model)}
		if cfg.LLM.APIKey != "" {
			opts = append(opts, openai.WithAPIKey(cfg.LLM.APIKey))
		}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLM.BaseURL))
		}
		return openai.New(opts...), nil
	case "ollama":
		return llm.NewOllama(cfg.LLM.BaseURL), nil
	case "mock":
		return &llm.MockProvider{Response: "mock answer"}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

// newEmbedder builds the embedding client. It shares the LLM
// credentials, matching the single-account setup the service assumes.
func newEmbedder(cfg *config.Config) *embedding.OpenAI {
	embCfg := embedding.Config{
		Model:            cfg.Embedding.Model,
		Dimensions:       cfg.Embedding.Dimensions,
		SyncThreshold:    cfg.Embedding.SyncThreshold,
		PollInterval:     time.Duration(cfg.Embedding.PollIntervalSeconds) * time.Second,
		CompletionWindow: cfg.Embedding.CompletionWindow,
	}
	var reqOpts []option.RequestOption
	if cfg.LLM.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(cfg.LLM.APIKey))
	}
	if cfg.LLM.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.LLM.BaseURL))
	}
	return embedding.NewOpenAI(embCfg, reqOpts...)
}

// newGuardrails assembles the guardrail chain from the config, or nil
// when guardrails are disabled.
func newGuardrails(cfg *config.Config) *guardrails.Guardrails {
	if !cfg.Guardrails.Enabled {
		return nil
	}
	var opts []guardrails.Option
	if cfg.Guardrails.BlockInjection {
		opts = append(opts, guardrails.WithPromptInjectionDetector())
	}
	if len(cfg.Guardrails.BlockedTerms) > 0 {
		opts = append(opts, guardrails.WithBlockedTerms(cfg.Guardrails.BlockedTerms...))
	}
	if cfg.Guardrails.MaskPII {
		opts = append(opts, guardrails.WithPIIMasking())
	}
	return guardrails.New(opts...)
}

// newRunStore builds the run/feedback store named by the config.
func newRunStore(cfg *config.Config) (runstore.Store, error) {
	switch cfg.Store.Provider {
	case "", "sqlite":
		return runstore.Open(cfg.Store.Path)
	case "memory":
		return runstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
}

type closeList []func() error

func (c closeList) close() {
	for _, fn := range c {
		_ = fn()
	}
}

// buildRegistry assembles the fixed tool set: the knowledge base
// search tool, the stock tool, and any tools discovered on configured
// MCP servers. MCP failures are logged and skipped so a dead external
// server cannot take the agent down.
func buildRegistry(ctx context.Context, cfg *config.Config, retriever *retrieve.Retriever, metrics *agent.ErrorMetricsIntegration) (*tools.Registry, closeList) {
	var stockOpts []tools.StockOption
	if m := metrics.Metrics(); m != nil {
		stockOpts = append(stockOpts, tools.WithStockMetrics(m))
	}
	stockTimeout := time.Duration(cfg.Tools.Stock.TimeoutSeconds) * time.Second

	list := []tools.Tool{
		tools.NewKnowledgeBase(retriever),
		tools.NewStock(cfg.Tools.Stock.APIKey, cfg.Tools.Stock.BaseURL, stockTimeout, stockOpts...),
	}
	names := map[string]bool{}
	for _, t := range list {
		names[t.Name()] = true
	}

	var closers closeList
	for _, entry := range cfg.Tools.MCPServers {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		client, err := gnosismcp.NewStdioClient(fields[0], fields[1:])
		if err != nil {
			slog.Warn("tools.mcp.connect_failed", "server", entry, "error", err)
			continue
		}
		adapted, err := gnosismcp.AdaptTools(ctx, client)
		if err != nil {
			slog.Warn("tools.mcp.discover_failed", "server", entry, "error", err)
			_ = client.Close()
			continue
		}
		closers = append(closers, client.Close)
		attached := 0
		for _, tool := range adapted {
			if names[tool.Name()] {
				slog.Warn("tools.mcp.duplicate_skipped", "tool", tool.Name(), "server", fields[0])
				continue
			}
			names[tool.Name()] = true
			list = append(list, tool)
			attached++
		}
		slog.Info("tools.mcp.attached", "server", fields[0], "tools", attached)
	}

	return tools.NewRegistry(list...), closers
}

// initTelemetry starts the OpenTelemetry SDK when enabled. The
// returned function flushes exporters on shutdown.
func initTelemetry(cfg *config.Config) func() {
	if !cfg.Telemetry.Enabled {
		return func() {}
	}
	shutdown, err := telemetry.InitWithConfig("gnosis", appVersion, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		slog.Warn("telemetry.init_failed", "error", err)
		return func() {}
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			slog.Warn("telemetry.shutdown_failed", "error", err)
		}
	}
}
