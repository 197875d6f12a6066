// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/jllopis/gnosis/pkg/errors"
	"github.com/jllopis/gnosis/pkg/llm"
	"github.com/jllopis/gnosis/pkg/resilience"
	"github.com/jllopis/gnosis/pkg/telemetry"
)

const tagSystemPrompt = `You are a tagging assistant. Generate exactly 3 relevant, concise tags for the given text.
Tags should be:
- Single words only
- Lowercase
- Descriptive of the main topics/concepts
- Separated by commas

Respond ONLY with the 3 tags separated by commas, nothing else.
Example: machine learning, python, data science`

const (
	// tagCount is the fixed number of tags per chunk.
	tagCount = 3
	// tagPrefixRunes bounds how much of a chunk is sent to the model.
	tagPrefixRunes = 500
	// tagTemperature keeps tag output near-deterministic.
	tagTemperature = 0.1
)

// fallbackTags is the triple used when the model cannot be reached.
func fallbackTags() []string {
	return []string{"general", "document", "content"}
}

// Tagger labels text chunks with exactly three descriptive tags.
type Tagger struct {
	provider llm.Provider
	workers  int
	metrics  *telemetry.ErrorMetrics
}

// TaggerOption configures a Tagger.
type TaggerOption func(*Tagger)

// WithTagMetrics records tagging failures and fallback recoveries.
func WithTagMetrics(metrics *telemetry.ErrorMetrics) TaggerOption {
	return func(t *Tagger) { t.metrics = metrics }
}

// NewTagger returns a Tagger backed by provider. workers bounds how many
// chunks are tagged concurrently by TagAll.
func NewTagger(provider llm.Provider, workers int, opts ...TaggerOption) *Tagger {
	if workers <= 0 {
		workers = 1
	}
	t := &Tagger{provider: provider, workers: workers}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tag returns exactly three tags for text. Model failures never propagate:
// any error is swallowed and replaced with a fixed fallback triple so a
// flaky model cannot abort ingestion.
func (t *Tagger) Tag(ctx context.Context, text string) []string {
	result, _ := resilience.WithFallback(ctx,
		func() (interface{}, error) { return t.generate(ctx, text) },
		resilience.FallbackFunc(func(fctx context.Context, primaryErr error) (interface{}, error) {
			slog.Warn("ingest.tag.fallback", "error", primaryErr)
			t.metrics.RecordErrorMetric(fctx, primaryErr, "tagger")
			t.metrics.RecordRecovery(fctx, errors.AsGnosisError(primaryErr).Code)
			return fallbackTags(), nil
		}))
	return result.([]string)
}

// TagAll tags every text on a bounded worker pool, preserving input order
// in the returned slice.
func (t *Tagger) TagAll(ctx context.Context, texts []string) ([][]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(t.workers)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to create tagging worker pool", err)
	}
	defer pool.Release()

	slog.Debug("ingest.tag.batch", "count", len(texts), "workers", t.workers)

	results := make([][]string, len(texts))
	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		if submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i] = t.Tag(ctx, text)
		}); submitErr != nil {
			wg.Done()
			results[i] = fallbackTags()
		}
	}
	wg.Wait()

	return results, nil
}

func (t *Tagger) generate(ctx context.Context, text string) ([]string, error) {
	prefix := text
	if runes := []rune(text); len(runes) > tagPrefixRunes {
		prefix = string(runes[:tagPrefixRunes])
	}

	resp, err := t.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: tagSystemPrompt},
			{Role: llm.RoleUser, Content: "Generate 3 tags for this text:\n\n" + prefix},
		},
		Temperature: tagTemperature,
	})
	if err != nil {
		return nil, err
	}

	return normalizeTags(resp.Content), nil
}

// normalizeTags parses a comma-separated model response into exactly
// tagCount entries, padding with "general" or truncating as needed.
func normalizeTags(raw string) []string {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	tags := make([]string, 0, tagCount)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tags = append(tags, part)
		if len(tags) == tagCount {
			break
		}
	}
	for len(tags) < tagCount {
		tags = append(tags, "general")
	}
	return tags
}
