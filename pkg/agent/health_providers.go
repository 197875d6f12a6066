// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"sync"
	"time"

	"github.com/jllopis/gnosis/pkg/core"
)

// cachedCheck memoizes a health probe for ttl so hot health endpoints
// cannot hammer slow dependencies.
type cachedCheck struct {
	ttl  time.Duration
	mu   sync.RWMutex
	last core.HealthResult
	at   time.Time
}

// get returns the cached result while it is fresh, otherwise runs
// probe under the write lock and caches whatever it returns.
func (c *cachedCheck) get(ctx context.Context, probe func(context.Context) core.HealthResult) core.HealthResult {
	c.mu.RLock()
	if c.fresh() {
		defer c.mu.RUnlock()
		return c.last
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fresh() {
		return c.last
	}
	c.last = probe(ctx)
	c.at = time.Now()
	return c.last
}

// fresh needs at least the read lock held.
func (c *cachedCheck) fresh() bool {
	return !c.at.IsZero() && time.Since(c.at) < c.ttl
}

// RunnerHealthChecker reports whether a Runner is wired well enough to
// serve queries.
type RunnerHealthChecker struct {
	runner *Runner
	cache  cachedCheck
}

// NewRunnerHealthChecker creates a health checker for a Runner.
func NewRunnerHealthChecker(runner *Runner) *RunnerHealthChecker {
	return &RunnerHealthChecker{
		runner: runner,
		cache:  cachedCheck{ttl: 5 * time.Second},
	}
}

// Check returns the health status of the agent runner.
func (h *RunnerHealthChecker) Check(ctx context.Context) core.HealthResult {
	return h.cache.get(ctx, h.probe)
}

func (h *RunnerHealthChecker) probe(context.Context) core.HealthResult {
	result := core.HealthResult{
		Component: "agent",
		LastCheck: time.Now(),
	}
	switch {
	case h.runner == nil || h.runner.provider == nil:
		result.Status = core.HealthUnhealthy
		result.Message = "LLM provider not configured"
	case h.runner.registry == nil || h.runner.registry.Len() == 0:
		result.Status = core.HealthDegraded
		result.Message = "no tools registered"
	default:
		result.Status = core.HealthHealthy
		result.Message = "agent operational"
	}
	return result
}

// LLMHealthChecker probes an LLM provider through a caller-supplied
// check function.
type LLMHealthChecker struct {
	name  string
	check func(ctx context.Context) error
	cache cachedCheck
}

// NewLLMHealthChecker creates a health checker for an LLM provider.
func NewLLMHealthChecker(name string, check func(ctx context.Context) error) *LLMHealthChecker {
	return &LLMHealthChecker{
		name:  name,
		check: check,
		cache: cachedCheck{ttl: 30 * time.Second},
	}
}

// Check returns the health status of the LLM provider.
func (h *LLMHealthChecker) Check(ctx context.Context) core.HealthResult {
	return h.cache.get(ctx, h.probe)
}

func (h *LLMHealthChecker) probe(ctx context.Context) core.HealthResult {
	result := core.HealthResult{
		Component: "llm:" + h.name,
		LastCheck: time.Now(),
	}
	if h.check == nil {
		result.Status = core.HealthHealthy
		result.Message = "LLM provider available (no health check configured)"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := h.check(ctx); err != nil {
		result.Status = core.HealthUnhealthy
		result.Message = err.Error()
		result.Error = err
	} else {
		result.Status = core.HealthHealthy
		result.Message = "LLM provider responsive"
	}
	return result
}

// VectorStoreHealthChecker probes the vector store. A failing store
// degrades the service rather than killing it: the agent still answers,
// with knowledge base searches reporting errors as text.
type VectorStoreHealthChecker struct {
	name  string
	check func(ctx context.Context) error
	cache cachedCheck
}

// NewVectorStoreHealthChecker creates a health checker for the vector
// store.
func NewVectorStoreHealthChecker(name string, check func(ctx context.Context) error) *VectorStoreHealthChecker {
	return &VectorStoreHealthChecker{
		name:  name,
		check: check,
		cache: cachedCheck{ttl: 10 * time.Second},
	}
}

// Check returns the health status of the vector store.
func (h *VectorStoreHealthChecker) Check(ctx context.Context) core.HealthResult {
	return h.cache.get(ctx, h.probe)
}

func (h *VectorStoreHealthChecker) probe(ctx context.Context) core.HealthResult {
	result := core.HealthResult{
		Component: "vectorstore:" + h.name,
		LastCheck: time.Now(),
	}
	if h.check == nil {
		result.Status = core.HealthUnhealthy
		result.Message = "vector store not configured"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.check(ctx); err != nil {
		result.Status = core.HealthDegraded
		result.Message = "vector store check failed: " + err.Error()
		result.Error = err
	} else {
		result.Status = core.HealthHealthy
		result.Message = "vector store responsive"
	}
	return result
}
