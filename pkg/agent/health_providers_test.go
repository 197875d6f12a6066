// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jllopis/gnosis/pkg/core"
	"github.com/jllopis/gnosis/pkg/llm"
	"github.com/jllopis/gnosis/pkg/tools"
)

func TestRunnerHealthChecker(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newTestRegistry("", "")

	healthy := NewRunnerHealthChecker(NewRunner(&llm.MockProvider{Response: "ok"}, reg, "m"))
	if got := healthy.Check(ctx); got.Status != core.HealthHealthy {
		t.Errorf("status = %v, want healthy: %+v", got.Status, got)
	}

	noProvider := NewRunnerHealthChecker(NewRunner(nil, reg, "m"))
	if got := noProvider.Check(ctx); got.Status != core.HealthUnhealthy {
		t.Errorf("status without provider = %v, want unhealthy", got.Status)
	}

	noTools := NewRunnerHealthChecker(NewRunner(&llm.MockProvider{}, tools.NewRegistry(), "m"))
	got := noTools.Check(ctx)
	if got.Status != core.HealthDegraded {
		t.Errorf("status without tools = %v, want degraded", got.Status)
	}
	if got.Component != "agent" {
		t.Errorf("component = %q", got.Component)
	}
}

func TestLLMHealthCheckerCachesResults(t *testing.T) {
	ctx := context.Background()
	calls := 0
	checker := NewLLMHealthChecker("openai", func(ctx context.Context) error {
		calls++
		return nil
	})

	first := checker.Check(ctx)
	second := checker.Check(ctx)
	if calls != 1 {
		t.Fatalf("check function ran %d times, want 1 within the cache interval", calls)
	}
	if first.Status != core.HealthHealthy || second.Status != first.Status {
		t.Errorf("statuses = %v, %v", first.Status, second.Status)
	}
	if first.Component != "llm:openai" {
		t.Errorf("component = %q", first.Component)
	}
}

func TestLLMHealthCheckerExpiredCacheReprobes(t *testing.T) {
	calls := 0
	checker := NewLLMHealthChecker("openai", func(ctx context.Context) error {
		calls++
		return nil
	})
	checker.cache.ttl = 0

	checker.Check(context.Background())
	checker.Check(context.Background())
	if calls != 2 {
		t.Errorf("probe ran %d times, want 2 once the cached result expired", calls)
	}
}

func TestLLMHealthCheckerNoCheckFunc(t *testing.T) {
	checker := NewLLMHealthChecker("mock", nil)
	got := checker.Check(context.Background())
	if got.Status != core.HealthHealthy {
		t.Errorf("status = %v, want healthy when no check is configured", got.Status)
	}
}

func TestLLMHealthCheckerUnhealthyOnError(t *testing.T) {
	checker := NewLLMHealthChecker("openai", func(ctx context.Context) error {
		return fmt.Errorf("connection refused")
	})
	got := checker.Check(context.Background())
	if got.Status != core.HealthUnhealthy {
		t.Errorf("status = %v, want unhealthy", got.Status)
	}
	if got.Error == nil {
		t.Error("Error should carry the check failure")
	}
}

func TestVectorStoreHealthChecker(t *testing.T) {
	ctx := context.Background()

	missing := NewVectorStoreHealthChecker("qdrant", nil)
	if got := missing.Check(ctx); got.Status != core.HealthUnhealthy {
		t.Errorf("status without check func = %v, want unhealthy", got.Status)
	}

	// A failing store degrades the service but does not take it down;
	// the agent still answers with search errors surfaced as tool output.
	failing := NewVectorStoreHealthChecker("qdrant", func(ctx context.Context) error {
		return fmt.Errorf("connection refused")
	})
	got := failing.Check(ctx)
	if got.Status != core.HealthDegraded {
		t.Errorf("status on check failure = %v, want degraded", got.Status)
	}
	if !strings.Contains(got.Message, "connection refused") {
		t.Errorf("message = %q", got.Message)
	}

	ok := NewVectorStoreHealthChecker("qdrant", func(ctx context.Context) error { return nil })
	got = ok.Check(ctx)
	if got.Status != core.HealthHealthy {
		t.Errorf("status = %v, want healthy", got.Status)
	}
	if got.Component != "vectorstore:qdrant" {
		t.Errorf("component = %q", got.Component)
	}
}
