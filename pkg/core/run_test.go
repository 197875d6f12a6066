package core

import (
	"context"
	"testing"
)

func TestRunLifecycle(t *testing.T) {
	run := NewRun("what is the capital of France?", "agent")
	if run.Status != RunStatusRunning {
		t.Fatalf("expected running status")
	}
	if run.ID == "" {
		t.Fatalf("expected generated run id")
	}
	run.Complete("Paris")
	if run.Status != RunStatusCompleted {
		t.Fatalf("expected completed status")
	}
	if run.Answer != "Paris" {
		t.Fatalf("expected answer to be set")
	}
	if run.FinishedAt.IsZero() {
		t.Fatalf("expected finished timestamp")
	}

	failed := NewRun("another question", "direct")
	failed.Fail("llm unavailable")
	if failed.Status != RunStatusFailed {
		t.Fatalf("expected failed status")
	}
	if failed.Error == "" {
		t.Fatalf("expected error to be set")
	}
}

func TestRunIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRunID()
		if seen[id] {
			t.Fatalf("duplicate run id: %s", id)
		}
		seen[id] = true
	}
}

func TestEnsureRunID(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if id == "" {
		t.Fatalf("expected run id")
	}

	// Second call should return the same id
	_, id2 := EnsureRunID(ctx)
	if id2 != id {
		t.Fatalf("expected stable run id, got %s and %s", id, id2)
	}
}
