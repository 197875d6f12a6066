// SPDX-License-Identifier: Apache-2.0

package runstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jllopis/gnosis/pkg/core"
	"github.com/jllopis/gnosis/pkg/errors"
)

// newStores returns every Store implementation so the suite runs against
// both the in-memory and the SQLite backends.
func newStores(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestStoreRunRoundTrip(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := core.NewRun("what is gnosis?", "agent")
			run.ToolCalls = []string{"search_knowledge_base", "stock_info"}
			run.Complete("Gnosis is a RAG service.")

			if err := store.SaveRun(ctx, run); err != nil {
				t.Fatalf("save run: %v", err)
			}
			got, err := store.GetRun(ctx, run.ID)
			if err != nil {
				t.Fatalf("get run: %v", err)
			}
			if got.Query != run.Query || got.Answer != run.Answer || got.Mode != "agent" {
				t.Errorf("round trip mismatch: %+v", got)
			}
			if got.Status != core.RunStatusCompleted {
				t.Errorf("status = %q", got.Status)
			}
			if len(got.ToolCalls) != 2 || got.ToolCalls[0] != "search_knowledge_base" || got.ToolCalls[1] != "stock_info" {
				t.Errorf("tool calls = %v", got.ToolCalls)
			}
			if got.FinishedAt.IsZero() {
				t.Error("finished_at should be set on a completed run")
			}
		})
	}
}

func TestStoreSaveRunUpdates(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := core.NewRun("slow question", "agent")
			if err := store.SaveRun(ctx, run); err != nil {
				t.Fatalf("save running: %v", err)
			}

			run.ToolCalls = []string{"search_knowledge_base"}
			run.Complete("done at last")
			if err := store.SaveRun(ctx, run); err != nil {
				t.Fatalf("save completed: %v", err)
			}

			got, err := store.GetRun(ctx, run.ID)
			if err != nil {
				t.Fatalf("get run: %v", err)
			}
			if got.Status != core.RunStatusCompleted || got.Answer != "done at last" {
				t.Errorf("update not applied: %+v", got)
			}
		})
	}
}

func TestStoreGetRunNotFound(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.GetRun(context.Background(), "missing")
			if err == nil {
				t.Fatal("expected error for unknown run")
			}
			if ge := errors.AsGnosisError(err); ge.Code != errors.CodeNotFound {
				t.Errorf("code = %q, want %q", ge.Code, errors.CodeNotFound)
			}
		})
	}
}

func TestStoreSaveRunValidation(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.SaveRun(context.Background(), &core.Run{})
			if err == nil {
				t.Fatal("expected error for run without ID")
			}
			if ge := errors.AsGnosisError(err); ge.Code != errors.CodeInvalidInput {
				t.Errorf("code = %q, want %q", ge.Code, errors.CodeInvalidInput)
			}
		})
	}
}

func TestStoreFeedback(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := core.NewRun("rate me", "agent")
			if err := store.SaveRun(ctx, run); err != nil {
				t.Fatalf("save run: %v", err)
			}

			now := time.Now().UTC().Truncate(time.Millisecond)
			first := &core.Feedback{RunID: run.ID, Score: 1.0, Comment: "helpful", CreatedAt: now}
			second := &core.Feedback{RunID: run.ID, Score: 0.0, Comment: "missed the point", CreatedAt: now.Add(5 * time.Millisecond)}
			if err := store.SaveFeedback(ctx, first); err != nil {
				t.Fatalf("save first feedback: %v", err)
			}
			if err := store.SaveFeedback(ctx, second); err != nil {
				t.Fatalf("save second feedback: %v", err)
			}

			list, err := store.ListFeedback(ctx, run.ID)
			if err != nil {
				t.Fatalf("list feedback: %v", err)
			}
			if len(list) != 2 {
				t.Fatalf("feedback entries = %d, want 2", len(list))
			}
			if list[0].Score != 1.0 || list[1].Score != 0.0 {
				t.Errorf("scores = %v, %v", list[0].Score, list[1].Score)
			}
			if list[0].Comment != "helpful" || list[1].Comment != "missed the point" {
				t.Errorf("comments = %q, %q", list[0].Comment, list[1].Comment)
			}
			if !list[0].CreatedAt.Equal(now) {
				t.Errorf("created_at = %v, want %v", list[0].CreatedAt, now)
			}
		})
	}
}

func TestStoreFeedbackUnknownRun(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.SaveFeedback(context.Background(), &core.Feedback{RunID: "missing", Score: 1.0})
			if err == nil {
				t.Fatal("expected error for unknown run")
			}
			if ge := errors.AsGnosisError(err); ge.Code != errors.CodeNotFound {
				t.Errorf("code = %q, want %q", ge.Code, errors.CodeNotFound)
			}
		})
	}
}

func TestStoreListFeedbackEmpty(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			list, err := store.ListFeedback(context.Background(), "no-feedback-yet")
			if err != nil {
				t.Fatalf("list feedback: %v", err)
			}
			if len(list) != 0 {
				t.Errorf("entries = %d, want 0", len(list))
			}
		})
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	run := core.NewRun("q", "agent")
	run.ToolCalls = []string{"search_knowledge_base"}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	got.ToolCalls[0] = "mutated"
	got.Answer = "mutated"

	again, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run again: %v", err)
	}
	if again.ToolCalls[0] != "search_knowledge_base" || again.Answer != "" {
		t.Errorf("stored run was mutated through a returned copy: %+v", again)
	}
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	run := core.NewRun("persist me", "direct")
	run.RetrievedDocs = []string{"doc one", "doc two"}
	run.Complete("kept")
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Query != "persist me" || len(got.RetrievedDocs) != 2 {
		t.Errorf("persisted run = %+v", got)
	}
}
