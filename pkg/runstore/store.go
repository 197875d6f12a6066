// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

// Package runstore persists question-answering runs and the user feedback
// attached to them. The SQLite implementation backs the service; the
// in-memory store serves tests and deployments without a database path.
package runstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jllopis/gnosis/pkg/core"
	"github.com/jllopis/gnosis/pkg/errors"
)

// Store provides access to run and feedback records.
type Store interface {
	SaveRun(ctx context.Context, run *core.Run) error
	GetRun(ctx context.Context, runID string) (*core.Run, error)
	SaveFeedback(ctx context.Context, fb *core.Feedback) error
	ListFeedback(ctx context.Context, runID string) ([]*core.Feedback, error)
	Close() error
}

// MemoryStore keeps runs and feedback in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	runs     map[string]*core.Run
	feedback map[string][]*core.Feedback
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:     make(map[string]*core.Run),
		feedback: make(map[string][]*core.Feedback),
	}
}

// SaveRun inserts or replaces a run.
func (s *MemoryStore) SaveRun(ctx context.Context, run *core.Run) error {
	if run == nil || run.ID == "" {
		return errors.New(errors.CodeInvalidInput, "run must have an ID", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = cloneRun(run)
	return nil
}

// GetRun returns the run with the given ID.
func (s *MemoryStore) GetRun(ctx context.Context, runID string) (*core.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("run %q not found", runID), nil)
	}
	return cloneRun(run), nil
}

// SaveFeedback records feedback for a previously saved run.
func (s *MemoryStore) SaveFeedback(ctx context.Context, fb *core.Feedback) error {
	if fb == nil || fb.RunID == "" {
		return errors.New(errors.CodeInvalidInput, "feedback must reference a run", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[fb.RunID]; !ok {
		return errors.New(errors.CodeNotFound, fmt.Sprintf("run %q not found", fb.RunID), nil)
	}
	clone := *fb
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	s.feedback[fb.RunID] = append(s.feedback[fb.RunID], &clone)
	return nil
}

// ListFeedback returns all feedback for a run in submission order.
func (s *MemoryStore) ListFeedback(ctx context.Context, runID string) ([]*core.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.feedback[runID]
	out := make([]*core.Feedback, 0, len(entries))
	for _, fb := range entries {
		clone := *fb
		out = append(out, &clone)
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func cloneRun(run *core.Run) *core.Run {
	clone := *run
	clone.ToolCalls = append([]string(nil), run.ToolCalls...)
	clone.RetrievedDocs = append([]string(nil), run.RetrievedDocs...)
	return &clone
}
