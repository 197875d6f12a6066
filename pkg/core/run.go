package core

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus describes the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents a single question-answering exchange, in either agent or
// direct retrieval mode.
type Run struct {
	ID            string
	Query         string
	Answer        string
	Mode          string // agent, direct
	ToolCalls     []string
	RetrievedDocs []string
	Status        RunStatus
	Error         string
	CreatedAt     time.Time
	FinishedAt    time.Time
}

// Feedback records a user's rating of a run's answer.
type Feedback struct {
	RunID     string
	Score     float64 // 1.0 positive, 0.0 negative
	Comment   string
	CreatedAt time.Time
}

// NewRun creates a run with a generated ID.
func NewRun(query, mode string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Query:     query,
		Mode:      mode,
		Status:    RunStatusRunning,
		CreatedAt: time.Now().UTC(),
	}
}

// Complete marks the run as completed with the final answer.
func (r *Run) Complete(answer string) {
	r.Answer = answer
	r.Status = RunStatusCompleted
	r.FinishedAt = time.Now().UTC()
}

// Fail marks the run as failed.
func (r *Run) Fail(msg string) {
	r.Error = msg
	r.Status = RunStatusFailed
	r.FinishedAt = time.Now().UTC()
}
