package core

import (
	"context"
	"log/slog"
	"time"
)

// EventType names a lifecycle event of a run, an ingest pass or the
// feedback flow.
type EventType string

const (
	EventRunStarted      EventType = "run.started"
	EventRunCompleted    EventType = "run.completed"
	EventAgentThinking   EventType = "agent.thinking"
	EventToolCalled      EventType = "agent.tool.called"
	EventAgentError      EventType = "agent.error"
	EventIngestStarted   EventType = "ingest.started"
	EventIngestCompleted EventType = "ingest.completed"
	EventFeedbackStored  EventType = "feedback.stored"
)

// Event is one emitted lifecycle event, stamped with the run it belongs
// to. Payload carries event-specific detail and may be nil.
type Event struct {
	Type      EventType
	RunID     string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter is the sink the pipeline and agent publish events to.
// Implementations must tolerate concurrent calls.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter drops every event. It is the default sink.
type NoopEventEmitter struct{}

func (NoopEventEmitter) Emit(context.Context, Event) {}

// LogEmitter writes events to slog at debug level, keyed by the event
// type, so a server run can be followed without a dedicated event bus.
type LogEmitter struct{}

func (LogEmitter) Emit(ctx context.Context, event Event) {
	slog.DebugContext(ctx, string(event.Type), "run_id", event.RunID, "payload", event.Payload)
}

// NewEvent stamps a fresh event with the current UTC time.
func NewEvent(eventType EventType, runID string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
