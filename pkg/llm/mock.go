package llm

import (
	"context"
	"errors"
	"sync"
)

// Test doubles for Provider. MockProvider covers single-shot exchanges,
// ScriptedMockProvider replays a fixed multi-turn script, and
// FailingMockProvider rejects everything.

// MockProvider returns a canned reply. Set ChatFunc to take full control of
// the exchange; otherwise Err wins over Response.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	switch {
	case m.ChatFunc != nil:
		return m.ChatFunc(ctx, req)
	case m.Err != nil:
		return nil, m.Err
	}
	return canned(m.Response), nil
}

// FailingMockProvider rejects every Chat call. The zero value fails with a
// generic error.
type FailingMockProvider struct {
	Err error
}

func (f *FailingMockProvider) Chat(context.Context, ChatRequest) (*ChatResponse, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return nil, errors.New("mock error")
}

// ScriptedMockProvider serves a fixed sequence of replies, one per Chat call.
// Multi-turn flows are tested by scripting every turn up front and letting
// the loop under test consume them in order.
type ScriptedMockProvider struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	// CallCount counts Chat calls, failed ones included.
	CallCount int
}

// NewScriptedMockProvider queues the given replies. The model argument is
// accepted for parity with real provider constructors and ignored.
func NewScriptedMockProvider(model string, responses ...string) *ScriptedMockProvider {
	return &ScriptedMockProvider{Responses: responses}
}

func (s *ScriptedMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCount++
	switch {
	case s.Err != nil:
		return nil, s.Err
	case len(s.Responses) == 0:
		return nil, errors.New("scripted mock: script exhausted")
	}
	next := s.Responses[0]
	s.Responses = s.Responses[1:]
	return canned(next), nil
}

// AddResponse queues one more reply behind any that remain.
func (s *ScriptedMockProvider) AddResponse(response string) {
	s.mu.Lock()
	s.Responses = append(s.Responses, response)
	s.mu.Unlock()
}

// PeekNext reports the reply the next Chat call would serve, or "" once the
// script is exhausted.
func (s *ScriptedMockProvider) PeekNext() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Responses) == 0 {
		return ""
	}
	return s.Responses[0]
}

// canned wraps content in a response with fixed token usage so accounting
// assertions stay stable.
func canned(content string) *ChatResponse {
	return &ChatResponse{
		Content: content,
		Usage:   Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}
}
