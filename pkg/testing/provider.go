// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jllopis/gnosis/pkg/llm"
)

// ScenarioProvider is a scripted llm.Provider for exercising the agent
// loop: queued turns are replayed in order, tool calls included, and
// every request is captured for inspection.
type ScenarioProvider struct {
	mu     sync.Mutex
	script []ScriptedResponse
	next   int
	seen   []llm.ChatRequest
}

// ScriptedResponse is one canned model turn.
type ScriptedResponse struct {
	Content   string
	ToolCalls []llm.ToolCall
	Error     error
	Usage     llm.Usage
}

// NewScenarioProvider creates an empty scenario provider.
func NewScenarioProvider() *ScenarioProvider {
	return &ScenarioProvider{}
}

func (p *ScenarioProvider) enqueue(turn ScriptedResponse) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, turn)
	return p
}

// AddResponse queues a plain text turn.
func (p *ScenarioProvider) AddResponse(content string) *ScenarioProvider {
	return p.enqueue(ScriptedResponse{Content: content})
}

// AddToolCallResponse queues a turn requesting the given tool calls.
func (p *ScenarioProvider) AddToolCallResponse(toolCalls ...llm.ToolCall) *ScenarioProvider {
	return p.enqueue(ScriptedResponse{ToolCalls: toolCalls})
}

// AddErrorResponse queues a provider failure.
func (p *ScenarioProvider) AddErrorResponse(err error) *ScenarioProvider {
	return p.enqueue(ScriptedResponse{Error: err})
}

// Chat implements llm.Provider by replaying the script.
func (p *ScenarioProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seen = append(p.seen, req)
	if p.next >= len(p.script) {
		return nil, fmt.Errorf("no more scripted responses (call %d)", p.next+1)
	}
	turn := p.script[p.next]
	p.next++

	if turn.Error != nil {
		return nil, turn.Error
	}
	return &llm.ChatResponse{
		Content:   turn.Content,
		ToolCalls: turn.ToolCalls,
		Usage:     turn.Usage,
	}, nil
}

// Requests returns the captured requests in call order.
func (p *ScenarioProvider) Requests() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.ChatRequest, len(p.seen))
	copy(out, p.seen)
	return out
}

// LastRequest returns the most recent request, or nil before the first call.
func (p *ScenarioProvider) LastRequest() *llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.seen) == 0 {
		return nil
	}
	last := p.seen[len(p.seen)-1]
	return &last
}

// CallCount reports how many Chat calls the provider has served.
func (p *ScenarioProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

var _ llm.Provider = (*ScenarioProvider)(nil)

// ToolCallBuilder assembles llm.ToolCall values for scripted turns.
type ToolCallBuilder struct {
	id      string
	name    string
	args    map[string]any
	rawArgs string
}

// NewToolCall starts a tool call for the named tool.
func NewToolCall(name string) *ToolCallBuilder {
	return &ToolCallBuilder{name: name, args: map[string]any{}}
}

// WithID sets the tool call ID.
func (b *ToolCallBuilder) WithID(id string) *ToolCallBuilder {
	b.id = id
	return b
}

// WithArg adds one argument.
func (b *ToolCallBuilder) WithArg(key string, value any) *ToolCallBuilder {
	b.args[key] = value
	return b
}

// WithRawArgs replaces the argument map with a raw JSON string, for
// simulating malformed model output.
func (b *ToolCallBuilder) WithRawArgs(raw string) *ToolCallBuilder {
	b.args = nil
	b.rawArgs = raw
	return b
}

// Build creates the tool call.
func (b *ToolCallBuilder) Build() llm.ToolCall {
	arguments := b.rawArgs
	if b.args != nil {
		encoded, _ := json.Marshal(b.args)
		arguments = string(encoded)
	}
	return llm.ToolCall{
		ID:   b.id,
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionCall{
			Name:      b.name,
			Arguments: arguments,
		},
	}
}
