// Package llm defines the provider-agnostic chat types and the
// Provider interfaces the rest of Gnosis programs against.
package llm

import "context"

// Provider is the minimal surface a chat backend must offer.
type Provider interface {
	// Chat sends one request and blocks for the full response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// StreamingProvider is implemented by backends that can deliver the
// response incrementally.
type StreamingProvider interface {
	Provider

	// ChatStream sends a request and returns a channel of chunks. The
	// channel is closed after the Done chunk or an Error chunk.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolType classifies a tool. Function calling is the only kind in use.
type ToolType string

const (
	ToolTypeFunction ToolType = "function"
)

// FunctionDef describes a callable function: its name and a JSON
// Schema for the arguments.
type FunctionDef struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters"`
}

// Tool is one entry in the tool list offered to the model.
type Tool struct {
	Type     ToolType    `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionCall names a function and carries its arguments as raw JSON
// text, exactly as the model produced them.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is the model's request to invoke a tool. ID ties the later
// tool result message back to this call.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     ToolType     `json:"type"`
	Function FunctionCall `json:"function"`
}

// Message is a single conversation turn. Tool role messages answer a
// prior ToolCall and must set ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ChatRequest is the full input for one model call.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// ChatResponse is the model's answer: text, requested tool calls, or
// both, plus token accounting.
type ChatResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// Usage tracks token consumption for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is one unit of a streamed response. Content carries an
// incremental delta; Done marks the final chunk, which also carries
// any accumulated tool calls and usage.
type StreamChunk struct {
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Done      bool       `json:"done,omitempty"`
	Usage     *Usage     `json:"usage,omitempty"`
	Error     error      `json:"-"`
}
