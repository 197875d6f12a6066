// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

// Package openai adapts the official OpenAI SDK to the llm.Provider
// interface, including streaming with tool call reassembly.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/jllopis/gnosis/pkg/llm"
)

const defaultModel = "gpt-4o-mini"

// Provider implements llm.Provider and llm.StreamingProvider on top of
// the official OpenAI client.
type Provider struct {
	client  openai.Client
	model   string
	reqOpts []option.RequestOption
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the model used when a request does not name one.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL points the client at a compatible endpoint, such as
// Azure OpenAI or a local proxy.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.reqOpts = append(p.reqOpts, option.WithBaseURL(url)) }
}

// WithAPIKey sets the key explicitly instead of reading
// OPENAI_API_KEY from the environment.
func WithAPIKey(apiKey string) Option {
	return func(p *Provider) { p.reqOpts = append(p.reqOpts, option.WithAPIKey(apiKey)) }
}

// New builds a provider. Request options accumulate across the given
// options, so WithAPIKey and WithBaseURL compose.
func New(opts ...Option) *Provider {
	p := &Provider{model: defaultModel}
	for _, opt := range opts {
		opt(p)
	}
	p.client = openai.NewClient(p.reqOpts...)
	return p
}

// NewWithAPIKey builds a provider with an explicit key.
func NewWithAPIKey(apiKey string, opts ...Option) *Provider {
	return New(append([]Option{WithAPIKey(apiKey)}, opts...)...)
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	completion, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}
	return fromCompletion(completion), nil
}

// buildParams maps a chat request onto SDK params, filling in the
// default model when the request leaves it empty.
func (p *Provider) buildParams(req llm.ChatRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	if params.Model == "" {
		params.Model = p.model
	}
	for _, msg := range req.Messages {
		params.Messages = append(params.Messages, messageParam(msg))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	for _, tool := range req.Tools {
		params.Tools = append(params.Tools, toolParam(tool))
	}
	return params
}

// messageParam maps one message onto the SDK union for its role.
// Unknown roles degrade to user messages.
func messageParam(msg llm.Message) openai.ChatCompletionMessageParamUnion {
	switch msg.Role {
	case llm.RoleSystem:
		return openai.SystemMessage(msg.Content)
	case llm.RoleAssistant:
		if len(msg.ToolCalls) == 0 {
			return openai.AssistantMessage(msg.Content)
		}
		return assistantToolCallMessage(msg)
	case llm.RoleTool:
		return openai.ToolMessage(msg.Content, msg.ToolCallID)
	default:
		return openai.UserMessage(msg.Content)
	}
}

// assistantToolCallMessage rebuilds an assistant turn that requested
// tool calls, which the plain union constructors cannot express.
func assistantToolCallMessage(msg llm.Message) openai.ChatCompletionMessageParamUnion {
	calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
	if msg.Content != "" {
		assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: param.NewOpt(msg.Content),
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

// toolParam passes the tool's JSON schema through to the SDK shape.
func toolParam(tool llm.Tool) openai.ChatCompletionToolParam {
	var schema openai.FunctionParameters
	if raw, err := json.Marshal(tool.Function.Parameters); err == nil {
		_ = json.Unmarshal(raw, &schema)
	}
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: openai.FunctionDefinitionParam{
			Name:        tool.Function.Name,
			Description: openai.String(tool.Function.Description),
			Parameters:  schema,
		},
	}
}

// fromCompletion maps the first choice and token usage back onto the
// provider-agnostic response.
func fromCompletion(completion *openai.ChatCompletion) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		Usage: llm.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	if len(completion.Choices) == 0 {
		return resp
	}

	msg := completion.Choices[0].Message
	resp.Content = msg.Content
	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
			ID:   tc.ID,
			Type: llm.ToolTypeFunction,
			Function: llm.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return resp
}

// ChatStream implements llm.StreamingProvider. Content arrives as
// deltas; tool calls are reassembled from fragments and delivered with
// the final chunk.
func (p *Provider) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.buildParams(req))
	chunks := make(chan llm.StreamChunk, 100)

	go func() {
		defer close(chunks)

		buf := toolCallBuffer{}
		for stream.Next() {
			event := stream.Current()
			var chunk llm.StreamChunk

			if len(event.Choices) > 0 {
				choice := event.Choices[0]
				chunk.Content = choice.Delta.Content
				for _, tc := range choice.Delta.ToolCalls {
					buf.absorb(int(tc.Index), tc.ID, tc.Function.Name, tc.Function.Arguments)
				}
				if choice.FinishReason != "" {
					chunk.Done = true
					chunk.ToolCalls = buf.calls()
				}
			}

			if event.Usage.TotalTokens > 0 {
				chunk.Usage = &llm.Usage{
					PromptTokens:     int(event.Usage.PromptTokens),
					CompletionTokens: int(event.Usage.CompletionTokens),
					TotalTokens:      int(event.Usage.TotalTokens),
				}
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				chunks <- llm.StreamChunk{Error: ctx.Err()}
				return
			}
		}
		if err := stream.Err(); err != nil {
			chunks <- llm.StreamChunk{Error: err}
		}
	}()

	return chunks, nil
}

// toolCallBuffer reassembles tool calls from stream fragments. The
// first fragment for an index carries the id and function name, later
// ones append argument text.
type toolCallBuffer map[int]*llm.ToolCall

func (b toolCallBuffer) absorb(idx int, id, name, args string) {
	if b[idx] == nil {
		b[idx] = &llm.ToolCall{
			ID:       id,
			Type:     llm.ToolTypeFunction,
			Function: llm.FunctionCall{Name: name},
		}
	}
	b[idx].Function.Arguments += args
}

func (b toolCallBuffer) calls() []llm.ToolCall {
	if len(b) == 0 {
		return nil
	}
	out := make([]llm.ToolCall, 0, len(b))
	for i := 0; i < len(b); i++ {
		if tc, ok := b[i]; ok {
			out = append(out, *tc)
		}
	}
	return out
}

var (
	_ llm.Provider          = (*Provider)(nil)
	_ llm.StreamingProvider = (*Provider)(nil)
)
