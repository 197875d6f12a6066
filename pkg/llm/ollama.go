package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaProvider talks to a local or remote Ollama daemon over its
// /api/chat endpoint. It serves both one-shot and streaming chats.
type OllamaProvider struct {
	baseURL string
	client  *http.Client
}

// NewOllama returns a provider bound to baseURL, defaulting to the
// standard local daemon address when empty.
func NewOllama(baseURL string) *OllamaProvider {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &OllamaProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type ollamaRequest struct {
	Model    string                 `json:"model"`
	Messages []Message              `json:"messages"`
	Stream   bool                   `json:"stream"`
	Tools    []Tool                 `json:"tools,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// ollamaReply is one response object from /api/chat. The one-shot call
// returns exactly one; the streaming call emits one per NDJSON line.
type ollamaReply struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

func (r ollamaReply) usage() Usage {
	return Usage{
		PromptTokens:     r.PromptEvalCount,
		CompletionTokens: r.EvalCount,
		TotalTokens:      r.PromptEvalCount + r.EvalCount,
	}
}

// send posts req to /api/chat and returns the raw response on a 200.
// Any other status is drained into the error message. The caller owns
// the response body.
func (p *OllamaProvider) send(ctx context.Context, req ChatRequest, stream bool) (*http.Response, error) {
	payload := ollamaRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   stream,
		Tools:    req.Tools,
	}
	if req.Temperature != 0 {
		payload.Options = map[string]interface{}{"temperature": req.Temperature}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: chat call: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		return nil, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return resp, nil
}

// Chat implements Provider with a single blocking exchange.
func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := p.send(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reply ollamaReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}

	return &ChatResponse{
		Content:   reply.Message.Content,
		ToolCalls: reply.Message.ToolCalls,
		Usage:     reply.usage(),
	}, nil
}

// ChatStream implements StreamingProvider. Ollama streams NDJSON, one
// reply object per line, with the final object carrying done=true and
// the token counts.
func (p *OllamaProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	resp, err := p.send(ctx, req, true)
	if err != nil {
		return nil, err
	}

	chunks := make(chan StreamChunk, 100)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

		// Ollama sends tool calls whole, never as deltas, so the last
		// set seen wins.
		var toolCalls []ToolCall

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				chunks <- StreamChunk{Error: ctx.Err()}
				return
			default:
			}

			var reply ollamaReply
			if err := json.Unmarshal(scanner.Bytes(), &reply); err != nil {
				continue
			}

			if len(reply.Message.ToolCalls) > 0 {
				toolCalls = reply.Message.ToolCalls
			}

			if reply.Done {
				usage := reply.usage()
				chunks <- StreamChunk{Done: true, ToolCalls: toolCalls, Usage: &usage}
				return
			}

			if reply.Message.Content != "" {
				chunks <- StreamChunk{Content: reply.Message.Content}
			}
		}
		if err := scanner.Err(); err != nil {
			chunks <- StreamChunk{Error: err}
		}
	}()

	return chunks, nil
}

var _ StreamingProvider = (*OllamaProvider)(nil)
