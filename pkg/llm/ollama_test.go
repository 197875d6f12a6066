package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaChat(t *testing.T) {
	var seen ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message":           map[string]string{"role": "assistant", "content": "four"},
			"done":              true,
			"prompt_eval_count": 7,
			"eval_count":        3,
		})
	}))
	defer srv.Close()

	p := NewOllama(srv.URL)
	resp, err := p.Chat(context.Background(), ChatRequest{
		Model:    "llama3",
		Messages: []Message{{Role: RoleUser, Content: "2+2?"}},
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if seen.Model != "llama3" {
		t.Errorf("request model = %q, want llama3", seen.Model)
	}
	if seen.Stream {
		t.Error("one-shot Chat must request stream=false")
	}
	if resp.Content != "four" {
		t.Errorf("Content = %q, want four", resp.Content)
	}
	if resp.Usage.TotalTokens != 10 {
		t.Errorf("TotalTokens = %d, want 10", resp.Usage.TotalTokens)
	}
}

func TestOllamaChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllama(srv.URL)
	_, err := p.Chat(context.Background(), ChatRequest{Model: "missing"})
	if err == nil {
		t.Fatal("Chat() should fail on a 404")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("error %q should carry status and body detail", err)
	}
}

func TestOllamaChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("ChatStream must request stream=true")
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Hel"},"done":false}`)
		fmt.Fprintln(w, `not json, must be skipped`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"lo"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"","tool_calls":[{"type":"function","function":{"name":"search","arguments":"{}"}}]},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":7,"eval_count":3}`)
	}))
	defer srv.Close()

	p := NewOllama(srv.URL)
	ch, err := p.ChatStream(context.Background(), ChatRequest{Model: "llama3"})
	if err != nil {
		t.Fatalf("ChatStream() error: %v", err)
	}

	var got []StreamChunk
	for chunk := range ch {
		if chunk.Error != nil {
			t.Fatalf("stream error: %v", chunk.Error)
		}
		got = append(got, chunk)
	}

	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3 (two deltas and the final)", len(got))
	}
	if got[0].Content != "Hel" || got[1].Content != "lo" {
		t.Errorf("deltas = %q, %q, want Hel, lo", got[0].Content, got[1].Content)
	}

	final := got[2]
	if !final.Done {
		t.Error("last chunk must be marked done")
	}
	if len(final.ToolCalls) != 1 || final.ToolCalls[0].Function.Name != "search" {
		t.Errorf("final tool calls = %+v, want the accumulated search call", final.ToolCalls)
	}
	if final.Usage == nil || final.Usage.TotalTokens != 10 {
		t.Errorf("final usage = %+v, want 10 total tokens", final.Usage)
	}
}

func TestNewOllamaDefaultsBaseURL(t *testing.T) {
	p := NewOllama("")
	if p.baseURL != defaultOllamaURL {
		t.Errorf("baseURL = %q, want %q", p.baseURL, defaultOllamaURL)
	}
}
