// SPDX-License-Identifier: Apache-2.0

package embedding

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func TestNewOpenAIDefaults(t *testing.T) {
	e := NewOpenAI(Config{})

	if e.cfg.Model != "text-embedding-3-large" {
		t.Errorf("expected default model, got %s", e.cfg.Model)
	}
	if e.Dimensions() != 3072 {
		t.Errorf("expected 3072 dimensions, got %d", e.Dimensions())
	}
	if e.cfg.SyncThreshold != 5 {
		t.Errorf("expected sync threshold 5, got %d", e.cfg.SyncThreshold)
	}
	if e.cfg.PollInterval != 10*time.Second {
		t.Errorf("expected 10s poll interval, got %s", e.cfg.PollInterval)
	}
	if e.cfg.CompletionWindow != "24h" {
		t.Errorf("expected 24h completion window, got %s", e.cfg.CompletionWindow)
	}
}

func TestWriteBatchInput(t *testing.T) {
	e := NewOpenAI(Config{Model: "text-embedding-3-large"})

	path, err := e.writeBatchInput([]string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("writeBatchInput failed: %v", err)
	}
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open batch input: %v", err)
	}
	defer f.Close()

	var requests []batchRequest
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var req batchRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			t.Fatalf("bad JSONL line: %v", err)
		}
		requests = append(requests, req)
	}

	if len(requests) != 2 {
		t.Fatalf("expected 2 request lines, got %d", len(requests))
	}
	for i, req := range requests {
		if want := fmt.Sprintf("req_%d", i); req.CustomID != want {
			t.Errorf("expected custom id %s, got %s", want, req.CustomID)
		}
		if req.Method != "POST" || req.URL != "/v1/embeddings" {
			t.Errorf("unexpected method/url: %s %s", req.Method, req.URL)
		}
		if req.Body.Model != "text-embedding-3-large" {
			t.Errorf("unexpected model: %s", req.Body.Model)
		}
		if req.Body.EncodingFormat != "float" {
			t.Errorf("unexpected encoding format: %s", req.Body.EncodingFormat)
		}
	}
	if requests[0].Body.Input != "alpha" || requests[1].Body.Input != "beta" {
		t.Errorf("inputs out of order: %q, %q", requests[0].Body.Input, requests[1].Body.Input)
	}
}

func batchResultLine(idx int, value float64) string {
	return fmt.Sprintf(
		`{"custom_id":"req_%d","response":{"status_code":200,"body":{"data":[{"embedding":[%g,%g]}]}}}`,
		idx, value, value)
}

func TestParseBatchOutputShuffled(t *testing.T) {
	// Backend returns records in reverse order; output must still align
	// with input positions.
	lines := []string{
		batchResultLine(2, 0.2),
		batchResultLine(0, 0.0),
		batchResultLine(1, 0.1),
	}

	vectors, err := parseBatchOutput(strings.NewReader(strings.Join(lines, "\n")), 3)
	if err != nil {
		t.Fatalf("parseBatchOutput failed: %v", err)
	}

	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	for i, want := range []float32{0.0, 0.1, 0.2} {
		if vectors[i] == nil {
			t.Fatalf("vector %d is nil", i)
		}
		if vectors[i][0] != want {
			t.Errorf("vector %d = %v, want first element %g", i, vectors[i], want)
		}
	}
}

func TestParseBatchOutputFailedRecord(t *testing.T) {
	lines := []string{
		batchResultLine(0, 0.0),
		`{"custom_id":"req_1","response":{"status_code":400,"body":{"data":[]}}}`,
		batchResultLine(2, 0.2),
	}

	vectors, err := parseBatchOutput(strings.NewReader(strings.Join(lines, "\n")), 3)
	if err != nil {
		t.Fatalf("parseBatchOutput failed: %v", err)
	}

	if vectors[0] == nil || vectors[2] == nil {
		t.Fatalf("expected surviving records at 0 and 2")
	}
	// Failed record leaves a gap instead of shifting later vectors
	if vectors[1] != nil {
		t.Errorf("expected nil gap at index 1, got %v", vectors[1])
	}
	if vectors[2][0] != 0.2 {
		t.Errorf("vector 2 misaligned: %v", vectors[2])
	}
}

func TestParseBatchOutputIgnoresGarbage(t *testing.T) {
	lines := []string{
		"",
		"not json",
		`{"custom_id":"other_3","response":{"status_code":200,"body":{"data":[{"embedding":[1]}]}}}`,
		`{"custom_id":"req_99","response":{"status_code":200,"body":{"data":[{"embedding":[1]}]}}}`,
		batchResultLine(0, 0.5),
	}

	vectors, err := parseBatchOutput(strings.NewReader(strings.Join(lines, "\n")), 1)
	if err != nil {
		t.Fatalf("parseBatchOutput failed: %v", err)
	}
	if len(vectors) != 1 || vectors[0] == nil || vectors[0][0] != 0.5 {
		t.Errorf("unexpected vectors: %v", vectors)
	}
}

func TestBatchIndex(t *testing.T) {
	idx, err := batchIndex("req_42")
	if err != nil {
		t.Fatalf("batchIndex failed: %v", err)
	}
	if idx != 42 {
		t.Errorf("expected 42, got %d", idx)
	}

	if _, err := batchIndex("other_1"); err == nil {
		t.Errorf("expected error for foreign custom id")
	}
	if _, err := batchIndex("req_x"); err == nil {
		t.Errorf("expected error for non-numeric suffix")
	}
}

func TestToFloat32(t *testing.T) {
	out := toFloat32([]float64{1.5, -2.25})
	if len(out) != 2 || out[0] != 1.5 || out[1] != -2.25 {
		t.Errorf("unexpected conversion: %v", out)
	}
}
