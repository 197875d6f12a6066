// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

func TestNewWrapsCause(t *testing.T) {
	cause := errors.New("network timeout")
	ge := New(CodeTimeout, "tool execution timed out", cause)

	if ge.Code != CodeTimeout {
		t.Errorf("Code = %v, want %v", ge.Code, CodeTimeout)
	}
	if ge.Message != "tool execution timed out" {
		t.Errorf("Message = %q", ge.Message)
	}
	if !errors.Is(ge, cause) {
		t.Error("errors.Is must reach the wrapped cause")
	}
}

func TestErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		ge   *GnosisError
		want string
	}{
		{
			name: "with cause",
			ge:   New(CodeTimeout, "operation timed out", errors.New("deadline exceeded")),
			want: "[TIMEOUT] operation timed out: deadline exceeded",
		},
		{
			name: "without cause",
			ge:   New(CodeNotFound, "run not found", nil),
			want: "[NOT_FOUND] run not found",
		},
		{
			name: "batch failure",
			ge:   New(CodeBatchFailed, "batch job failed with status: expired", nil),
			want: "[BATCH_JOB_FAILED] batch job failed with status: expired",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ge.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuilderChaining(t *testing.T) {
	ge := New(CodeToolFailure, "tool failed", nil).
		WithContext("tool", "stock_info").
		WithContext("args", map[string]interface{}{"symbol": "IBM"}).
		WithAttribute("retry_count", "3").
		WithRecoverable(true)

	if ge.Context["tool"] != "stock_info" {
		t.Errorf("Context[tool] = %v", ge.Context["tool"])
	}
	if ge.Context["args"] == nil {
		t.Error("Context[args] missing")
	}
	if ge.Attributes["retry_count"] != "3" {
		t.Errorf("Attributes[retry_count] = %q", ge.Attributes["retry_count"])
	}
	if !ge.Recoverable {
		t.Error("Recoverable should be true after WithRecoverable")
	}
}

func TestRecoverableDefaultsToFalse(t *testing.T) {
	ge := New(CodeToolFailure, "network error", nil)
	if ge.Recoverable {
		t.Error("new errors must start non-recoverable")
	}
	if got := ge.RecoverableString(); got != "false" {
		t.Errorf("RecoverableString() = %q, want false", got)
	}
	if got := ge.WithRecoverable(true).RecoverableString(); got != "true" {
		t.Errorf("RecoverableString() = %q, want true", got)
	}
}

func TestAsGnosisError(t *testing.T) {
	if got := AsGnosisError(nil); got != nil {
		t.Errorf("AsGnosisError(nil) = %v, want nil", got)
	}

	original := New(CodeToolFailure, "failed", nil)
	if got := AsGnosisError(original); got != original {
		t.Error("a GnosisError must pass through unchanged")
	}

	wrapped := AsGnosisError(errors.New("generic error"))
	if wrapped.Code != CodeInternal {
		t.Errorf("foreign error wrapped with Code = %v, want %v", wrapped.Code, CodeInternal)
	}
	if !errors.Is(wrapped, wrapped.Err) {
		t.Error("wrapped foreign error must stay reachable via errors.Is")
	}
}

func TestMarshalJSON(t *testing.T) {
	ge := New(CodeToolFailure, "tool failed", errors.New("network error")).
		WithContext("tool", "stock_info").
		WithAttribute("retry_count", "1").
		WithRecoverable(true)

	data, err := json.Marshal(ge)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if result["code"] != "TOOL_FAILURE" {
		t.Errorf("code = %v, want TOOL_FAILURE", result["code"])
	}
	if result["recoverable"] != true {
		t.Error("recoverable should render true")
	}
	if result["error"] != "network error" {
		t.Errorf("error = %v, want the bare cause", result["error"])
	}
	if ctx, ok := result["context"].(map[string]interface{}); !ok || ctx["tool"] != "stock_info" {
		t.Errorf("context = %v", result["context"])
	}
}

func TestMarshalJSONOmitsEmptyParts(t *testing.T) {
	ge := &GnosisError{Code: CodeNotFound, Message: "run not found"}

	data, err := json.Marshal(ge)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{"error", "context", "attributes"} {
		if _, ok := result[key]; ok {
			t.Errorf("%s should be omitted when empty, got %v", key, result[key])
		}
	}
}

func TestHTTPStatusByCode(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeInvalidInput, http.StatusBadRequest},
		{CodeUnsupportedFile, http.StatusBadRequest},
		{CodeTimeout, http.StatusRequestTimeout},
		{CodeRateLimit, http.StatusTooManyRequests},
		{CodeBatchFailed, http.StatusInternalServerError},
		{CodeVectorStore, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code, "test", nil).StatusCode; got != tt.want {
				t.Errorf("StatusCode = %d, want %d", got, tt.want)
			}
		})
	}
}
