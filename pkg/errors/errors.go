// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling with rich context for
// Gnosis. Errors carry a stable code, a recoverability flag and free
// form context that flows into logs, metrics and HTTP responses.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCode classifies Gnosis errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal is the catch-all for unexpected system errors.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput marks requests the caller can fix.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeUnsupportedFile marks documents whose extension is outside
	// the ingest allow-list.
	CodeUnsupportedFile ErrorCode = "UNSUPPORTED_FILE"

	// CodeToolFailure marks a failed tool execution.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeTimeout marks an operation that exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeRateLimit marks requests rejected by rate limiting.
	CodeRateLimit ErrorCode = "RATE_LIMITED"

	// CodeNotFound marks a missing resource.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeVectorStore marks vector database errors.
	CodeVectorStore ErrorCode = "VECTOR_STORE_ERROR"

	// CodeEmbedding marks failed embedding requests.
	CodeEmbedding ErrorCode = "EMBEDDING_ERROR"

	// CodeBatchFailed marks a batch embedding job that ended in a
	// terminal non-completed status.
	CodeBatchFailed ErrorCode = "BATCH_JOB_FAILED"

	// CodeLLMError marks LLM provider errors.
	CodeLLMError ErrorCode = "LLM_ERROR"
)

// GnosisError is a typed error with rich context for observability.
// It implements the error interface and unwraps to its cause.
type GnosisError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
	StatusCode  int // HTTP status for API responses
}

// New creates a GnosisError with the given code, message and cause.
// The HTTP status is derived from the code.
func New(code ErrorCode, msg string, cause error) *GnosisError {
	return &GnosisError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
		StatusCode: httpStatus(code),
	}
}

func (e *GnosisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *GnosisError) Unwrap() error {
	return e.Err
}

// RecoverableString renders the flag as "true" or "false" for metric
// and log attributes.
func (e *GnosisError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// WithContext attaches a key-value pair for logs. Returns the error
// for chaining.
func (e *GnosisError) WithContext(key string, value interface{}) *GnosisError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute attaches a string attribute for OTEL traces. Returns
// the error for chaining.
func (e *GnosisError) WithAttribute(key, value string) *GnosisError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable flags whether callers may retry or fall back.
// Returns the error for chaining.
func (e *GnosisError) WithRecoverable(recoverable bool) *GnosisError {
	e.Recoverable = recoverable
	return e
}

// MarshalJSON renders the error for structured logs: the formatted
// message, the code, the bare cause, and any context and attributes.
func (e *GnosisError) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"message":     e.Error(),
		"code":        string(e.Code),
		"recoverable": e.Recoverable,
		"status_code": e.StatusCode,
	}
	if e.Err != nil {
		out["error"] = e.Err.Error()
	}
	if len(e.Context) > 0 {
		out["context"] = e.Context
	}
	if len(e.Attributes) > 0 {
		out["attributes"] = e.Attributes
	}
	return json.Marshal(out)
}

// AsGnosisError returns err as a *GnosisError, wrapping foreign errors
// under CodeInternal. Returns nil for a nil err.
func AsGnosisError(err error) *GnosisError {
	if err == nil {
		return nil
	}
	if ge, ok := err.(*GnosisError); ok {
		return ge
	}
	return New(CodeInternal, "wrapped error", err)
}

// httpStatus maps error codes onto HTTP statuses.
func httpStatus(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput, CodeUnsupportedFile:
		return http.StatusBadRequest
	case CodeTimeout:
		return http.StatusRequestTimeout
	case CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
