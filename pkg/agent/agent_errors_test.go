// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/jllopis/gnosis/pkg/core"
	"github.com/jllopis/gnosis/pkg/errors"
)

func TestWrapLLMError(t *testing.T) {
	if WrapLLMError(nil, "gpt-4o-mini") != nil {
		t.Fatal("WrapLLMError(nil) should return nil")
	}

	ke := WrapLLMError(fmt.Errorf("boom"), "gpt-4o-mini")
	if ke.Code != errors.CodeLLMError {
		t.Errorf("Code = %q, want %q", ke.Code, errors.CodeLLMError)
	}
	if !ke.Recoverable {
		t.Error("LLM errors should be recoverable")
	}
	if ke.Context["model"] != "gpt-4o-mini" {
		t.Errorf("Context[model] = %v", ke.Context["model"])
	}
	if ke.Attributes["llm.model"] != "gpt-4o-mini" {
		t.Errorf("Attributes[llm.model] = %v", ke.Attributes["llm.model"])
	}
}

func TestErrorMetricsIntegrationNilSafe(t *testing.T) {
	var em *ErrorMetricsIntegration

	// None of these may panic before InitErrorMetrics has run.
	em.RecordError(context.Background(), fmt.Errorf("x"), "agent")
	em.RecordHealthStatus(context.Background(), "agent", core.HealthHealthy)
	if em.Metrics() != nil {
		t.Error("Metrics() on nil integration should be nil")
	}
}

func TestInitErrorMetricsIdempotent(t *testing.T) {
	first := InitErrorMetrics()
	second := InitErrorMetrics()
	if first != second {
		t.Error("InitErrorMetrics should return the same integration on repeat calls")
	}
	if GetErrorMetrics() != first {
		t.Error("GetErrorMetrics should return the initialized integration")
	}
}
