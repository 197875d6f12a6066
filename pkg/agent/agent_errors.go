// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"sync"

	"github.com/jllopis/gnosis/pkg/core"
	"github.com/jllopis/gnosis/pkg/errors"
	"github.com/jllopis/gnosis/pkg/telemetry"
)

// ErrorMetricsIntegration wraps telemetry.ErrorMetrics with agent-level
// helpers. A nil or disabled integration is safe to call.
type ErrorMetricsIntegration struct {
	metrics *telemetry.ErrorMetrics
	enabled bool
}

var (
	errMetrics     *ErrorMetricsIntegration
	errMetricsOnce sync.Once
)

// InitErrorMetrics initializes the global error metrics once during
// startup. If instrument creation fails the integration degrades to a
// no-op rather than failing the process.
func InitErrorMetrics() *ErrorMetricsIntegration {
	errMetricsOnce.Do(func() {
		integration := &ErrorMetricsIntegration{}
		if metrics, err := telemetry.NewErrorMetrics(); err == nil {
			integration.metrics = metrics
			integration.enabled = true
		}
		errMetrics = integration
	})
	return errMetrics
}

// GetErrorMetrics returns the global error metrics integration, or nil
// before InitErrorMetrics has run.
func GetErrorMetrics() *ErrorMetricsIntegration {
	return errMetrics
}

func (e *ErrorMetricsIntegration) ready() bool {
	return e != nil && e.enabled && e.metrics != nil
}

// Metrics exposes the underlying telemetry.ErrorMetrics for components
// that record their own gauges, such as the stock tool's breaker state.
func (e *ErrorMetricsIntegration) Metrics() *telemetry.ErrorMetrics {
	if !e.ready() {
		return nil
	}
	return e.metrics
}

// RecordError records an error metric with its code and component.
func (e *ErrorMetricsIntegration) RecordError(ctx context.Context, err error, component string) {
	if !e.ready() {
		return
	}
	e.metrics.RecordErrorMetric(ctx, err, component)
}

// RecordHealthStatus records the health status of a component.
func (e *ErrorMetricsIntegration) RecordHealthStatus(ctx context.Context, component string, status core.HealthStatus) {
	if !e.ready() {
		return
	}
	e.metrics.RecordHealthStatus(ctx, component, healthGauge(status))
}

// healthGauge maps a health status onto the gauge scale, 2 for healthy
// down to 0 for unhealthy.
func healthGauge(status core.HealthStatus) int64 {
	switch status {
	case core.HealthHealthy:
		return 2
	case core.HealthDegraded:
		return 1
	default:
		return 0
	}
}

// WrapLLMError wraps a provider error with model context.
func WrapLLMError(err error, model string) *errors.GnosisError {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeLLMError, "LLM call failed", err).
		WithContext("model", model).
		WithAttribute("llm.model", model).
		WithRecoverable(true)
}
