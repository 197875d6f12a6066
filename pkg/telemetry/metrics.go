// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/gnosis/pkg/errors"
)

// ErrorMetrics publishes error, recovery, health and circuit breaker
// measurements. All methods are safe on a nil receiver, so callers can
// hold an optional handle without guarding every call. The underlying
// OTEL instruments are goroutine-safe.
type ErrorMetrics struct {
	errorsTotal  metric.Int64Counter
	recoveries   metric.Int64Counter
	healthStatus metric.Int64Gauge
	breakerState metric.Int64Gauge
}

// NewErrorMetrics creates the instruments on the global meter provider.
func NewErrorMetrics() (*ErrorMetrics, error) {
	meter := otel.Meter("gnosis/errors")

	em := &ErrorMetrics{}
	var err error

	em.errorsTotal, err = meter.Int64Counter(
		"gnosis.errors.total",
		metric.WithDescription("Total errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	em.recoveries, err = meter.Int64Counter(
		"gnosis.errors.recovered",
		metric.WithDescription("Successful error recoveries by code"),
	)
	if err != nil {
		return nil, err
	}

	em.healthStatus, err = meter.Int64Gauge(
		"gnosis.health.status",
		metric.WithDescription("Component health status (0=unhealthy, 1=degraded, 2=healthy)"),
	)
	if err != nil {
		return nil, err
	}

	em.breakerState, err = meter.Int64Gauge(
		"gnosis.circuitbreaker.state",
		metric.WithDescription("Circuit breaker state per component (0=open, 1=half-open, 2=closed)"),
	)
	if err != nil {
		return nil, err
	}

	return em, nil
}

// RecordErrorMetric counts one error under its code and the component
// that produced it. Errors outside the GnosisError family count under
// code UNKNOWN.
func (em *ErrorMetrics) RecordErrorMetric(ctx context.Context, err error, component string) {
	if em == nil || err == nil {
		return
	}

	code, recoverable := "UNKNOWN", "unknown"
	if ge, ok := err.(*errors.GnosisError); ok {
		code = string(ge.Code)
		recoverable = ge.RecoverableString()
	}
	em.errorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", code),
		attribute.String("component", component),
		attribute.String("recoverable", recoverable),
	))
}

// RecordRecovery counts one successfully handled error: a retry that
// eventually succeeded or a fallback that substituted a result.
func (em *ErrorMetrics) RecordRecovery(ctx context.Context, errorCode errors.ErrorCode) {
	if em == nil {
		return
	}
	em.recoveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", string(errorCode)),
	))
}

// RecordHealthStatus publishes a component's health as a gauge value
// (0=unhealthy, 1=degraded, 2=healthy).
func (em *ErrorMetrics) RecordHealthStatus(ctx context.Context, component string, status int64) {
	if em == nil {
		return
	}
	em.healthStatus.Record(ctx, status, metric.WithAttributes(
		attribute.String("component", component),
	))
}

// RecordCircuitBreakerState publishes a breaker's state as a gauge
// value (0=open, 1=half-open, 2=closed).
func (em *ErrorMetrics) RecordCircuitBreakerState(ctx context.Context, component string, state int64) {
	if em == nil {
		return
	}
	em.breakerState.Record(ctx, state, metric.WithAttributes(
		attribute.String("component", component),
	))
}
