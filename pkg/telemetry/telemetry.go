// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc flushes and stops the telemetry pipelines.
type ShutdownFunc func(context.Context) error

// Config selects the exporter backend.
type Config struct {
	Exporter     string // "stdout" (default) or "otlp"
	OTLPEndpoint string
	OTLPInsecure bool
}

// Init wires the OpenTelemetry SDK with stdout exporters. Handy for
// local runs; production setups use InitWithConfig with "otlp".
func Init(serviceName, version string) (ShutdownFunc, error) {
	return InitWithConfig(serviceName, version, Config{Exporter: "stdout"})
}

// InitWithConfig builds the exporter pair named by cfg, installs trace
// and meter providers as the process globals and registers the W3C
// propagators. The returned func must be called on shutdown so batched
// spans and metrics are flushed.
func InitWithConfig(serviceName, version string, cfg Config) (ShutdownFunc, error) {
	spanExp, metricExp, err := newExporters(cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(spanExp, trace.WithBatchTimeout(time.Second)),
		trace.WithResource(res),
	)
	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExp, metric.WithInterval(time.Minute))),
		metric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

// newExporters builds the span and metric exporters for the configured
// backend.
func newExporters(cfg Config) (trace.SpanExporter, metric.Exporter, error) {
	switch cfg.Exporter {
	case "", "stdout":
		spanExp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: stdout trace exporter: %w", err)
		}
		metricExp, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: stdout metric exporter: %w", err)
		}
		return spanExp, metricExp, nil

	case "otlp":
		if cfg.OTLPEndpoint == "" {
			return nil, nil, errors.New("otlp endpoint is required")
		}
		traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
			metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		}
		spanExp, err := otlptracegrpc.New(context.Background(), traceOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: otlp trace exporter: %w", err)
		}
		metricExp, err := otlpmetricgrpc.New(context.Background(), metricOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: otlp metric exporter: %w", err)
		}
		return spanExp, metricExp, nil

	default:
		return nil, nil, fmt.Errorf("unknown telemetry exporter: %s", cfg.Exporter)
	}
}
