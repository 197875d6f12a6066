// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// ConfigureSlog installs the process-wide slog logger. Every record
// logged with a context that carries a span gets trace_id and span_id
// attributes, so log lines can be joined with traces downstream.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(level)}

	var inner slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		inner = slog.NewJSONHandler(output, opts)
	} else {
		inner = slog.NewTextHandler(output, opts)
	}

	logger := slog.New(spanHandler{inner})
	slog.SetDefault(logger)
	return logger
}

// slogLevel maps a config string to a slog level. Unknown values fall
// back to info rather than failing startup.
func slogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// spanHandler decorates records with the ids of the span found in the
// log call's context.
type spanHandler struct {
	next slog.Handler
}

func (h spanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h spanHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() && !hasTraceID(record) {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, record)
}

func (h spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return spanHandler{h.next.WithAttrs(attrs)}
}

func (h spanHandler) WithGroup(name string) slog.Handler {
	return spanHandler{h.next.WithGroup(name)}
}

// hasTraceID reports whether the record already carries a trace_id, so
// an explicitly logged id wins over the ambient span.
func hasTraceID(record slog.Record) bool {
	found := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "trace_id" {
			found = true
			return false
		}
		return true
	})
	return found
}
