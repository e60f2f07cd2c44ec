// Package telemetry defines the structured logging, metrics, and tracing
// interfaces used throughout the pipeline. Components never log to stdout or
// capture stack traces directly; they call through Logger/Tracer/Metrics so
// hosts can route diagnostics to whatever sink they operate (see Design
// Notes: "structured diagnostics: correlation id, middleware name, last-yield
// timestamp; no language-specific stack capture required").
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// Logger emits structured, leveled log messages. Keyvals follow the
	// alternating key/value convention used throughout this module
	// ("component", "tool_call_id", id, ...).
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters, timers, and gauges. Tag pairs follow the same
	// alternating convention as Logger's keyvals.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, d time.Duration, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer starts spans for correlating work across middleware boundaries.
	Tracer interface {
		Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
		Span(ctx context.Context) Span
	}

	// Span is a single unit of traced work.
	Span interface {
		End(opts ...trace.SpanEndOption)
		AddEvent(name string, keyvals ...any)
		SetStatus(code codes.Code, description string)
		RecordError(err error, opts ...trace.EventOption)
	}
)
