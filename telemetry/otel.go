package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "goa.design/streampipe"

type (
	// SlogLogger adapts a standard library *slog.Logger to Logger.
	SlogLogger struct {
		logger *slog.Logger
	}

	// OtelMetrics delegates to the global OTEL MeterProvider. Counters and
	// gauges are created lazily and cached by name.
	OtelMetrics struct {
		meter    metric.Meter
		counters map[string]metric.Float64Counter
		gauges   map[string]metric.Float64Gauge
	}

	// OtelTracer delegates to the global OTEL TracerProvider.
	OtelTracer struct {
		tracer trace.Tracer
	}

	otelSpan struct {
		span trace.Span
	}
)

// NewSlogLogger constructs a Logger backed by logger. A nil logger uses
// slog.Default().
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	l.logger.DebugContext(ctx, msg, keyvals...)
}

func (l *SlogLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	l.logger.InfoContext(ctx, msg, keyvals...)
}

func (l *SlogLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	l.logger.WarnContext(ctx, msg, keyvals...)
}

func (l *SlogLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	l.logger.ErrorContext(ctx, msg, keyvals...)
}

// NewOtelMetrics constructs a Metrics recorder using the global
// MeterProvider. Configure the provider (otel.SetMeterProvider) before
// invoking pipeline methods.
func NewOtelMetrics() Metrics {
	return &OtelMetrics{
		meter:    otel.Meter(instrumentationName),
		counters: map[string]metric.Float64Counter{},
		gauges:   map[string]metric.Float64Gauge{},
	}
}

func (m *OtelMetrics) counter(name string) metric.Float64Counter {
	if c, ok := m.counters[name]; ok {
		return c
	}
	c, _ := m.meter.Float64Counter(name)
	m.counters[name] = c
	return c
}

func (m *OtelMetrics) gauge(name string) metric.Float64Gauge {
	if g, ok := m.gauges[name]; ok {
		return g
	}
	g, _ := m.meter.Float64Gauge(name)
	m.gauges[name] = g
	return g
}

func tagAttrs(tags []string) []any {
	out := make([]any, 0, len(tags))
	for _, t := range tags {
		out = append(out, t)
	}
	return out
}

// IncCounter increments a named counter. tags are informational key/value
// pairs and are ignored by the underlying OTEL instrument beyond logging
// intent; callers that need attribute-keyed counters should pre-bind a
// dedicated instrument instead.
func (m *OtelMetrics) IncCounter(name string, value float64, tags ...string) {
	m.counter(name).Add(context.Background(), value)
	_ = tagAttrs(tags)
}

// RecordTimer records a duration as a gauge in seconds.
func (m *OtelMetrics) RecordTimer(name string, d time.Duration, tags ...string) {
	m.gauge(name).Record(context.Background(), d.Seconds())
	_ = tagAttrs(tags)
}

// RecordGauge records an instantaneous value.
func (m *OtelMetrics) RecordGauge(name string, value float64, tags ...string) {
	m.gauge(name).Record(context.Background(), value)
	_ = tagAttrs(tags)
}

// NewOtelTracer constructs a Tracer using the global TracerProvider.
func NewOtelTracer() Tracer {
	return &OtelTracer{tracer: otel.Tracer(instrumentationName)}
}

func (t *OtelTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, &otelSpan{span: span}
}

func (t *OtelTracer) Span(ctx context.Context) Span {
	return &otelSpan{span: trace.SpanFromContext(ctx)}
}

func (s *otelSpan) End(opts ...trace.SpanEndOption) { s.span.End(opts...) }

func (s *otelSpan) AddEvent(name string, keyvals ...any) {
	s.span.AddEvent(name)
	_ = keyvals
}

func (s *otelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s *otelSpan) RecordError(err error, opts ...trace.EventOption) {
	s.span.RecordError(err, opts...)
}
