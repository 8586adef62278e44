// Package tracer wraps OpenTelemetry spans around statement execution.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is the subset of an OpenTelemetry span quickdao writes to.
type Span interface {
	SetAttributes(attrs ...attribute.KeyValue)
	RecordError(err error)
	SetStatus(code codes.Code, description string)
	End()
}

// NoopTracer is the default tracer: the context is returned unchanged.
type NoopTracer struct{}

// StartSpan returns ctx and a NoopSpan.
func (n *NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, &NoopSpan{}
}

// NoopSpan records nothing.
type NoopSpan struct{}

// SetAttributes does nothing.
func (n *NoopSpan) SetAttributes(_ ...attribute.KeyValue) {}

// RecordError does nothing.
func (n *NoopSpan) RecordError(_ error) {}

// SetStatus does nothing.
func (n *NoopSpan) SetStatus(_ codes.Code, _ string) {}

// End does nothing.
func (n *NoopSpan) End() {}

// OtelTracer adapts a trace.Tracer.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer wraps tracer, which must not be nil.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

// StartSpan starts a client span.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	return ctx, &OtelSpan{span: span}
}

// OtelSpan adapts a trace.Span.
type OtelSpan struct {
	span trace.Span
}

// SetAttributes sets attributes on the span.
func (s *OtelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// RecordError records err as a span event.
func (s *OtelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

// SetStatus sets the span status.
func (s *OtelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// End ends the span.
func (s *OtelSpan) End() {
	s.span.End()
}

// SpanName is the span name of a repository operation, e.g. "quickdao.list".
func SpanName(operation string) string {
	return "quickdao." + operation
}

// StatementInfo describes one executed statement.
// Attribute names follow the OpenTelemetry database conventions:
// https://opentelemetry.io/docs/specs/semconv/database/
type StatementInfo struct {
	// Database is the dialect name (postgres, mysql, sqlite).
	Database string
	// Operation is the repository operation (insert, list, count, ...).
	Operation string
	// Table is the entity table.
	Table string
	SQL   string
	// Params is the number of bound placeholders.
	Params   int
	Duration time.Duration
	// Rows is rows affected for writes and rows read for list.
	Rows int64
	Err  error
}

// Record writes info onto span and sets its status.
func Record(span Span, info *StatementInfo) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", info.Database),
		attribute.String("db.statement", info.SQL),
		attribute.String("db.operation", Verb(info.SQL)),
		attribute.String("quickdao.operation", info.Operation),
		attribute.Int("quickdao.params", info.Params),
		attribute.Float64("db.duration_ms", float64(info.Duration.Microseconds())/1000.0),
	}
	if info.Table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", info.Table))
	}
	if info.Rows > 0 {
		attrs = append(attrs, attribute.Int64("db.rows", info.Rows))
	}
	span.SetAttributes(attrs...)

	if info.Err != nil {
		span.RecordError(info.Err)
		span.SetStatus(codes.Error, info.Err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// Verb returns the leading SQL keyword: SELECT, INSERT, UPDATE, DELETE or UNKNOWN.
func Verb(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, verb) {
			return verb
		}
	}
	return "UNKNOWN"
}
