package log

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanEventRecorder receives log entries as trace span events.
type SpanEventRecorder interface {
	TraceID() string
	SpanID() string
	RecordEvent(name string, keysAndValues ...any)
	// RecordError records an event and marks the span as failed.
	RecordError(name string, keysAndValues ...any)
}

var _ Logger = SpanLogger{}

// SpanLogger writes every entry to a wrapped Logger tagged with the trace
// and span IDs, and records it on the span as well.
type SpanLogger struct {
	lg  Logger
	ser SpanEventRecorder
}

// NewSpanLogger wraps lg so that its entries are also recorded by ser.
func NewSpanLogger(lg Logger, ser SpanEventRecorder) Logger {
	return SpanLogger{lg: lg.AddCallerSkip(1), ser: ser}
}

func (sl SpanLogger) Debug(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.eventKV(LevelDebug, keysAndValues)...)
	sl.lg.Debug(msg, sl.traceKV(keysAndValues)...)
}

func (sl SpanLogger) Info(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.eventKV(LevelInfo, keysAndValues)...)
	sl.lg.Info(msg, sl.traceKV(keysAndValues)...)
}

func (sl SpanLogger) Warn(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.eventKV(LevelWarn, keysAndValues)...)
	sl.lg.Warn(msg, sl.traceKV(keysAndValues)...)
}

func (sl SpanLogger) Error(msg string, keysAndValues ...any) {
	sl.ser.RecordError(msg, sl.eventKV(LevelError, keysAndValues)...)
	sl.lg.Error(msg, sl.traceKV(keysAndValues)...)
}

func (sl SpanLogger) Fatal(msg string, keysAndValues ...any) {
	sl.ser.RecordError(msg, sl.eventKV(LevelFatal, keysAndValues)...)
	sl.lg.Fatal(msg, sl.traceKV(keysAndValues)...)
}

func (sl SpanLogger) WithKV(key string, value any) Logger {
	return SpanLogger{lg: sl.lg.WithKV(key, value), ser: sl.ser}
}

func (sl SpanLogger) GetAllKV() []any { return sl.lg.GetAllKV() }

func (sl SpanLogger) WithName(name string) Logger {
	return SpanLogger{lg: sl.lg.WithName(name), ser: sl.ser}
}

func (sl SpanLogger) Name() string { return sl.lg.Name() }

func (sl SpanLogger) AddCallerSkip(skip int) Logger {
	return SpanLogger{lg: sl.lg.AddCallerSkip(skip), ser: sl.ser}
}

func (sl SpanLogger) traceKV(keysAndValues []any) []any {
	kv := make([]any, 0, len(keysAndValues)+4)
	kv = append(kv, "traceId", sl.ser.TraceID(), "spanId", sl.ser.SpanID())
	return append(kv, keysAndValues...)
}

// eventKV carries the level, component and persistent pairs onto the span,
// since span events do not inherit logger context.
func (sl SpanLogger) eventKV(level Level, keysAndValues []any) []any {
	persistent := sl.lg.GetAllKV()
	kv := make([]any, 0, 4+len(persistent)+len(keysAndValues))
	kv = append(kv, "level", string(level), "component", sl.lg.Name())
	kv = append(kv, persistent...)
	return append(kv, keysAndValues...)
}

var _ SpanEventRecorder = (*OtelSpanEventRecorder)(nil)

// OtelSpanEventRecorder records events on an OpenTelemetry span.
type OtelSpanEventRecorder struct {
	span trace.Span
}

func NewOtelSpanEventRecorder(span trace.Span) *OtelSpanEventRecorder {
	return &OtelSpanEventRecorder{span: span}
}

func (r *OtelSpanEventRecorder) TraceID() string { return r.span.SpanContext().TraceID().String() }
func (r *OtelSpanEventRecorder) SpanID() string  { return r.span.SpanContext().SpanID().String() }

func (r *OtelSpanEventRecorder) RecordEvent(name string, keysAndValues ...any) {
	r.span.AddEvent(name, trace.WithAttributes(toAttributes(keysAndValues)...))
}

func (r *OtelSpanEventRecorder) RecordError(name string, keysAndValues ...any) {
	r.span.AddEvent(name, trace.WithAttributes(toAttributes(keysAndValues)...))
	r.span.SetStatus(codes.Error, name)
}

// toAttributes converts key/value pairs to span attributes. A dangling key
// gets the value "MISSING"; a non-string key ends conversion and the rest is
// kept as a single string attribute.
func toAttributes(keysAndValues []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			attrs = append(attrs, attribute.String("invalidKeysAndValues", fmt.Sprint(keysAndValues[i:])))
			break
		}
		if i+1 >= len(keysAndValues) {
			attrs = append(attrs, attribute.String(key, "MISSING"))
			break
		}
		attrs = append(attrs, toAttribute(key, keysAndValues[i+1]))
	}
	return attrs
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case int32:
		return attribute.Int64(key, int64(v))
	case uint32:
		return attribute.Int64(key, int64(v))
	case float64:
		return attribute.Float64(key, v)
	case string:
		return attribute.String(key, v)
	case error:
		return attribute.String(key, v.Error())
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
