package context

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Trace ties a request to its log lines, spans and response headers.
type Trace struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceKey struct{}

// WithTrace adds Trace to context.
func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// GetTrace returns Trace from context.
func GetTrace(ctx context.Context) *Trace {
	if v, ok := ctx.Value(traceKey{}).(*Trace); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// TraceFromSpan takes trace and span ids from the span active in ctx.
// Without a recording tracer the span context is invalid and both ids fall
// back to fallbackTraceID and an empty span id.
func TraceFromSpan(ctx context.Context, requestID, fallbackTraceID string) *Trace {
	t := &Trace{TraceID: fallbackTraceID, RequestID: requestID}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		t.TraceID = sc.TraceID().String()
		t.SpanID = sc.SpanID().String()
	}
	return t
}
