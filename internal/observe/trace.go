package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the droidvox tracer.
const tracerName = "github.com/MrWong99/droidvox"

// Tracer returns the package-level [trace.Tracer]. It uses the globally
// registered [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span and returns the updated context and span. The
// caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// TraceID returns the trace ID of the active span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// StartTurn starts the root span of one conversational turn. turnID is
// attached both as a span attribute and, through [Logger], to log lines.
func StartTurn(ctx context.Context, turnID string) (context.Context, trace.Span) {
	ctx = context.WithValue(ctx, turnIDKey{}, turnID)
	return StartSpan(ctx, "turn", trace.WithAttributes(attribute.String("turn.id", turnID)))
}

type turnIDKey struct{}

// TurnID returns the turn ID stored by [StartTurn], or "".
func TurnID(ctx context.Context) string {
	id, _ := ctx.Value(turnIDKey{}).(string)
	return id
}

// Logger returns an [slog.Logger] enriched with turn_id, trace_id and
// span_id from ctx. When no turn or span is present, the returned logger is
// the default slog logger without extra attributes.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := TurnID(ctx); id != "" {
		l = l.With(slog.String("turn_id", id))
	}
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
