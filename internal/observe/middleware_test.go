package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installTracer swaps the global tracer provider for one with an in-memory
// exporter for the duration of the test.
func installTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
	return exp
}

func TestMiddleware_SetsTraceHeader(t *testing.T) {
	m, _ := newTestMetrics(t)
	installTracer(t)

	var seen string
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if len(seen) != 32 {
		t.Fatalf("trace ID in handler = %q, want 32 hex chars", seen)
	}
	if got := rec.Header().Get("X-Trace-ID"); got != seen {
		t.Errorf("X-Trace-ID = %q, want %q", got, seen)
	}
}

func TestMiddleware_CreatesSpanAndRecordsDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	exp := installTracer(t)

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "HTTP GET /readyz" {
		t.Fatalf("spans = %v", spans)
	}

	rm := collect(t, reader)
	if findMetric(rm, "droidvox.http.request.duration") == nil {
		t.Error("http duration metric not recorded")
	}
}
