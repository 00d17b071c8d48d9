package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	return recorder
}

func TestTracing_SpanNames(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/search", "GET /search"},
		{http.MethodPost, "/votes", "POST /votes"},
		{http.MethodGet, "/reputation/abc123", "GET /reputation/abc123"},
		{http.MethodDelete, "/votes", "DELETE /votes"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			recorder := recordSpans(t)
			handler := Tracing("nearlist-api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("recorded %d spans, want 1", len(spans))
			}
			if got := spans[0].Name(); got != tt.want {
				t.Errorf("span name = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTracing_IDsVisibleToHandler(t *testing.T) {
	recorder := recordSpans(t)

	var traceID, spanID string
	handler := Tracing("nearlist-api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = GetTraceID(r)
		spanID = GetSpanID(r)
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/search?origin=Paris&radius_km=5", nil))

	if traceID == "" || spanID == "" {
		t.Fatalf("handler saw traceID=%q spanID=%q, want both non-empty", traceID, spanID)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	sc := spans[0].SpanContext()
	if sc.TraceID().String() != traceID {
		t.Errorf("handler trace ID %q does not match recorded span %q", traceID, sc.TraceID())
	}
	if sc.SpanID().String() != spanID {
		t.Errorf("handler span ID %q does not match recorded span %q", spanID, sc.SpanID())
	}
}

func TestTraceIDs_WithoutActiveSpan(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	if got := GetTraceID(req); got != "" {
		t.Errorf("GetTraceID = %q without a span, want empty", got)
	}
	if got := GetSpanID(req); got != "" {
		t.Errorf("GetSpanID = %q without a span, want empty", got)
	}
}
