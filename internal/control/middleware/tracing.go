// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var untracedPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

func shouldTrace(r *http.Request) bool {
	_, skip := untracedPaths[r.URL.Path]
	return !skip
}

// spanNameFormatter never includes query values; tokens may travel there.
func spanNameFormatter(operation string, r *http.Request) string {
	name := operation + " " + r.URL.Path
	if r.URL.RawQuery != "" {
		name += "?"
	}
	return name
}

// Tracing wraps handlers in otelhttp server spans.
func Tracing(service string) func(http.Handler) http.Handler {
	return otelhttp.NewMiddleware(service,
		otelhttp.WithFilter(shouldTrace),
		otelhttp.WithSpanNameFormatter(spanNameFormatter),
	)
}

// SpanFromContext returns the active span of r.
func SpanFromContext(r *http.Request) trace.Span {
	return trace.SpanFromContext(r.Context())
}

// ExtractTraceContext returns the trace and span id of r's active span.
func ExtractTraceContext(r *http.Request) (traceID, spanID string) {
	sc := SpanFromContext(r).SpanContext()
	return sc.TraceID().String(), sc.SpanID().String()
}

// AddSpanAttributes attaches attrs to r's active span.
func AddSpanAttributes(r *http.Request, attrs ...attribute.KeyValue) {
	SpanFromContext(r).SetAttributes(attrs...)
}
