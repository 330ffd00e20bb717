package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// responseProxy records the status code a handler writes while delegating
// everything else to the wrapped writer.
type responseProxy struct {
	http.ResponseWriter
	status int
}

func (p *responseProxy) WriteHeader(code int) {
	p.status = code
	p.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer so [http.ResponseController] can
// reach Hijack and Flush; WebSocket upgrades depend on this.
func (p *responseProxy) Unwrap() http.ResponseWriter {
	return p.ResponseWriter
}

// Middleware wraps an [http.Handler] with request observability: it continues
// any W3C trace context found on the incoming request (or starts a fresh
// trace), echoes the trace ID back as X-Correlation-ID, records the request
// duration to [Metrics.HTTPRequestDuration], and logs each completed request
// with its status code.
//
// For the WebSocket endpoint the span covers the entire channel lifetime,
// since the handler does not return until the peer disconnects.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "HTTP "+r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			cid := CorrelationID(ctx)
			if cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			proxy := &responseProxy{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(proxy, r.WithContext(ctx))

			elapsed := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", r.URL.Path),
				),
			)
			span.SetAttributes(semconv.HTTPResponseStatusCode(proxy.status))

			slog.LogAttrs(ctx, slog.LevelInfo, "request completed",
				slog.String("trace_id", cid),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", proxy.status),
				slog.Duration("duration", elapsed),
			)
		})
	}
}
