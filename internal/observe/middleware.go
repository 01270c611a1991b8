package observe

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceHeader carries the trace id of the request span back to the client.
const TraceHeader = "X-Trace-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the wrapped writer so websocket upgrades can hijack it.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// route returns the matched chi pattern and the {id} parameter if the route
// has one. Outside a chi router the raw path is used.
func route(r *http.Request) (pattern, sessionID string) {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return r.URL.Path, ""
	}
	pattern = rc.RoutePattern()
	if pattern == "" {
		pattern = r.URL.Path
	}
	return pattern, rc.URLParam("id")
}

// Middleware traces, times and logs every HTTP request.
//
// The span is named after the chi route pattern once routing has finished,
// so /sessions/{id}/answers groups all sessions. Requests addressed to a
// session get a session.id span attribute and log field.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := otel.Tracer(tracerName).Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if sc := span.SpanContext(); sc.HasTraceID() {
				w.Header().Set(TraceHeader, sc.TraceID().String())
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			r = r.WithContext(ctx)
			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			pattern, sessionID := route(r)
			span.SetName(r.Method + " " + pattern)
			span.SetAttributes(
				semconv.HTTPRoute(pattern),
				semconv.HTTPResponseStatusCode(rec.status),
			)
			if sessionID != "" {
				span.SetAttributes(attribute.String("session.id", sessionID))
				ctx = WithSession(ctx, sessionID)
			}
			if m != nil {
				m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
					metric.WithAttributes(
						attribute.String("method", r.Method),
						attribute.String("path", pattern),
						attribute.Int("status", rec.status),
					),
				)
			}

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", pattern),
				slog.Int("status", rec.status),
				slog.Duration("duration", elapsed),
			}
			if id := middleware.GetReqID(ctx); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			Logger(ctx).LogAttrs(ctx, level, "request completed", attrs...)
		})
	}
}
