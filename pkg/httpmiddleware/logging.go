package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// statusWriter captures the response status code and body size.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// LogRequests returns a middleware that logs one line per completed request:
// method, matched route pattern, status, response size, and duration. The
// active trace ID is attached when a span is recording.
func LogRequests() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			route := r.Pattern
			if route == "" {
				route = r.URL.Path
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", sw.status),
				zap.Int("bytes", sw.bytes),
				zap.Duration("duration", time.Since(start)),
			}
			if id := RequestIDFromContext(r.Context()); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
				fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
			}

			zctx.From(r.Context()).Info("Request", fields...)
		})
	}
}
