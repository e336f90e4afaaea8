package httpmiddleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrument returns a middleware that wraps the handler with otelhttp
// tracing and records a per-route request counter.
func Instrument(service string, tp trace.TracerProvider, mp metric.MeterProvider) Middleware {
	meter := mp.Meter(service)
	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Number of HTTP requests received"),
	)

	return func(next http.Handler) http.Handler {
		counted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			// The mux sets r.Pattern during routing, so read it afterwards.
			if err == nil {
				route := r.Pattern
				if route == "" {
					route = "unmatched"
				}
				requests.Add(r.Context(), 1, metric.WithAttributes(
					attribute.String("http.route", route),
					attribute.String("http.method", r.Method),
				))
			}
		})

		return otelhttp.NewHandler(counted, service,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
		)
	}
}
