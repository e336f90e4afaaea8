// Package httpmiddleware provides the HTTP middleware chain used by the API
// server: panic recovery, CORS, rate limiting, request IDs, logger injection,
// request logging, and OpenTelemetry instrumentation.
package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Middleware wraps an http.Handler with additional behaviour.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h in order: the first middleware listed becomes
// the outermost wrapper.
func Wrap(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// InjectLogger returns a middleware that installs lg as the base context
// logger for every request, retrievable downstream with zctx.From.
func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := zctx.Base(r.Context(), lg)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
