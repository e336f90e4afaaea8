package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// requestIDKey is the context key for the request ID value.
type requestIDKey struct{}

// RequestIDFromContext extracts the request ID from the context.
// It returns an empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestID returns a middleware that ensures every request has a unique
// identifier. A valid incoming X-Request-ID header is reused; otherwise a new
// UUID v4 is generated. The ID is set on the response header and stored in
// the request context.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if !isValidRequestID(id) {
				id = uuid.New().String()
			}

			w.Header().Set("X-Request-ID", id)

			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isValidRequestID checks that id is non-empty, at most 128 bytes, and
// contains only printable ASCII.
func isValidRequestID(id string) bool {
	if len(id) == 0 || len(id) > 128 {
		return false
	}
	for i := range len(id) {
		if id[i] < 0x20 || id[i] > 0x7E {
			return false
		}
	}
	return true
}
