package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(t *testing.T, h http.Handler, remoteAddr string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_UnderLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 3, Window: time.Minute})(okHandler())

	for i := range 3 {
		rec := doRequest(t, h, "10.0.0.1:1234")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	doRequest(t, h, "10.0.0.1:1234")
	doRequest(t, h, "10.0.0.1:1234")
	rec := doRequest(t, h, "10.0.0.1:1234")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRateLimit_SeparateClients(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(t, h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(t, h, "10.0.0.1:1234").Code)

	// A different client has its own budget.
	assert.Equal(t, http.StatusOK, doRequest(t, h, "10.0.0.2:1234").Code)
}

func TestRateLimit_Headers(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	rec := doRequest(t, h, "10.0.0.1:1234")
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	h := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-Tenant")
		},
	})(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(t, h, "10.0.0.1:1", "X-Tenant", "a").Code)
	// Same tenant from a different IP still shares the budget.
	assert.Equal(t, http.StatusTooManyRequests, doRequest(t, h, "10.0.0.2:1", "X-Tenant", "a").Code)
	assert.Equal(t, http.StatusOK, doRequest(t, h, "10.0.0.1:1", "X-Tenant", "b").Code)
}

func TestRateLimiter_WindowRotation(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	start := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	_, _, allowed := rl.allow("k", start)
	require.True(t, allowed)
	_, _, allowed = rl.allow("k", start.Add(time.Second))
	require.True(t, allowed)
	_, _, allowed = rl.allow("k", start.Add(2*time.Second))
	require.False(t, allowed)

	// Two full windows later the budget is fresh.
	_, _, allowed = rl.allow("k", start.Add(2*time.Minute+time.Second))
	assert.True(t, allowed)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 10, Window: time.Minute})
	now := time.Now()

	rl.allow("stale", now.Add(-3*time.Minute))
	rl.allow("fresh", now)

	rl.cleanup(now)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.entries, "stale")
	assert.Contains(t, rl.entries, "fresh")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		header     map[string]string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "10.0.0.1:1234",
			want:       "10.0.0.1",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:1234",
			header:     map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.1:1234",
			header:     map[string]string{"X-Forwarded-For": "203.0.113.7, 198.51.100.1"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:1234",
			header:     map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
