// Package health provides Kubernetes-style liveness and readiness probes.
//
// Each registered check runs in its own goroutine at a fixed interval and
// uses consecutive failure/success thresholds to avoid flapping.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

const (
	failureThreshold = 3
	successThreshold = 1
)

// check holds configuration and runtime state for one probe. The counters
// are only touched by the single run goroutine; healthy and lastErr are read
// from HTTP handlers and use atomics.
type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func (c *check) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(checkCtx)
	c.lastErr.Store(&err)

	if err != nil {
		c.consecutiveOK = 0
		c.consecutiveFails++
		if c.consecutiveFails >= failureThreshold {
			c.healthy.Store(false)
		}
		return
	}

	c.consecutiveFails = 0
	c.consecutiveOK++
	if c.consecutiveOK >= successThreshold {
		c.healthy.Store(true)
	}
}

func (c *check) failure() (string, bool) {
	if c.healthy.Load() {
		return "", false
	}
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error(), true
	}
	return "unhealthy", true
}

// Health manages liveness and readiness checks for a service.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates a Health instance. The service starts not ready; call
// SetReady(true) once initialization completes.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a liveness check (is the process functioning).
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn))
	h.mu.Unlock()
}

// AddReadinessCheck registers a readiness check (can the service take traffic).
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn))
	h.mu.Unlock()
}

func newCheck(name string, timeout time.Duration, fn CheckFunc) *check {
	c := &check{name: name, timeout: timeout, fn: fn}
	c.healthy.Store(true) // assume healthy until proven otherwise
	return c
}

// Start begins running all registered checks at the given interval.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := make([]*check, 0, len(h.liveness)+len(h.readiness))
	checks = append(checks, h.liveness...)
	checks = append(checks, h.readiness...)
	h.mu.Unlock()

	for _, c := range checks {
		go func(c *check) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			c.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.run(ctx)
				}
			}
		}(c)
	}
}

// Stop cancels all background check goroutines. Safe to call multiple times.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady sets the manual readiness state: true after initialization,
// false during graceful shutdown to drain traffic.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// statusResponse is the JSON body for health endpoints.
type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 when all liveness checks pass, else 503
// with per-check failure details.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := make([]*check, len(h.liveness))
	copy(checks, h.liveness)
	h.mu.RUnlock()

	writeStatus(w, collectFailures(checks))
}

// ReadyEndpoint serves /readyz: 200 only when the service is manually marked
// ready and all readiness checks pass.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := make([]*check, len(h.readiness))
	copy(checks, h.readiness)
	h.mu.RUnlock()

	failures := collectFailures(checks)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func collectFailures(checks []*check) map[string]string {
	failures := make(map[string]string)
	for _, c := range checks {
		if msg, failed := c.failure(); failed {
			failures[c.name] = msg
		}
	}
	return failures
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
