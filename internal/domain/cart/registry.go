package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketbay/storefront/internal/domain/coupon"
)

// Registry owns one cart engine per active session. Carts are created empty,
// touched on every access, and evicted after sitting idle for the configured
// TTL. Nothing is persisted: an evicted cart is gone.
type Registry struct {
	finder coupon.Finder
	ttl    time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	engine   *Engine
	lastSeen time.Time
}

// NewRegistry creates a Registry whose carts resolve coupons through finder
// and expire after ttl of inactivity.
func NewRegistry(finder coupon.Finder, ttl time.Duration) *Registry {
	return &Registry{
		finder:   finder,
		ttl:      ttl,
		sessions: make(map[string]*session),
	}
}

// Create allocates a new empty cart and returns its session ID.
func (r *Registry) Create() (string, *Engine) {
	id := uuid.New().String()
	e := New(r.finder)

	r.mu.Lock()
	r.sessions[id] = &session{engine: e, lastSeen: time.Now()}
	r.mu.Unlock()

	return id, e
}

// Get returns the cart for the given session ID and refreshes its idle timer.
func (r *Registry) Get(id string) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastSeen = time.Now()
	return s.engine, true
}

// Evict removes the cart for the given session ID. Evicting an unknown
// session is a no-op.
func (r *Registry) Evict(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartSweeper launches a background goroutine that evicts idle sessions
// every interval. It stops when ctx is cancelled.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.sweep(now)
			}
		}
	}()
}

// sweep removes sessions idle for longer than the TTL.
func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if now.Sub(s.lastSeen) >= r.ttl {
			delete(r.sessions, id)
		}
	}
}
