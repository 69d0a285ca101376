// Package session maps storefront session ids to their cart and tracker.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/cart"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/tracking"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Session is the server-side state of one storefront visitor.
type Session struct {
	ID        string
	Cart      *cart.Store
	Tracker   *tracking.Tracker
	CreatedAt time.Time
}

// Factory builds the cart and tracker of a new session.
type Factory func() (*cart.Store, *tracking.Tracker)

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Registry holds live sessions. A session expires after TTL without access.
type Registry struct {
	ttl     time.Duration
	factory Factory
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry creates a registry.
func NewRegistry(ttl time.Duration, factory Factory) *Registry {
	return &Registry{
		ttl:      ttl,
		factory:  factory,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Create starts a new session.
func (r *Registry) Create() *Session {
	c, t := r.factory()
	now := r.now()
	s := &Session{
		ID:        uuid.NewString(),
		Cart:      c,
		Tracker:   t,
		CreatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = &entry{session: s, lastSeen: now}
	return s
}

// Get returns the session and refreshes its deadline.
func (r *Registry) Get(id string) (*Session, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.expired(e, now) {
		delete(r.sessions, id)
		return nil, ErrNotFound
	}
	e.lastSeen = now
	return e.session, nil
}

// Delete ends a session.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of tracked sessions, including expired ones not yet
// swept.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) expired(e *entry, now time.Time) bool {
	return r.ttl > 0 && now.Sub(e.lastSeen) >= r.ttl
}

// Sweep removes expired sessions and returns how many were removed. Sessions
// with a checkout in progress are kept.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	for id, e := range r.sessions {
		if r.expired(e, now) && !e.session.Cart.Submitting() {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// StartSweep evicts expired sessions every interval until ctx is cancelled.
func (r *Registry) StartSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.ttl
	}
	if interval <= 0 {
		return
	}
	lg := zctx.From(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := r.Sweep(now); n > 0 {
					lg.Debug("Expired sessions evicted", zap.Int("count", n), zap.Int("live", r.Len()))
				}
			}
		}
	}()
}
