// Package ratelimit provides per-user request rate limiting.
// It uses a fixed window counter: the first request of a user opens a window,
// later requests count against it until it elapses, then the window restarts.
// Supports both in-memory (single instance) and Redis (distributed) backends.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting backends.
type Limiter interface {
	Allow(ctx context.Context, userID string) (Decision, error)
	Policy() Policy
}

// Decision is the outcome of a single check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Policy configures a limiter.
type Policy struct {
	MaxRequests int
	Window      time.Duration
	// SweepThreshold is the tracked-user count above which stale windows
	// are evicted. Only the in-memory backend uses it.
	SweepThreshold int
}

// DefaultPolicy allows 5 requests per minute per user.
func DefaultPolicy() Policy {
	return Policy{
		MaxRequests:    5,
		Window:         time.Minute,
		SweepThreshold: 1000,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxRequests <= 0 {
		p.MaxRequests = d.MaxRequests
	}
	if p.Window <= 0 {
		p.Window = d.Window
	}
	if p.SweepThreshold <= 0 {
		p.SweepThreshold = d.SweepThreshold
	}
	return p
}

// InMemoryLimiter keeps one window per user in process memory.
// Suitable for single-instance deployments; state is lost on restart.
type InMemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	policy  Policy
	now     func() time.Time
	// lastSweep bounds full-map scans to one per window.
	lastSweep time.Time
}

type window struct {
	count int
	start time.Time
}

// Option configures an InMemoryLimiter.
type Option func(*InMemoryLimiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *InMemoryLimiter) {
		l.now = now
	}
}

func NewInMemoryLimiter(policy Policy, opts ...Option) *InMemoryLimiter {
	l := &InMemoryLimiter{
		windows: make(map[string]*window),
		policy:  policy.withDefaults(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *InMemoryLimiter) Policy() Policy {
	return l.policy
}

func (l *InMemoryLimiter) Allow(ctx context.Context, userID string) (Decision, error) {
	return l.check(userID, l.now()), nil
}

// CheckAndRecord reports whether a request from userID at now is admitted,
// recording it if so. Denied requests are not counted.
func (l *InMemoryLimiter) CheckAndRecord(userID string, now time.Time) bool {
	return l.check(userID, now).Allowed
}

func (l *InMemoryLimiter) check(userID string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	defer l.sweep(now)

	w, ok := l.windows[userID]
	if !ok || now.Sub(w.start) >= l.policy.Window {
		l.windows[userID] = &window{count: 1, start: now}
		return Decision{
			Allowed:   true,
			Remaining: l.policy.MaxRequests - 1,
			ResetAt:   now.Add(l.policy.Window),
		}
	}

	resetAt := w.start.Add(l.policy.Window)
	if w.count >= l.policy.MaxRequests {
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Remaining: l.policy.MaxRequests - w.count,
		ResetAt:   resetAt,
	}
}

// sweep drops windows that ended more than two window lengths ago once the
// map grows past the threshold, at most once per window. Caller holds mu.
func (l *InMemoryLimiter) sweep(now time.Time) {
	if len(l.windows) <= l.policy.SweepThreshold {
		return
	}
	if !l.lastSweep.IsZero() && now.Sub(l.lastSweep) < l.policy.Window {
		return
	}
	l.lastSweep = now
	stale := 2 * l.policy.Window
	for id, w := range l.windows {
		if now.Sub(w.start) > stale {
			delete(l.windows, id)
		}
	}
}

// Tracked returns the number of users with a live record.
func (l *InMemoryLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Count returns the recorded request count for userID, 0 when absent.
func (l *InMemoryLimiter) Count(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.windows[userID]; ok {
		return w.count
	}
	return 0
}
