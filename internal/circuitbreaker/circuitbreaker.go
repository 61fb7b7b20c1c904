// Package circuitbreaker stops calling the oracle after repeated transport
// failures so callers fail fast instead of queueing on a dead dependency.
//
// States:
//   - Closed: calls pass through, consecutive failures are counted
//   - Open: calls are rejected until the cool-down elapses
//   - Half-Open: probe calls pass; enough successes close the breaker,
//     any failure reopens it
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrOpen = errors.New("circuit breaker open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type Config struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // half-open successes before closing
	Timeout          time.Duration // open duration before probing
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          30 * time.Second,
	}
}

type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	config    Config
	now       func() time.Time

	onChange func(State)
}

type Option func(*Breaker)

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// OnStateChange registers a hook called, outside the lock, on every transition.
func OnStateChange(fn func(State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

func New(cfg Config, opts ...Option) *Breaker {
	b := &Breaker{
		state:  StateClosed,
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow returns ErrOpen while the breaker is open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	changed := false
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.Timeout {
		b.state = StateHalfOpen
		b.successes = 0
		changed = true
	}
	state := b.state
	b.mu.Unlock()

	if changed {
		b.notify(state)
	}
	if state == StateOpen {
		return ErrOpen
	}
	return nil
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	changed := false
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
			changed = true
		}
	}
	state := b.state
	b.mu.Unlock()

	if changed {
		b.notify(state)
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	changed := false
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
			changed = true
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.now()
		b.successes = 0
		changed = true
	}
	state := b.state
	b.mu.Unlock()

	if changed {
		b.notify(state)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) notify(s State) {
	if b.onChange != nil {
		b.onChange(s)
	}
}
