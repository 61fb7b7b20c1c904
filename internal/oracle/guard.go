package oracle

import (
	"context"
	"fmt"

	"github.com/felipepmaragno/stem-explainer/internal/circuitbreaker"
)

// Guarded fails fast while the breaker is open. Blocked responses count as
// successes: the model answered, it just declined.
type Guarded struct {
	inner   Oracle
	breaker *circuitbreaker.Breaker
}

func WithCircuitBreaker(o Oracle, b *circuitbreaker.Breaker) *Guarded {
	return &Guarded{inner: o, breaker: b}
}

func (g *Guarded) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := g.breaker.Allow(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := g.inner.Generate(ctx, req)
	if err != nil {
		g.breaker.RecordFailure()
		return nil, err
	}

	g.breaker.RecordSuccess()
	return resp, nil
}

func (g *Guarded) ID() string    { return g.inner.ID() }
func (g *Guarded) Model() string { return g.inner.Model() }
