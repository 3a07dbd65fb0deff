package provider

import (
	"context"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/circuitbreaker"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/ctxlog"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/model"
)

// Guarded puts a circuit breaker in front of another provider. It only fails
// fast; it never answers from stored data.
type Guarded struct {
	next    YieldDataProvider
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuarded wraps next with breaker
func NewGuarded(next YieldDataProvider, breaker *circuitbreaker.CircuitBreaker) *Guarded {
	return &Guarded{next: next, breaker: breaker}
}

// Fetch forwards to the wrapped provider unless the circuit is open
func (g *Guarded) Fetch(ctx context.Context, filter model.Filter, log ctxlog.Logger) ([]model.YieldPool, error) {
	if err := g.breaker.Allow(); err != nil {
		log.Error(err.Error())
		return nil, err
	}

	pools, err := g.next.Fetch(ctx, filter, log)
	if err != nil {
		// a caller hanging up says nothing about upstream health
		if ctx.Err() == nil {
			g.breaker.RecordFailure(err)
		}
		return nil, err
	}

	g.breaker.RecordSuccess()
	return pools, nil
}

// State exposes the breaker state for status reporting
func (g *Guarded) State() circuitbreaker.State {
	return g.breaker.GetState()
}
