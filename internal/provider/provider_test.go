package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/circuitbreaker"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/ctxlog"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/model"
)

func errorsIsStatus(err error) bool {
	return errors.Is(err, ErrUnexpectedStatus)
}

func TestAnalysisPrompt_Build(t *testing.T) {
	gen := NewAnalysisPrompt()

	tests := []struct {
		name     string
		filter   model.Filter
		contains []string
	}{
		{name: "no filter", filter: model.Filter{}, contains: []string{"across all chains and projects", "get_yield_pools tool to fetch"}},
		{name: "chain", filter: model.Filter{Chain: "Ethereum"}, contains: []string{"on the Ethereum chain", `chain="Ethereum"`}},
		{name: "project", filter: model.Filter{Project: "lido"}, contains: []string{"for the lido project", `project="lido"`}},
		{name: "both", filter: model.Filter{Chain: "Solana", Project: "jito"}, contains: []string{"for the jito project on the Solana chain", `chain="Solana" and project="jito"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := gen.Build(context.Background(), tt.filter)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, text, s)
			}
			again, _ := gen.Build(context.Background(), tt.filter)
			assert.Equal(t, text, again, "prompt text is deterministic")
		})
	}
}

func TestGuarded_OpensAfterFailures(t *testing.T) {
	calls := 0
	upstreamErr := errors.New("upstream down")
	next := FetchFunc(func(ctx context.Context, filter model.Filter, log ctxlog.Logger) ([]model.YieldPool, error) {
		calls++
		return nil, upstreamErr
	})
	g := NewGuarded(next, circuitbreaker.New(2).WithResetDelay(time.Hour))

	for i := 0; i < 2; i++ {
		_, err := g.Fetch(context.Background(), model.Filter{}, ctxlog.Discard)
		assert.ErrorIs(t, err, upstreamErr)
	}
	assert.Equal(t, circuitbreaker.StateOpen, g.State())

	_, err := g.Fetch(context.Background(), model.Filter{}, ctxlog.Discard)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, calls, "open circuit does not reach the upstream")
}

func TestGuarded_PassesThroughSuccess(t *testing.T) {
	want := []model.YieldPool{{Chain: "Ethereum", Project: "lido", Pool: "STETH"}}
	next := FetchFunc(func(ctx context.Context, filter model.Filter, log ctxlog.Logger) ([]model.YieldPool, error) {
		assert.Equal(t, "Ethereum", filter.Chain)
		return want, nil
	})
	g := NewGuarded(next, circuitbreaker.New(1))

	got, err := g.Fetch(context.Background(), model.Filter{Chain: "Ethereum"}, ctxlog.Discard)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, circuitbreaker.StateClosed, g.State())
}

func TestGuarded_CancelledCallerDoesNotTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := FetchFunc(func(ctx context.Context, filter model.Filter, log ctxlog.Logger) ([]model.YieldPool, error) {
		return nil, ctx.Err()
	})
	g := NewGuarded(next, circuitbreaker.New(1))

	_, err := g.Fetch(ctx, model.Filter{}, ctxlog.Discard)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, circuitbreaker.StateClosed, g.State())
}
