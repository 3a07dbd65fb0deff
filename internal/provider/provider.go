// Package provider supplies yield pool data and analysis prompts to the gateway's
// transports. The transports depend only on the interfaces declared here.
package provider

import (
	"context"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/ctxlog"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/model"
)

// YieldDataProvider fetches pools matching a filter. Every call is a fresh fetch;
// diagnostics go to the supplied logger.
type YieldDataProvider interface {
	Fetch(ctx context.Context, filter model.Filter, log ctxlog.Logger) ([]model.YieldPool, error)
}

// PromptGenerator builds the analysis prompt text for a filter.
type PromptGenerator interface {
	Build(ctx context.Context, filter model.Filter) (string, error)
}

// FetchFunc adapts a plain function to YieldDataProvider.
type FetchFunc func(ctx context.Context, filter model.Filter, log ctxlog.Logger) ([]model.YieldPool, error)

// Fetch calls f.
func (f FetchFunc) Fetch(ctx context.Context, filter model.Filter, log ctxlog.Logger) ([]model.YieldPool, error) {
	return f(ctx, filter, log)
}
