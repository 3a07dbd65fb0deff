package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/ctxlog"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/model"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/tracing"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/validation"
)

// ErrUnexpectedStatus is wrapped by errors for non-200 upstream responses.
var ErrUnexpectedStatus = errors.New("yields API error")

// DefiLlamaOptions configures the DefiLlama client
type DefiLlamaOptions struct {
	// URL of the pools endpoint
	URL string

	// Timeout for a single upstream request
	Timeout time.Duration

	// RetryMax is the number of transport retries; zero sends each request once
	RetryMax int
}

// DefiLlama implements YieldDataProvider against the yields.llama.fi pools API
type DefiLlama struct {
	url    string
	client *retryablehttp.Client
}

// NewDefiLlama creates a new DefiLlama API client
func NewDefiLlama(opts DefiLlamaOptions) *DefiLlama {
	return &DefiLlama{
		url:    opts.URL,
		client: newRetryClient(opts.Timeout, opts.RetryMax),
	}
}

// newRetryClient creates an HTTP client with optional retry logic. Non-2xx
// responses are passed through so the caller can report the status.
func newRetryClient(timeout time.Duration, retryMax int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.Logger = nil
	if timeout > 0 {
		c.HTTPClient.Timeout = timeout
	}
	return c
}

// llamaPool mirrors one row of the upstream response. Numeric fields are
// nullable upstream.
type llamaPool struct {
	Chain       string         `json:"chain"`
	Project     string         `json:"project"`
	Symbol      string         `json:"symbol"`
	TVLUsd      *float64       `json:"tvlUsd"`
	APY         *float64       `json:"apy"`
	APYMean30d  *float64       `json:"apyMean30d"`
	Predictions map[string]any `json:"predictions"`
}

func (p llamaPool) toModel() model.YieldPool {
	predictions := p.Predictions
	if predictions == nil {
		predictions = map[string]any{}
	}
	return model.YieldPool{
		Chain:       p.Chain,
		Pool:        p.Symbol,
		Project:     p.Project,
		TVLUsd:      valueOrZero(p.TVLUsd),
		APY:         valueOrZero(p.APY),
		APYMean30d:  valueOrZero(p.APYMean30d),
		Predictions: predictions,
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Fetch retrieves all pools from the upstream and applies the filter locally.
func (c *DefiLlama) Fetch(ctx context.Context, filter model.Filter, log ctxlog.Logger) ([]model.YieldPool, error) {
	ctx, span := tracing.Tracer().Start(ctx, "provider.fetch", trace.WithAttributes(
		attribute.String("pool.chain", filter.Chain),
		attribute.String("pool.project", filter.Project),
	))
	defer span.End()

	log.Info(fmt.Sprintf("Fetching yield pools from %s", c.url))

	rows, err := c.fetchRows(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		log.Error(fmt.Sprintf("Failed to fetch yield pools: %v", err))
		return nil, err
	}

	pools := make([]model.YieldPool, 0, len(rows))
	for _, row := range rows {
		pools = append(pools, row.toModel())
	}
	filtered := validation.Apply(pools, filter)

	span.SetAttributes(attribute.Int("pool.count", len(filtered)))
	log.Info(fmt.Sprintf("Fetched %d pools, %d match the filter", len(pools), len(filtered)))
	return filtered, nil
}

// Probe checks that the upstream answers with 200. Used once at startup.
func (c *DefiLlama) Probe(ctx context.Context) error {
	resp, err := c.get(ctx)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// URL returns the upstream endpoint
func (c *DefiLlama) URL() string {
	return c.url
}

func (c *DefiLlama) fetchRows(ctx context.Context) ([]llamaPool, error) {
	resp, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var response struct {
		Status string      `json:"status"`
		Data   []llamaPool `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding yields response: %w", err)
	}
	return response.Data, nil
}

// get issues the upstream GET and returns the response only when it is a 200.
func (c *DefiLlama) get(ctx context.Context) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("error fetching yield pools: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrUnexpectedStatus, resp.StatusCode, string(body))
	}
	return resp, nil
}
