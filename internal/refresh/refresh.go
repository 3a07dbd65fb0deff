// Package refresh runs detached fetches whose lifetime is independent of the
// request that started them.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/aggregate"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/ctxlog"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/metrics"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/model"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/provider"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/tracing"
)

// Runner launches background refreshes against a provider. Runs are bound to the
// root context handed to NewRunner, never to a request context.
type Runner struct {
	root     context.Context
	provider provider.YieldDataProvider
	log      *logrus.Entry
	metrics  *metrics.Metrics
	timeout  time.Duration
	observer Observer

	wg sync.WaitGroup
}

// Observer is told about every successful run
type Observer func(id string, summary aggregate.Summary)

// NewRunner creates a runner. A zero timeout leaves runs bounded only by root.
func NewRunner(root context.Context, p provider.YieldDataProvider, log *logrus.Entry, m *metrics.Metrics, timeout time.Duration) *Runner {
	return &Runner{
		root:     root,
		provider: p,
		log:      log,
		metrics:  m,
		timeout:  timeout,
	}
}

// WithObserver registers fn for successful runs and returns the runner
func (r *Runner) WithObserver(fn Observer) *Runner {
	r.observer = fn
	return r
}

// Trigger starts one unfiltered refresh and returns immediately with its id
func (r *Runner) Trigger() string {
	id := uuid.NewString()
	r.wg.Add(1)
	go r.run(id)
	return id
}

// Wait blocks until every triggered run has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(id string) {
	defer r.wg.Done()

	log := r.log.WithField("refresh_id", id)
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", rec).Error("Background refresh panicked")
			r.metrics.ObserveRefresh("error", nil)
		}
	}()

	ctx := r.root
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	ctx, span := tracing.Tracer().Start(ctx, "refresh.run")
	defer span.End()

	start := time.Now()
	clog := ctxlog.New(log, ctxlog.PrefixRefresh)
	pools, err := r.provider.Fetch(ctx, model.Filter{}, clog)
	if err != nil {
		tracing.RecordError(ctx, err)
		clog.Error(fmt.Sprintf("Background data refresh failed: %v", err))
		r.metrics.ObserveRefresh("error", nil)
		return
	}

	summary := aggregate.Summarize(pools)
	log.WithFields(logrus.Fields{
		"pool_count":   summary.Count,
		"total_tvl":    summary.TotalTVL,
		"weighted_apy": summary.WeightedAPY,
		"median_apy":   summary.MedianAPY,
		"duration_ms":  time.Since(start).Milliseconds(),
	}).Info("Background data refresh completed")
	r.metrics.ObserveRefresh("success", &summary)
	if r.observer != nil {
		r.observer(id, summary)
	}
}
