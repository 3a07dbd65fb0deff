package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/aggregate"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/ctxlog"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/metrics"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/model"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/provider"
)

func newRunner(root context.Context, p provider.YieldDataProvider, timeout time.Duration) (*Runner, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewRunner(root, p, logger.WithField("component", "refresh"), metrics.New(), timeout), hook
}

func messages(hook *test.Hook) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		out = append(out, e.Message)
	}
	return out
}

func TestRunner_Success(t *testing.T) {
	var got model.Filter
	p := provider.FetchFunc(func(ctx context.Context, filter model.Filter, log ctxlog.Logger) ([]model.YieldPool, error) {
		got = filter
		log.Info("fetching")
		return []model.YieldPool{
			{Chain: "Ethereum", Pool: "A", Project: "x", TVLUsd: 100, APY: 2},
			{Chain: "Ethereum", Pool: "B", Project: "y", TVLUsd: 300, APY: 6},
		}, nil
	})
	r, hook := newRunner(context.Background(), p, time.Second)
	var observedID string
	var observed aggregate.Summary
	r.WithObserver(func(id string, s aggregate.Summary) {
		observedID, observed = id, s
	})

	id := r.Trigger()
	r.Wait()

	assert.NotEmpty(t, id)
	assert.True(t, got.IsEmpty(), "refresh fetches without a filter")
	assert.Contains(t, messages(hook), "Background refresh: fetching")

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "Background data refresh completed", last.Message)
	assert.Equal(t, 2, last.Data["pool_count"])
	assert.Equal(t, 400.0, last.Data["total_tvl"])
	assert.InDelta(t, 5.0, last.Data["weighted_apy"], 1e-9)
	assert.Equal(t, id, last.Data["refresh_id"])
	assert.Equal(t, id, observedID)
	assert.Equal(t, 2, observed.Count)
}

func TestRunner_FailureIsLoggedOnly(t *testing.T) {
	p := provider.FetchFunc(func(ctx context.Context, filter model.Filter, log ctxlog.Logger) ([]model.YieldPool, error) {
		return nil, errors.New("upstream down")
	})
	r, hook := newRunner(context.Background(), p, time.Second)
	r.WithObserver(func(string, aggregate.Summary) { t.Error("observer called for a failed run") })

	r.Trigger()
	r.Wait()

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.ErrorLevel, last.Level)
	assert.Equal(t, "Background refresh: Background data refresh failed: upstream down", last.Message)
}

func TestRunner_OutlivesCaller(t *testing.T) {
	release := make(chan struct{})
	done := make(chan error, 1)
	p := provider.FetchFunc(func(ctx context.Context, filter model.Filter, log ctxlog.Logger) ([]model.YieldPool, error) {
		<-release
		done <- ctx.Err()
		return []model.YieldPool{}, nil
	})
	r, _ := newRunner(context.Background(), p, time.Minute)

	reqCtx, cancel := context.WithCancel(context.Background())
	func(ctx context.Context) { r.Trigger() }(reqCtx)
	cancel()

	close(release)
	r.Wait()
	assert.NoError(t, <-done, "cancelling the caller does not cancel the refresh")
}

func TestRunner_TimeoutBoundsRun(t *testing.T) {
	p := provider.FetchFunc(func(ctx context.Context, filter model.Filter, log ctxlog.Logger) ([]model.YieldPool, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	r, hook := newRunner(context.Background(), p, 20*time.Millisecond)

	r.Trigger()
	r.Wait()

	assert.Contains(t, hook.LastEntry().Message, context.DeadlineExceeded.Error())
}

func TestRunner_RecoversPanic(t *testing.T) {
	p := provider.FetchFunc(func(ctx context.Context, filter model.Filter, log ctxlog.Logger) ([]model.YieldPool, error) {
		panic("kaboom")
	})
	r, hook := newRunner(context.Background(), p, time.Second)

	r.Trigger()
	r.Wait()

	assert.Equal(t, "Background refresh panicked", hook.LastEntry().Message)
}
