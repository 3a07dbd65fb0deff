package stream

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/ctxlog"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/metrics"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/model"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/provider"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/tracing"
)

// Sink accepts events in order. Send blocks until the transport has taken the
// event; an error means the consumer is gone.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event) error

// Send calls f.
func (f SinkFunc) Send(e Event) error { return f(e) }

// Emitter runs one fetch-then-emit cycle per call.
type Emitter struct {
	provider provider.YieldDataProvider
	log      *logrus.Entry
	metrics  *metrics.Metrics
}

// NewEmitter creates an emitter over p
func NewEmitter(p provider.YieldDataProvider, log *logrus.Entry, m *metrics.Metrics) *Emitter {
	return &Emitter{provider: p, log: log, metrics: m}
}

// Run emits fetching, then either one data event per pool followed by completed,
// or a single error event. It returns a non-nil error only when the sink rejected
// an event; the fetch failure itself is reported in-band.
func (e *Emitter) Run(ctx context.Context, filter model.Filter, sink Sink) error {
	ctx, span := tracing.Tracer().Start(ctx, "stream.pools", trace.WithAttributes(
		attribute.String("pool.chain", filter.Chain),
		attribute.String("pool.project", filter.Project),
	))
	defer span.End()

	if err := e.send(sink, Fetching()); err != nil {
		return err
	}

	pools, err := e.fetch(ctx, filter)
	if err != nil {
		tracing.RecordError(ctx, err)
		e.log.WithError(err).Error("Stream fetch failed")
		return e.send(sink, Failed(err))
	}

	total := len(pools)
	for i, pool := range pools {
		if err := e.send(sink, Data(i, total, pool)); err != nil {
			return err
		}
	}

	span.SetAttributes(attribute.Int("pool.count", total))
	return e.send(sink, Completed(total))
}

// fetch turns a provider panic into an ordinary fetch error so the stream still
// ends with exactly one terminal event.
func (e *Emitter) fetch(ctx context.Context, filter model.Filter) (pools []model.YieldPool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.WithField("panic", rec).Error("Stream fetch panicked")
			err = fmt.Errorf("%v", rec)
		}
	}()
	return e.provider.Fetch(ctx, filter, ctxlog.New(e.log, ctxlog.PrefixMCP))
}

func (e *Emitter) send(sink Sink, ev Event) error {
	if err := sink.Send(ev); err != nil {
		e.log.WithError(err).WithField("status", ev.Status).Debug("Stream consumer went away")
		return fmt.Errorf("stream aborted at %s event: %w", ev.Status, err)
	}
	e.metrics.ObserveStreamEvent(string(ev.Status))
	return nil
}
