// Package metrics holds the Prometheus collectors for the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/aggregate"
)

// Metrics bundles the collectors registered on a private registry, so several
// servers (tests included) can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rpcCalls        *prometheus.CounterVec
	streamEvents    *prometheus.CounterVec
	refreshRuns     *prometheus.CounterVec
	refreshPools    prometheus.Gauge
	refreshTVL      prometheus.Gauge
	refreshAPY      prometheus.Gauge
	circuitTrips    prometheus.Counter
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yields_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yields_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		rpcCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yields_mcp_calls_total",
				Help: "MCP JSON-RPC calls by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		streamEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yields_stream_events_total",
				Help: "SSE events emitted by status",
			},
			[]string{"status"},
		),
		refreshRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yields_refresh_runs_total",
				Help: "Background refresh runs by outcome",
			},
			[]string{"outcome"},
		),
		refreshPools: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yields_refresh_pool_count",
			Help: "Pools returned by the last successful background refresh",
		}),
		refreshTVL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yields_refresh_total_tvl_usd",
			Help: "Total TVL of the last successful background refresh",
		}),
		refreshAPY: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yields_refresh_weighted_apy",
			Help: "TVL-weighted APY of the last successful background refresh",
		}),
		circuitTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yields_circuit_breaker_trips_total",
			Help: "Times the upstream circuit breaker has opened",
		}),
	}

	m.registry.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.rpcCalls,
		m.streamEvents,
		m.refreshRuns,
		m.refreshPools,
		m.refreshTVL,
		m.refreshAPY,
		m.circuitTrips,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestCounter.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveRPC records one dispatched MCP call; outcome is "ok" or "error"
func (m *Metrics) ObserveRPC(method, outcome string) {
	if m == nil {
		return
	}
	m.rpcCalls.WithLabelValues(method, outcome).Inc()
}

// ObserveStreamEvent records one emitted SSE event
func (m *Metrics) ObserveStreamEvent(status string) {
	if m == nil {
		return
	}
	m.streamEvents.WithLabelValues(status).Inc()
}

// ObserveRefresh records a finished background refresh. The summary gauges are
// only updated on success.
func (m *Metrics) ObserveRefresh(outcome string, summary *aggregate.Summary) {
	if m == nil {
		return
	}
	m.refreshRuns.WithLabelValues(outcome).Inc()
	if summary != nil {
		m.refreshPools.Set(float64(summary.Count))
		m.refreshTVL.Set(summary.TotalTVL)
		m.refreshAPY.Set(summary.WeightedAPY)
	}
}

// ObserveCircuitTrip records one circuit breaker trip
func (m *Metrics) ObserveCircuitTrip() {
	if m == nil {
		return
	}
	m.circuitTrips.Inc()
}

// WatchCircuitState exports state as the circuit breaker state gauge, sampled
// on every scrape. It may be registered once per Metrics.
func (m *Metrics) WatchCircuitState(state func() float64) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "yields_circuit_breaker_state",
		Help: "Upstream circuit breaker state (0 closed, 1 open, 2 half-open)",
	}, state))
}
