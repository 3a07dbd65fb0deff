// Package server wires the HTTP surface of the gateway: REST handlers, the SSE
// pool stream, the MCP JSON-RPC endpoint and the detached refresh trigger.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/mcp"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/metrics"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/provider"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/refresh"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/stream"
)

// Options configures a Server
type Options struct {
	// Provider supplies pool data for every transport
	Provider provider.YieldDataProvider

	// Prompts builds analysis text for /analyze and prompts/get
	Prompts provider.PromptGenerator

	// Metrics is nil when the /metrics endpoint is disabled
	Metrics *metrics.Metrics

	// RefreshContext bounds detached refreshes; cancel it on shutdown
	RefreshContext context.Context

	// RefreshTimeout caps a single detached refresh
	RefreshTimeout time.Duration

	// OnRefresh, when set, receives the summary of each successful refresh
	OnRefresh refresh.Observer

	// AllowedOrigins feeds the CORS middleware
	AllowedOrigins []string

	// Logger is the base entry; components add their own tag
	Logger *logrus.Entry
}

// Server holds the collaborators behind the HTTP routes. Apart from the start
// time it carries no mutable state.
type Server struct {
	provider   provider.YieldDataProvider
	prompts    provider.PromptGenerator
	metrics    *metrics.Metrics
	dispatcher *mcp.Dispatcher
	emitter    *stream.Emitter
	refresher  *refresh.Runner
	origins    []string

	log       *logrus.Entry
	startedAt time.Time
	handler   http.Handler
}

// New builds a server and its router. The uptime clock starts here.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	root := opts.RefreshContext
	if root == nil {
		root = context.Background()
	}

	mcpLog := log.WithField("component", "mcp")
	s := &Server{
		provider: opts.Provider,
		prompts:  opts.Prompts,
		metrics:  opts.Metrics,
		dispatcher: mcp.NewDispatcher(mcpLog, opts.Metrics,
			[]mcp.Tool{mcp.YieldPoolsTool(opts.Provider, mcpLog)},
			[]mcp.Prompt{mcp.AnalyzeYieldsPrompt(opts.Prompts)},
		),
		emitter:   stream.NewEmitter(opts.Provider, log.WithField("component", "stream"), opts.Metrics),
		refresher: refresh.NewRunner(root, opts.Provider, log.WithField("component", "refresh"), opts.Metrics, opts.RefreshTimeout).
			WithObserver(opts.OnRefresh),
		origins:   opts.AllowedOrigins,
		log:       log.WithField("component", "server"),
		startedAt: time.Now(),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// WaitForRefreshes blocks until every detached refresh has returned
func (s *Server) WaitForRefreshes() {
	s.refresher.Wait()
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.metricsMiddleware)

	r.HandleFunc("/", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleMCP).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/pools", s.handlePoolsQuery).Methods(http.MethodGet)
	r.HandleFunc("/pools", s.handlePoolsBody).Methods(http.MethodPost)
	r.HandleFunc("/pools/stream", s.handlePoolsStream).Methods(http.MethodGet)
	r.HandleFunc("/analyze", s.handleAnalyzeQuery).Methods(http.MethodGet)
	r.HandleFunc("/analyze", s.handleAnalyzeBody).Methods(http.MethodPost)
	r.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	var h http.Handler = r
	h = s.recoveryMiddleware(h)
	h = s.loggingMiddleware(h)
	h = requestIDMiddleware(h)
	h = corsMiddleware(s.origins)(h)
	return h
}
