// Package main is the entry point for the DeFi Yields MCP HTTP server, which serves
// DefiLlama yield pools over REST, Server-Sent Events and MCP JSON-RPC.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/aggregate"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/circuitbreaker"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/config"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/export"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/metrics"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/provider"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/server"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/tracing"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/version"
)

// main is the entry point for the application
func main() {
	if err := run(); err != nil {
		logrus.Errorf("Server error: %v", err)
		os.Exit(1)
	}
	logrus.Info("Server stopped")
}

// run loads configuration and serves. Deferred cleanup finishes before main
// decides the exit code.
func run() error {
	// A missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("Failed to load .env: %v", err)
	}

	cfg := config.Load()
	setupLogging(cfg.LogFormat, cfg.LogLevel)

	if cfg.Workers > 0 {
		runtime.GOMAXPROCS(cfg.Workers)
	}

	shutdownTracing := tracing.Init(cfg.OtelEndpoint, version.ServiceName, version.Version, version.Commit)
	defer shutdownTracing()

	return serve(cfg)
}

// setupLogging configures the standard logrus logger
func setupLogging(format, level string) {
	switch format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch level {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// buildProvider creates the upstream client, guarded by a circuit breaker when
// enabled. Breaker trips and state are exported through m.
func buildProvider(cfg config.Config, m *metrics.Metrics) (*provider.DefiLlama, provider.YieldDataProvider) {
	llama := provider.NewDefiLlama(provider.DefiLlamaOptions{
		URL:      cfg.YieldsAPIURL,
		Timeout:  cfg.RequestTimeout,
		RetryMax: cfg.UpstreamRetryMax,
	})
	if !cfg.EnableCircuitBreaker {
		return llama, llama
	}

	breaker := circuitbreaker.New(cfg.CircuitFailureThreshold).
		WithResetDelay(cfg.CircuitResetDelay).
		WithSuccessThreshold(cfg.CircuitSuccessThreshold).
		WithTripCallback(func(string) { m.ObserveCircuitTrip() })
	guarded := provider.NewGuarded(llama, breaker)
	if err := m.WatchCircuitState(func() float64 { return float64(guarded.State()) }); err != nil {
		logrus.Warnf("Circuit breaker state gauge not registered: %v", err)
	}
	return llama, guarded
}

// probeUpstream checks connectivity once at boot. Failure is logged and the
// server starts anyway, since every request fetches on its own.
func probeUpstream(llama *provider.DefiLlama, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log := logrus.WithField("url", llama.URL())
	if err := llama.Probe(ctx); err != nil {
		log.Errorf("Failed to connect to DefiLlama API: %v", err)
		return
	}
	log.Info("Successfully connected to DefiLlama API")
}

// serve runs until SIGINT or SIGTERM, then shuts down gracefully
func serve(cfg config.Config) error {
	var m *metrics.Metrics
	if cfg.EnableMetrics {
		m = metrics.New()
	}

	llama, upstream := buildProvider(cfg, m)
	probeUpstream(llama, cfg.ProbeTimeout)

	// Detached refreshes outlive their request but not the process
	refreshCtx, cancelRefreshes := context.WithCancel(context.Background())
	defer cancelRefreshes()

	exporter := export.NewWebhookExporter(export.Config{
		WebhookURL: cfg.RefreshWebhookURL,
		APIKey:     cfg.RefreshWebhookAPIKey,
		BatchSize:  cfg.RefreshWebhookBatchSize,
		Interval:   cfg.RefreshWebhookInterval,
		Timeout:    cfg.RequestTimeout,
		RetryMax:   cfg.UpstreamRetryMax,
	}, logrus.NewEntry(logrus.StandardLogger()))
	exporter.Start(refreshCtx)

	srv := server.New(server.Options{
		Provider:       upstream,
		Prompts:        provider.NewAnalysisPrompt(),
		Metrics:        m,
		RefreshContext: refreshCtx,
		RefreshTimeout: cfg.RefreshTimeout,
		OnRefresh: func(id string, summary aggregate.Summary) {
			exporter.Add(export.Record{RefreshID: id, CompletedAt: time.Now().UTC(), Summary: summary})
		},
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logrus.NewEntry(logrus.StandardLogger()),
	})

	// WriteTimeout stays unset; the SSE route lifts per-response deadlines itself
	// and the other routes are bounded by the upstream timeout.
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":            cfg.Addr(),
			"version":         version.Version,
			"commit":          version.Commit,
			"workers":         cfg.Workers,
			"upstream":        cfg.YieldsAPIURL,
			"circuit_breaker": cfg.EnableCircuitBreaker,
			"metrics":         cfg.EnableMetrics,
		}).Info("Starting DeFi Yields HTTP Server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case sig := <-quit:
		logrus.Infof("Received %s, shutting down...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return err
	}
	cancelRefreshes()
	srv.WaitForRefreshes()
	if err := exporter.Stop(ctx); err != nil {
		logrus.Warnf("Pending refresh summaries were not exported: %v", err)
	}
	if status := exporter.Status(); status.Enabled {
		logrus.WithFields(logrus.Fields{
			"exported":   status.Exported,
			"failures":   status.Failures,
			"pending":    status.Pending,
			"last_error": status.LastError,
		}).Info("Refresh webhook exporter stopped")
	}
	return nil
}
