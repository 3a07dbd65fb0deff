// Package export delivers background refresh summaries to an external webhook
// in batches.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/aggregate"
)

// Config holds configuration for webhook exporting
type Config struct {
	// Endpoint receiving batches; empty disables the exporter
	WebhookURL string

	// Sent as a bearer token when set
	APIKey string

	// Records buffered before an immediate flush
	BatchSize int

	// Period of the background flush
	Interval time.Duration

	// Per-request timeout and retry count for deliveries
	Timeout  time.Duration
	RetryMax int
}

// Record is one completed refresh
type Record struct {
	RefreshID   string            `json:"refresh_id"`
	CompletedAt time.Time         `json:"completed_at"`
	Summary     aggregate.Summary `json:"summary"`
}

// Batch is the webhook payload
type Batch struct {
	Records    []Record `json:"records"`
	ExportTime string   `json:"export_time"`
	Count      int      `json:"count"`
}

// Status reports exporter state
type Status struct {
	Enabled     bool      `json:"enabled"`
	Pending     int       `json:"pending"`
	Exported    int       `json:"exported"`
	Failures    int       `json:"failures"`
	LastExport  time.Time `json:"last_export"`
	LastError   string    `json:"last_error,omitempty"`
	FlushPeriod string    `json:"flush_period"`
	BatchSize   int       `json:"batch_size"`
	WebhookURL  string    `json:"webhook_url,omitempty"`
}

// WebhookExporter buffers refresh records and posts them as JSON batches
type WebhookExporter struct {
	config Config
	client *retryablehttp.Client
	log    *logrus.Entry

	mu         sync.Mutex
	pending    []Record
	exported   int
	failures   int
	lastExport time.Time
	lastError  string

	flushes sync.WaitGroup
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWebhookExporter creates an exporter. It does nothing until Start is called.
func NewWebhookExporter(config Config, log *logrus.Entry) *WebhookExporter {
	if config.BatchSize < 1 {
		config.BatchSize = 10
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	client := retryablehttp.NewClient()
	client.RetryMax = config.RetryMax
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 3 * time.Second
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = nil
	if config.Timeout > 0 {
		client.HTTPClient.Timeout = config.Timeout
	}

	return &WebhookExporter{
		config:  config,
		client:  client,
		log:     log.WithField("component", "export"),
		pending: make([]Record, 0, config.BatchSize),
	}
}

// Enabled reports whether a webhook is configured
func (e *WebhookExporter) Enabled() bool {
	return e != nil && e.config.WebhookURL != ""
}

// Start runs the periodic flush until Stop is called or ctx ends
func (e *WebhookExporter) Start(ctx context.Context) {
	if !e.Enabled() {
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.flushLogged(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	e.log.WithField("interval", e.config.Interval).Info("Refresh webhook exporter started")
}

// Add queues a record; a full batch is flushed right away in the background
func (e *WebhookExporter) Add(rec Record) {
	if !e.Enabled() {
		return
	}

	e.mu.Lock()
	e.pending = append(e.pending, rec)
	full := len(e.pending) >= e.config.BatchSize
	e.mu.Unlock()

	if full {
		e.flushes.Add(1)
		go func() {
			defer e.flushes.Done()
			e.flushLogged(context.Background())
		}()
	}
}

// Flush posts every pending record. On failure the records are put back.
func (e *WebhookExporter) Flush(ctx context.Context) error {
	if !e.Enabled() {
		return nil
	}

	e.mu.Lock()
	if len(e.pending) == 0 {
		e.mu.Unlock()
		return nil
	}
	records := e.pending
	e.pending = make([]Record, 0, e.config.BatchSize)
	e.mu.Unlock()

	err := e.post(ctx, records)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.pending = append(records, e.pending...)
		e.failures++
		e.lastError = err.Error()
		return err
	}
	e.exported += len(records)
	e.lastExport = time.Now()
	e.lastError = ""
	return nil
}

func (e *WebhookExporter) flushLogged(ctx context.Context) {
	if err := e.Flush(ctx); err != nil {
		e.log.WithError(err).Error("Failed to export refresh summaries")
	}
}

func (e *WebhookExporter) post(ctx context.Context, records []Record) error {
	payload, err := json.Marshal(Batch{
		Records:    records,
		ExportTime: time.Now().UTC().Format(time.RFC3339),
		Count:      len(records),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.config.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}
	e.log.WithField("count", len(records)).Debug("Exported refresh summaries")
	return nil
}

// Stop ends the periodic flush and delivers whatever is still pending
func (e *WebhookExporter) Stop(ctx context.Context) error {
	if !e.Enabled() {
		return nil
	}
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
	e.flushes.Wait()
	return e.Flush(ctx)
}

// Status returns a snapshot of the exporter state
func (e *WebhookExporter) Status() Status {
	if !e.Enabled() {
		return Status{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	return Status{
		Enabled:     true,
		Pending:     len(e.pending),
		Exported:    e.exported,
		Failures:    e.failures,
		LastExport:  e.lastExport,
		LastError:   e.lastError,
		FlushPeriod: e.config.Interval.String(),
		BatchSize:   e.config.BatchSize,
		WebhookURL:  e.config.WebhookURL,
	}
}
