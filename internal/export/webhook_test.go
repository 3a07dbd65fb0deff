package export

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/aggregate"
)

type webhookRecorder struct {
	mu      sync.Mutex
	status  int
	batches []Batch
	auth    []string
}

func (w *webhookRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var b Batch
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			t.Errorf("decode batch: %v", err)
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		w.batches = append(w.batches, b)
		w.auth = append(w.auth, r.Header.Get("Authorization"))
		if w.status != 0 {
			rw.WriteHeader(w.status)
		}
	}
}

func (w *webhookRecorder) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.batches)
}

func newExporter(t *testing.T, url string, batch int) *WebhookExporter {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewWebhookExporter(Config{
		WebhookURL: url,
		APIKey:     "secret",
		BatchSize:  batch,
		Interval:   time.Hour,
		Timeout:    time.Second,
	}, logger.WithField("test", t.Name()))
}

func record(id string, count int) Record {
	return Record{RefreshID: id, CompletedAt: time.Unix(1700000000, 0).UTC(), Summary: aggregate.Summary{Count: count, TotalTVL: 10, WeightedAPY: 2}}
}

func TestWebhookExporter_Disabled(t *testing.T) {
	e := newExporter(t, "", 1)
	assert.False(t, e.Enabled())

	e.Start(context.Background())
	e.Add(record("a", 1))
	assert.NoError(t, e.Flush(context.Background()))
	assert.NoError(t, e.Stop(context.Background()))
	assert.Equal(t, Status{}, e.Status())

	var nilExporter *WebhookExporter
	assert.False(t, nilExporter.Enabled())
	nilExporter.Add(record("b", 1))
}

func TestWebhookExporter_FlushPostsBatch(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	e := newExporter(t, srv.URL, 10)
	e.Add(record("a", 3))
	e.Add(record("b", 4))
	require.NoError(t, e.Flush(context.Background()))

	require.Equal(t, 1, rec.count())
	b := rec.batches[0]
	assert.Equal(t, 2, b.Count)
	assert.Equal(t, "a", b.Records[0].RefreshID)
	assert.Equal(t, 4, b.Records[1].Summary.Count)
	assert.Equal(t, "Bearer secret", rec.auth[0])

	st := e.Status()
	assert.Equal(t, 0, st.Pending)
	assert.Equal(t, 2, st.Exported)
	assert.False(t, st.LastExport.IsZero())

	require.NoError(t, e.Flush(context.Background()))
	assert.Equal(t, 1, rec.count(), "nothing pending means no request")
}

func TestWebhookExporter_FullBatchFlushesImmediately(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	e := newExporter(t, srv.URL, 2)
	e.Add(record("a", 1))
	e.Add(record("b", 1))
	require.NoError(t, e.Stop(context.Background()))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, 2, rec.batches[0].Count)
}

func TestWebhookExporter_FailureKeepsRecords(t *testing.T) {
	rec := &webhookRecorder{status: http.StatusBadGateway}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	e := newExporter(t, srv.URL, 10)
	e.Add(record("a", 1))

	err := e.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	st := e.Status()
	assert.Equal(t, 1, st.Pending)
	assert.Equal(t, 1, st.Failures)
	assert.Contains(t, st.LastError, "502")
	assert.Equal(t, 1, rec.count(), "deliveries are not retried by default")

	rec.mu.Lock()
	rec.status = http.StatusOK
	rec.mu.Unlock()
	require.NoError(t, e.Flush(context.Background()))
	assert.Equal(t, 0, e.Status().Pending)
}
