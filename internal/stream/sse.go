package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrStreamClosed is returned by Send once a terminal event has been written.
var ErrStreamClosed = errors.New("event stream already terminated")

// SSEWriter frames events as `data: <json>\n\n` records on an HTTP response.
type SSEWriter struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	closed bool
}

// NewSSEWriter sets the event-stream headers and lifts the server write deadline
// so the stream lives as long as the fetch takes.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.WriteHeader(http.StatusOK)
	return &SSEWriter{w: w, rc: rc}
}

// Send writes and flushes one record. Nothing is written after completed or
// error.
func (s *SSEWriter) Send(ev Event) error {
	if s.closed {
		return ErrStreamClosed
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("error encoding event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.closed = ev.IsTerminal()
	if err := s.rc.Flush(); err != nil && err != http.ErrNotSupported {
		return err
	}
	return nil
}
