package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/ctxlog"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/model"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/stream"
	"github.com/wyntrades-ai/defi-yields-mcp/internal/version"
)

// maxBodyBytes caps POST bodies on every route
const maxBodyBytes = 1 << 20

// InfoResponse is the static service description served at GET /
type InfoResponse struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Endpoints   map[string]string `json:"endpoints"`
}

// HealthResponse is served at GET /health
type HealthResponse struct {
	Status  string  `json:"status"`
	Version string  `json:"version"`
	Uptime  float64 `json:"uptime"`
}

// AnalysisResponse wraps generated analysis text
type AnalysisResponse struct {
	Prompt string `json:"prompt"`
}

// RefreshResponse acknowledges a refresh trigger
type RefreshResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every REST failure
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// filterRequest is the POST body of /pools and /analyze
type filterRequest struct {
	Chain   *string `json:"chain"`
	Project *string `json:"project"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		Name:        version.HTTPName,
		Version:     version.Version,
		Description: "HTTP API wrapper for DeFi Yields MCP server",
		Endpoints: map[string]string{
			"health":       "/health",
			"pools":        "/pools",
			"pools_stream": "/pools/stream",
			"analyze":      "/analyze",
			"refresh":      "/refresh",
			"metrics":      "/metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Uptime:  s.uptime().Seconds(),
	})
}

// uptime reads the monotonic clock so it never goes backwards
func (s *Server) uptime() time.Duration {
	return time.Since(s.startedAt)
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.log.WithError(err).Warn("Failed to read MCP request body")
		body = nil
	}
	writeJSON(w, http.StatusOK, s.dispatcher.HandleRaw(r.Context(), body))
}

func (s *Server) handlePoolsQuery(w http.ResponseWriter, r *http.Request) {
	s.servePools(w, r, filterFromQuery(r))
}

func (s *Server) handlePoolsBody(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromBody(w, r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	s.servePools(w, r, filter)
}

func (s *Server) servePools(w http.ResponseWriter, r *http.Request, filter model.Filter) {
	pools, err := s.provider.Fetch(r.Context(), filter, ctxlog.New(s.log, ctxlog.PrefixMCP))
	if err != nil {
		s.log.WithError(err).Error("Error fetching yield pools")
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pools == nil {
		pools = []model.YieldPool{}
	}
	writeJSON(w, http.StatusOK, pools)
}

func (s *Server) handleAnalyzeQuery(w http.ResponseWriter, r *http.Request) {
	s.serveAnalysis(w, r, filterFromQuery(r))
}

func (s *Server) handleAnalyzeBody(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromBody(w, r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	s.serveAnalysis(w, r, filter)
}

func (s *Server) serveAnalysis(w http.ResponseWriter, r *http.Request, filter model.Filter) {
	text, err := s.prompts.Build(r.Context(), filter)
	if err != nil {
		s.log.WithError(err).Error("Error generating analysis")
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, AnalysisResponse{Prompt: text})
}

func (s *Server) handlePoolsStream(w http.ResponseWriter, r *http.Request) {
	if err := s.emitter.Run(r.Context(), filterFromQuery(r), stream.NewSSEWriter(w)); err != nil {
		s.log.WithError(err).WithField("request_id", RequestID(r.Context())).Debug("Pool stream ended early")
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id := s.refresher.Trigger()
	s.log.WithField("refresh_id", id).Info("Background refresh triggered")
	writeJSON(w, http.StatusOK, RefreshResponse{
		Status:  "refresh_started",
		Message: "Background refresh initiated",
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		http.Error(w, "Metrics disabled", http.StatusServiceUnavailable)
		return
	}
	s.metrics.Handler().ServeHTTP(w, r)
}

func filterFromQuery(r *http.Request) model.Filter {
	q := r.URL.Query()
	return model.NewFilter(q.Get("chain"), q.Get("project"))
}

// filterFromBody decodes an optional JSON object; an empty body means no filter
func filterFromBody(w http.ResponseWriter, r *http.Request) (model.Filter, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return model.Filter{}, fmt.Errorf("invalid request body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return model.Filter{}, nil
	}

	var req filterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return model.Filter{}, fmt.Errorf("invalid request body: field %q must be a string", typeErr.Field)
		}
		return model.Filter{}, fmt.Errorf("invalid request body: %w", err)
	}
	return model.NewFilter(deref(req.Chain), deref(req.Project)), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// writeJSON is the single encoding path for every JSON route, so equal values
// always produce equal bytes
func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		payload, _ = json.Marshal(ErrorResponse{Detail: fmt.Sprintf("error encoding response: %v", err)})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
