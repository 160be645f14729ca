// Package http exposes the query API plus health, readiness, and metrics
// endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/climate-trends-analytics/internal/correlate"
	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
	"github.com/couchcryptid/climate-trends-analytics/internal/query"
)

// QueryEngine evaluates filtered reads against the current snapshot.
type QueryEngine interface {
	Query(f query.Filter) (*query.Result, error)
	Summary(f query.Filter) (*query.Summary, error)
	TopThemes(f query.Filter, limit int) ([]query.ThemeCount, error)
	TimeSeries(f query.Filter) ([]query.TimePoint, error)
	RegionActivity(f query.Filter) ([]query.RegionActivity, error)
	Gaps(f query.Filter) ([]domain.CoverageGap, error)
	Diagnostics() (*query.DiagnosticsReport, error)
	CheckReadiness() error
}

// RefreshTrigger schedules a manual dataset rebuild.
type RefreshTrigger interface {
	TryRefresh() bool
}

// Server exposes the /v1 query API along with /healthz, /readyz, and
// /metrics.
type Server struct {
	httpServer *http.Server
	engine     QueryEngine
	refresher  RefreshTrigger
	logger     *slog.Logger
}

// NewServer creates the API server.
func NewServer(addr string, engine QueryEngine, refresher RefreshTrigger, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine:    engine,
		refresher: refresher,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/metrics", s.handleMetrics)
	mux.HandleFunc("GET /v1/correlation", s.handleCorrelation)
	mux.HandleFunc("GET /v1/summary", s.handleSummary)
	mux.HandleFunc("GET /v1/themes", s.handleThemes)
	mux.HandleFunc("GET /v1/timeseries", s.handleTimeSeries)
	mux.HandleFunc("GET /v1/regions", s.handleRegions)
	mux.HandleFunc("GET /v1/gaps", s.handleGaps)
	mux.HandleFunc("GET /v1/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if err := s.engine.CheckReadiness(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.engine.Query(f)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// correlationResponse is the /v1/correlation body: the stats without the
// joined rows they were computed from.
type correlationResponse struct {
	SnapshotID   string           `json:"snapshot_id"`
	BuiltAt      time.Time        `json:"built_at"`
	Correlations []correlate.Stat `json:"correlations"`
	ScoreFormula string           `json:"score_formula"`
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.engine.Query(f)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, correlationResponse{
		SnapshotID:   res.SnapshotID,
		BuiltAt:      res.BuiltAt,
		Correlations: res.Correlations,
		ScoreFormula: res.ScoreFormula,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sum, err := s.engine.Summary(f)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit: want a positive integer, got %q", v))
			return
		}
	}
	themes, err := s.engine.TopThemes(f, limit)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	if themes == nil {
		themes = []query.ThemeCount{}
	}
	writeJSON(w, http.StatusOK, themes)
}

func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	series, err := s.engine.TimeSeries(f)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	if series == nil {
		series = []query.TimePoint{}
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	activity, err := s.engine.RegionActivity(f)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	if activity == nil {
		activity = []query.RegionActivity{}
	}
	writeJSON(w, http.StatusOK, activity)
}

func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	gaps, err := s.engine.Gaps(f)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	if gaps == nil {
		gaps = []domain.CoverageGap{}
	}
	writeJSON(w, http.StatusOK, gaps)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Diagnostics()
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if !s.refresher.TryRefresh() {
		writeError(w, http.StatusTooManyRequests, errors.New("refresh rate limit exceeded"))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// writeQueryError maps engine errors to status codes: not-ready is 503,
// anything else is a 500 worth logging.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, query.ErrNotReady) {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.logger.Error("query failed", "error", err)
	writeError(w, http.StatusInternalServerError, err)
}

// parseFilter reads the common filter query parameters. theme repeats and
// accepts comma lists; timestamps accept the same layouts as dataset
// timestamps, dates included.
func parseFilter(r *http.Request) (query.Filter, error) {
	q := r.URL.Query()
	f := query.Filter{
		Region:    q.Get("region"),
		Indicator: q.Get("indicator"),
	}
	for _, v := range q["theme"] {
		for _, theme := range strings.Split(v, ",") {
			if theme = strings.TrimSpace(theme); theme != "" {
				f.Themes = append(f.Themes, theme)
			}
		}
	}
	if v := q.Get("from"); v != "" {
		t, err := domain.ParseTimestamp(v)
		if err != nil {
			return query.Filter{}, fmt.Errorf("from: %w", err)
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := domain.ParseTimestamp(v)
		if err != nil {
			return query.Filter{}, fmt.Errorf("to: %w", err)
		}
		f.To = t
	}
	if v := q.Get("include_unknown"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return query.Filter{}, fmt.Errorf("include_unknown: want a boolean, got %q", v)
		}
		f.IncludeUnknown = b
	}
	return f, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
