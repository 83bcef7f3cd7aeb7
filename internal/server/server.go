// Package server exposes the current snapshot and analyzer queries over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yash/flightvectors/internal/analysis"
	"github.com/yash/flightvectors/internal/metrics"
	"github.com/yash/flightvectors/internal/pipeline"
	"github.com/yash/flightvectors/internal/sphere"
	"github.com/yash/flightvectors/pkg/models"
)

// Builder produces a fresh snapshot.
type Builder interface {
	Build(ctx context.Context) (*pipeline.Snapshot, error)
}

// Server holds the latest snapshot and serves queries against it.
type Server struct {
	builder Builder
	logger  *slog.Logger
	started time.Time

	snap      atomic.Pointer[pipeline.Snapshot]
	refreshMu sync.Mutex
}

// New creates a Server. builder may be nil, which disables refresh.
func New(builder Builder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{builder: builder, logger: logger, started: time.Now()}
}

// SetSnapshot swaps in snap for all subsequent requests.
func (s *Server) SetSnapshot(snap *pipeline.Snapshot) {
	s.snap.Store(snap)
	if snap != nil {
		metrics.SnapshotRecords.Set(float64(len(snap.Records)))
	}
}

// Snapshot returns the current snapshot, or nil before the first build.
func (s *Server) Snapshot() *pipeline.Snapshot {
	return s.snap.Load()
}

// Refresh builds a new snapshot and swaps it in. Concurrent calls are
// serialized.
func (s *Server) Refresh(ctx context.Context) (*pipeline.Snapshot, error) {
	if s.builder == nil {
		return nil, errors.New("refresh not configured")
	}
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	snap, err := s.builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	s.SetSnapshot(snap)
	return snap, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
		metricsMiddleware,
	)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", handleMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Get("/extremes/{query}", s.handleExtreme)
		r.Get("/nearest", s.handleNearest)
		r.Get("/records", s.handleRecords)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/sphere", handleSphere)
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.HTTPRequests.Inc()
		metrics.ActiveConnections.Inc()
		defer metrics.ActiveConnections.Dec()

		next.ServeHTTP(w, r)

		metrics.HTTPLatency.Since(start)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ---------------------------------------------------------------------------
// Health & Metrics
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.Snapshot()
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
		"snapshot":  snap != nil,
	}

	status := http.StatusOK
	if snap == nil {
		health["status"] = "starting"
		status = http.StatusServiceUnavailable
	} else {
		health["records"] = len(snap.Records)
		health["source"] = snap.Source
		health["taken_at"] = snap.TakenAt.Format(time.RFC3339)
	}
	writeJSON(w, status, health)
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Write([]byte(metrics.Default().Export()))
}

// ---------------------------------------------------------------------------
// Analyzer
// ---------------------------------------------------------------------------

// current writes 503 and returns nil when no snapshot is loaded.
func (s *Server) current(w http.ResponseWriter) *pipeline.Snapshot {
	snap := s.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot loaded")
	}
	return snap
}

// queryFailed maps analyzer errors to HTTP status codes.
func queryFailed(w http.ResponseWriter, err error) {
	metrics.QueryErrors.Inc()
	switch {
	case errors.Is(err, analysis.ErrEmptyInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, analysis.ErrUnknownQuery):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type summaryResponse struct {
	analysis.Summary
	Source   pipeline.Source                `json:"source"`
	TakenAt  time.Time                      `json:"taken_at"`
	Center   [2]float64                     `json:"center"`
	Aircraft map[string]models.AircraftInfo `json:"aircraft"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap := s.current(w)
	if snap == nil {
		return
	}
	metrics.QueryRequests.Inc()

	summary, err := analysis.Summarize(snap.Flights(), snap.Center.Lat, snap.Center.Long)
	if err != nil {
		queryFailed(w, err)
		return
	}

	aircraft := make(map[string]models.AircraftInfo, 5)
	for _, rec := range []models.FlightRecord{
		summary.Lowest, summary.Highest, summary.FastestClimber, summary.FastestDescender, summary.Nearest.Record,
	} {
		if info, ok := lookupInfo(snap, rec.ICAO24); ok {
			aircraft[rec.ICAO24] = info
		}
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		Summary:  summary,
		Source:   snap.Source,
		TakenAt:  snap.TakenAt,
		Center:   [2]float64{snap.Center.Lat, snap.Center.Long},
		Aircraft: aircraft,
	})
}

func lookupInfo(snap *pipeline.Snapshot, icao24 string) (models.AircraftInfo, bool) {
	for _, r := range snap.Records {
		if r.ICAO24 == icao24 {
			return r.AircraftInfo, true
		}
	}
	return models.AircraftInfo{}, false
}

func (s *Server) handleExtreme(w http.ResponseWriter, r *http.Request) {
	snap := s.current(w)
	if snap == nil {
		return
	}
	metrics.QueryRequests.Inc()

	q := analysis.Query(strings.ToLower(chi.URLParam(r, "query")))
	rec, err := q.Run(snap.Flights())
	if err != nil {
		queryFailed(w, err)
		return
	}

	info, _ := lookupInfo(snap, rec.ICAO24)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":    q,
		"record":   rec,
		"aircraft": info,
	})
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	snap := s.current(w)
	if snap == nil {
		return
	}

	lat, lon := snap.Center.Lat, snap.Center.Long
	qs := r.URL.Query()
	if qs.Has("lat") || qs.Has("lon") {
		var err error
		if lat, err = parseCoord(qs.Get("lat"), 90); err != nil {
			writeError(w, http.StatusBadRequest, "invalid lat: "+err.Error())
			return
		}
		if lon, err = parseCoord(qs.Get("lon"), 180); err != nil {
			writeError(w, http.StatusBadRequest, "invalid lon: "+err.Error())
			return
		}
	}
	metrics.QueryRequests.Inc()

	rec, dist, err := analysis.NearestTo(snap.Flights(), lat, lon)
	if err != nil {
		queryFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reference":   [2]float64{lat, lon},
		"record":      rec,
		"distance_km": dist,
	})
}

func parseCoord(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a number")
	}
	if v < -limit || v > limit {
		return 0, errors.New("out of range")
	}
	return v, nil
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	snap := s.current(w)
	if snap == nil {
		return
	}

	records := snap.Records
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n < len(records) {
			records = records[:n]
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(records),
		"total":    len(snap.Records),
		"source":   snap.Source,
		"taken_at": snap.TakenAt,
		"received": snap.Received,
		"dropped":  snap.Dropped,
		"records":  records,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.builder == nil {
		writeError(w, http.StatusNotImplemented, "refresh not configured")
		return
	}

	snap, err := s.Refresh(r.Context())
	if err != nil {
		s.logger.Error("snapshot refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records":  len(snap.Records),
		"received": snap.Received,
		"dropped":  snap.Dropped,
		"source":   snap.Source,
		"taken_at": snap.TakenAt,
	})
}

// ---------------------------------------------------------------------------
// Sphere
// ---------------------------------------------------------------------------

func handleSphere(w http.ResponseWriter, r *http.Request) {
	radius, err := strconv.ParseFloat(r.URL.Query().Get("radius"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "radius must be a number")
		return
	}
	props, err := sphere.Compute(radius)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, props)
}
