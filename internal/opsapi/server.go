// Package opsapi exposes the operational HTTP surface for the ingest
// engine: liveness/readiness probes and a Prometheus scrape endpoint.
// It is not a public API and carries no OpenAPI documentation -
// adapted from the teacher's internal/infra/worker health/metrics
// server into a domain-agnostic shape shared by every cmd/ingest
// subcommand that runs a long-lived process (worker pool, nuclear
// scheduler).
package opsapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// statusResponse is the JSON body for the liveness/readiness endpoints.
type statusResponse struct {
	Status string `json:"status"`
}

// StatusFunc returns a point-in-time snapshot of process health, keyed
// by component name (e.g. "worker_pool", "nuclear_scheduler"). A
// non-empty value means that component is unhealthy.
type StatusFunc func(ctx context.Context) map[string]string

// SnapshotFunc returns an arbitrary JSON-able detail view, used for the
// resilience and nuclear-store status sub-routes.
type SnapshotFunc func(ctx context.Context) any

// Server serves /health, /health/ready, /metrics, and /status over
// HTTP, routed through gorilla/mux. Grounded on the teacher's
// HealthServer: same two-endpoint liveness/readiness split, same atomic
// ready flag, same 5-second graceful-shutdown window.
type Server struct {
	addr              string
	logger            *slog.Logger
	isReady           *atomic.Bool
	status            StatusFunc
	resilienceSnapshot SnapshotFunc
	nuclearSnapshot    SnapshotFunc
	server            *http.Server
}

// New creates a Server that is not yet ready to serve traffic. Call
// SetReady(true) once the components it reports on have finished
// initializing.
func New(addr string, logger *slog.Logger, status StatusFunc) *Server {
	isReady := &atomic.Bool{}
	isReady.Store(false)
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: addr, logger: logger, isReady: isReady, status: status}
}

// WithResilienceSnapshot registers the GET /status/resilience handler,
// backed by the resilience registry's per-service health view.
func (s *Server) WithResilienceSnapshot(fn SnapshotFunc) *Server {
	s.resilienceSnapshot = fn
	return s
}

// WithNuclearSnapshot registers the GET /status/nuclear handler, backed
// by the nuclear store's retry-status counts summary.
func (s *Server) WithNuclearSnapshot(fn SnapshotFunc) *Server {
	s.nuclearSnapshot = fn
	return s
}

// Start runs the HTTP server until ctx is cancelled, then shuts it
// down with a 5-second grace period.
func (s *Server) Start(ctx context.Context) error {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleLiveness)
	router.HandleFunc("/health/ready", s.handleReadiness)
	router.HandleFunc("/status", s.handleStatus)
	router.HandleFunc("/status/resilience", s.handleSnapshot(s.resilienceSnapshot))
	router.HandleFunc("/status/nuclear", s.handleSnapshot(s.nuclearSnapshot))
	router.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("ops server starting", slog.String("addr", s.addr))
		if err := s.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("ops server shutting down")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("ops server shutdown failed", slog.Any("error", err))
			return err
		}
		s.logger.Info("ops server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if err == http.ErrServerClosed {
			return err
		}
		s.logger.Error("ops server failed", slog.Any("error", err))
		return err
	}
}

// SetReady flips the readiness flag checked by /health/ready.
func (s *Server) SetReady(ready bool) {
	s.isReady.Store(ready)
	s.logger.Info("ops server readiness changed", slog.Bool("ready", ready))
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if s.isReady.Load() {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "not ready"})
}

// handleStatus reports per-component health detail beyond the plain
// ready/not-ready boolean, used by operators diagnosing a degraded run.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}
	components := s.status(r.Context())
	code := http.StatusOK
	for _, v := range components {
		if v != "" {
			code = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, code, components)
}

// handleSnapshot adapts an optional SnapshotFunc into an HTTP handler
// that reports 501 Not Implemented when the caller never registered one
// (e.g. the resilience registry is not wired into this particular
// subcommand's process).
func (s *Server) handleSnapshot(fn SnapshotFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fn == nil {
			writeJSON(w, http.StatusNotImplemented, statusResponse{Status: "not wired"})
			return
		}
		writeJSON(w, http.StatusOK, fn(r.Context()))
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("opsapi: failed to encode response", slog.Any("error", err))
	}
}
