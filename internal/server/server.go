// Package server exposes the monitor's latest snapshot over HTTP.
//
// The server is read-mostly: snapshots are published by the poller and
// served here without locking, so status queries never block a cycle.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "github.com/lopesmcc/plotman/internal/errors"
	"github.com/lopesmcc/plotman/pkg/archive"
	"github.com/lopesmcc/plotman/pkg/history"
)

// SnapshotSource provides the latest snapshot and on-demand refresh.
// *monitor.Poller satisfies this.
type SnapshotSource interface {
	Snapshot() *archive.Snapshot
	ForceRefresh() bool
	EgressCorrection() float64
}

// HistorySource lists recently completed transfers. *history.Store
// satisfies this.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]history.CompletedTransfer, error)
}

// VersionInfo is served at /version.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Server is the status HTTP server.
type Server struct {
	host    string
	port    int
	source  SnapshotSource
	ledger  HistorySource
	version VersionInfo

	router chi.Router
	http   *http.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithSnapshotSource wires the poller into the snapshot endpoints.
func WithSnapshotSource(src SnapshotSource) Option {
	return func(s *Server) { s.source = src }
}

// WithHistory enables the /v1/history endpoint.
func WithHistory(ledger HistorySource) Option {
	return func(s *Server) { s.ledger = ledger }
}

// WithVersion sets the payload served at /version.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

// New creates a server bound to host:port. Port 0 selects an ephemeral
// port at listen time.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host:    host,
		port:    port,
		version: VersionInfo{Version: "dev"},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Start serves until ctx is cancelled, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) Start(ctx context.Context, readTimeout, writeTimeout, idleTimeout, shutdownTimeout time.Duration) error {
	s.http = &http.Server{
		Addr:         net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port)),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteHTTPError(w, http.StatusNotFound, apperrors.CodeNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteHTTPError(w, http.StatusMethodNotAllowed, apperrors.CodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Get("/v1/snapshot", s.handleSnapshot)
	r.Get("/v1/jobs", s.handleJobs)
	r.Post("/v1/refresh", s.handleRefresh)

	// History is optional; register only when a ledger is wired.
	if s.ledger != nil {
		r.Get("/v1/history", s.handleHistory)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, s.version)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, req *http.Request) {
	snap := s.currentSnapshot()
	if snap == nil {
		apperrors.WriteHTTPError(w, http.StatusServiceUnavailable, apperrors.CodeSnapshotPending, "no snapshot captured yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleJobs(w http.ResponseWriter, req *http.Request) {
	snap := s.currentSnapshot()
	if snap == nil {
		apperrors.WriteHTTPError(w, http.StatusServiceUnavailable, apperrors.CodeSnapshotPending, "no snapshot captured yet")
		return
	}
	// Always serve an array, even when no jobs are in flight.
	jobs := snap.Ingress
	if jobs == nil {
		jobs = []*archive.IngressJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleRefresh(w http.ResponseWriter, req *http.Request) {
	if s.source == nil {
		apperrors.WriteHTTPError(w, http.StatusServiceUnavailable, apperrors.CodeSnapshotPending, "monitor is not running")
		return
	}
	if !s.source.ForceRefresh() {
		apperrors.WriteHTTPError(w, http.StatusTooManyRequests, apperrors.CodeRefreshThrottled, "refresh already pending or throttled")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleHistory(w http.ResponseWriter, req *http.Request) {
	limit := 50
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit <= 0 {
			apperrors.WriteHTTPError(w, http.StatusBadRequest, apperrors.CodeInternal, "invalid limit")
			return
		}
	}

	rows, err := s.ledger.Recent(req.Context(), limit)
	if err != nil {
		apperrors.WriteHTTPError(w, http.StatusInternalServerError, apperrors.CodeInternal, "failed to read history")
		return
	}
	if rows == nil {
		rows = []history.CompletedTransfer{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) currentSnapshot() *archive.Snapshot {
	if s.source == nil {
		return nil
	}
	return s.source.Snapshot()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
