// Package server exposes run progress, health and metrics over HTTP while a
// scrape is running.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maltedev/listing-scraper/internal/runner"
)

// StatusProvider returns the current run progress.
type StatusProvider interface {
	Snapshot() runner.ProgressSnapshot
}

type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	cfg    Config
	status StatusProvider
	router chi.Router
	logger *slog.Logger
}

func New(cfg Config, status StatusProvider, registry *prometheus.Registry, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		status: status,
		logger: logger.With("component", "status_server"),
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/status", s.progress)
	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", s.cfg.Addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down status server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	snap := s.status.Snapshot()

	health := map[string]interface{}{
		"status": "ok",
		"state":  snap.State,
	}
	status := http.StatusOK
	if snap.State == runner.StateFailed {
		health["status"] = "error"
		health["message"] = snap.Error
		status = http.StatusServiceUnavailable
	}

	s.respondJSON(w, status, health)
}

func (s *Server) progress(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.status.Snapshot())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
