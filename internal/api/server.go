// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the read-only admin HTTP API: release state, rendering
// errors, release documents, liveness/readiness and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/contentrelease/internal/api/middleware"
	"github.com/ManuGH/contentrelease/internal/health"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Config selects the listen address and optional middleware.
type Config struct {
	ListenAddr        string
	RequestsPerMinute int
	TracingService    string
	AccessLog         bool
}

// Server is the admin HTTP server.
type Server struct {
	cfg    Config
	deps   Deps
	router chi.Router
	logger zerolog.Logger
}

func New(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	s := &Server{cfg: cfg, deps: deps, logger: logger}
	s.router = s.routes()
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	middleware.ApplyStack(r, middleware.StackConfig{
		TracingService:    s.cfg.TracingService,
		EnableLogging:     s.cfg.AccessLog,
		RequestsPerMinute: s.cfg.RequestsPerMinute,
	})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1/releases/{releaseID}", func(r chi.Router) {
		r.Get("/", s.handleRelease)
		r.Get("/errors", s.handleErrors)
		r.Get("/documents", s.handleDocuments)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("admin API listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down admin API")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown admin API: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
