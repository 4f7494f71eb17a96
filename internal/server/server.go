// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

// Package server is the read-only admin surface: health, readiness,
// current status, run history, and Prometheus metrics. It is
// unauthenticated; binding it to a local or private address is the
// operator's job.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/tutela/internal/borg"
	"github.com/tomtom215/tutela/internal/config"
	"github.com/tomtom215/tutela/internal/journal"
)

// readyProbeTTL bounds how often readiness actually probes the
// repository; probes within the window reuse the last result.
const readyProbeTTL = 15 * time.Second

// History is the journal surface the server reads. *journal.Journal
// implements it; nil means the journal is disabled.
type History interface {
	Recent(n int) ([]*journal.RunRecord, error)
	Latest() (*journal.RunRecord, error)
}

// Server serves the admin endpoints.
type Server struct {
	cfg     config.AdminConfig
	volumes config.VolumesConfig
	repo    borg.Client
	history History

	mu         sync.Mutex
	readyErr   error
	readyUntil time.Time
}

// New builds a server. history may be nil when the journal is disabled.
func New(cfg config.AdminConfig, volumes config.VolumesConfig, repo borg.Client, history History) *Server {
	return &Server{cfg: cfg, volumes: volumes, repo: repo, history: history}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

// HTTPServer builds the http.Server for the configured address with
// timeouts applied.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.Timeout,
		WriteTimeout:      s.cfg.Timeout,
		IdleTimeout:       60 * time.Second,
	}
}

// probeReady checks repository reachability, reusing the last result
// within readyProbeTTL so probes cannot hammer a remote repository.
func (s *Server) probeReady(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Now().Before(s.readyUntil) {
		return s.readyErr
	}

	s.readyErr = s.repo.Probe(ctx)
	s.readyUntil = time.Now().Add(readyProbeTTL)
	return s.readyErr
}
