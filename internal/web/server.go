// Package web exposes the story catalogue and play session over HTTP: a
// JSON API for browsing and navigating stories, a websocket stream of
// session snapshots, and the Prometheus metrics endpoint.
package web

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/fabula/internal/health"
	"github.com/MrWong99/fabula/internal/nav"
	"github.com/MrWong99/fabula/internal/observe"
	"github.com/MrWong99/fabula/internal/store"
)

// Server routes API requests to the story store and the session manager.
// Construct it with [NewServer] and mount [Server.Handler].
type Server struct {
	store   *store.Store
	manager *nav.Manager
	metrics *observe.Metrics
	checks  []health.Checker
	hub     *hub
	mux     *http.ServeMux
}

// ServerOption configures a [Server].
type ServerOption func(*Server)

// WithServerMetrics sets the metrics sink used by the HTTP middleware.
func WithServerMetrics(m *observe.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithHealthChecks adds readiness checks evaluated by the /readyz probe.
func WithHealthChecks(checks ...health.Checker) ServerOption {
	return func(s *Server) { s.checks = append(s.checks, checks...) }
}

// NewServer creates the API server on top of st and mgr.
func NewServer(st *store.Store, mgr *nav.Manager, opts ...ServerOption) *Server {
	s := &Server{
		store:   st,
		manager: mgr,
		hub:     newHub(),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	health.New(s.checks...).Register(s.mux)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/stories", s.handleListStories)
	s.mux.HandleFunc("GET /api/stories/{id}", s.handleGetStory)
	s.mux.HandleFunc("GET /api/stories/{id}/analysis", s.handleAnalyzeStory)
	s.mux.HandleFunc("POST /api/stories/{id}/start", s.handleStartStory)

	s.mux.HandleFunc("GET /api/session", s.handleGetSession)
	s.mux.HandleFunc("DELETE /api/session", s.handleAbandonSession)
	s.mux.HandleFunc("POST /api/session/choose", s.handleChoose)
	s.mux.HandleFunc("POST /api/session/restart", s.handleRestart)
	s.mux.HandleFunc("POST /api/session/goto", s.handleGoTo)
	s.mux.HandleFunc("GET /api/session/watch", s.handleWatch)

	s.mux.HandleFunc("POST /api/cache/clear", s.handleClearCache)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
}

// Handler returns the server's handler chain: the API mux wrapped in the
// tracing and metrics middleware.
func (s *Server) Handler() http.Handler {
	return observe.Middleware(s.metrics)(s.mux)
}
