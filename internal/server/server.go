// Package server exposes a read-only REST API over the tracked experiment
// set: live status snapshots, per-experiment detail, and result rows. All
// launch-state mutation stays with the CLI; the server never writes.
package server

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tesfaldet/haven/internal/config"
	"github.com/tesfaldet/haven/internal/results"
	"github.com/tesfaldet/haven/internal/status"
	"github.com/tesfaldet/haven/internal/store"
)

// Server is the haven status API server. It serves snapshots over a fixed
// experiment set, resolved from the experiment list the server was started
// with.
type Server struct {
	router     chi.Router
	logger     *slog.Logger
	config     config.ServerConfig
	startTime  time.Time
	ids        []string
	aggregator *status.Aggregator
	results    *results.Reader
}

// New creates a new Server tracking the given experiment ids, with all
// routes registered.
func New(cfg config.ServerConfig, st store.Store, ids []string, logger *slog.Logger) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		logger:     logger.With("component", "server"),
		config:     cfg,
		startTime:  time.Now(),
		ids:        ids,
		aggregator: status.New(st, logger),
		results:    results.New(st, logger),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/experiments", func(r chi.Router) {
			r.Get("/", s.handleListExperiments)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetExperiment)
				r.Get("/results", s.handleGetExperimentResults)
			})
		})

		r.Get("/results", s.handleListResults)
	})
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	GoVersion   string `json:"go_version"`
	Uptime      string `json:"uptime"`
	Experiments int    `json:"experiments"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, healthResponse{
		Status:      "healthy",
		Version:     "0.1.0",
		GoVersion:   runtime.Version(),
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
		Experiments: len(s.ids),
	})
}
