package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/docproof/internal/check"
	"github.com/dgallion1/docproof/internal/config"
	"github.com/dgallion1/docproof/internal/pipeline"
)

// Jobs is the job queue the handlers submit to and poll.
type Jobs interface {
	Submit(job *pipeline.Job) error
	GetJob(id string) *pipeline.Job
	QueueDepth() int
}

// Server is the HTTP API server for docproof.
type Server struct {
	router   chi.Router
	jobs     Jobs
	stats    *check.LLMStats
	gatherer prometheus.Gatherer
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server. gatherer may be nil,
// in which case /metrics is not served.
func NewServer(jobs Jobs, stats *check.LLMStats, gatherer prometheus.Gatherer, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		jobs:     jobs,
		stats:    stats,
		gatherer: gatherer,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.Server.APIKey, s.log))

		r.Post("/api/analyze", s.handleAnalyze)
		r.Post("/api/analyze/batch", s.handleBatchAnalyze)
		r.Get("/api/analyze/{jobID}/status", s.handleAnalyzeStatus)
		r.Get("/api/analyze/{jobID}/report", s.handleAnalyzeReport)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
