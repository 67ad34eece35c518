package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/baxromumarov/job-harvester/internal/core"
	"github.com/baxromumarov/job-harvester/internal/store"
)

// JobReader is the read side of the job store.
type JobReader interface {
	ListJobs(ctx context.Context, limit, offset int) ([]store.Job, error)
	CountJobs(ctx context.Context) (int, error)
}

// RunController starts and reports crawl runs.
type RunController interface {
	Start() (core.Run, error)
	Get(id string) (core.Run, bool)
	List() []core.Run
}

type Server struct {
	router *chi.Mux
	jobs   JobReader
	runs   RunController
	logger *slog.Logger
}

func NewServer(jobs JobReader, runs RunController, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router: chi.NewRouter(),
		jobs:   jobs,
		runs:   runs,
		logger: logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/stats", s.handleStats)
	s.router.Get("/jobs", s.handleListJobs)
	s.router.Route("/crawls", func(r chi.Router) {
		r.Get("/", s.handleListCrawls)
		r.Post("/", s.handleStartCrawl)
		r.Get("/{id}", s.handleGetCrawl)
	})
}

func (s *Server) Router() http.Handler {
	return s.router
}

// requestLogger logs one line per request through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
