package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/baxromumarov/job-harvester/internal/core"
	"github.com/baxromumarov/job-harvester/internal/observability"
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, 20)

	jobs, err := s.jobs.ListJobs(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list jobs failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch jobs")
		return
	}
	total, err := s.jobs.CountJobs(r.Context())
	if err != nil {
		s.logger.Error("count jobs failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to count jobs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":  jobs,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, observability.Snapshot())
}

func (s *Server) handleStartCrawl(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Start()
	switch {
	case errors.Is(err, core.ErrRunInProgress):
		respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.Header().Set("Location", "/crawls/"+run.ID)
	respondJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleListCrawls(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"items": s.runs.List()})
}

func (s *Server) handleGetCrawl(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runs.Get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "Crawl not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func parsePagination(r *http.Request, defaultLimit int) (int, int) {
	q := r.URL.Query()
	limit := defaultLimit
	offset := 0

	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
