package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/billwatch/internal/api/middleware"
	"github.com/dvloznov/billwatch/internal/event"
	"github.com/dvloznov/billwatch/internal/jobs"
	"github.com/dvloznov/billwatch/internal/pipeline"
	"github.com/rs/zerolog"
)

const maxEventBytes = 1 << 20

// Runner runs one analysis for a location.
type Runner interface {
	Run(ctx context.Context, location string) pipeline.Result
}

// RunResponse is the JSON body reported for a synchronous run.
type RunResponse struct {
	Outcome string `json:"outcome"`
	Body    string `json:"body"`
	RunID   string `json:"run_id"`
}

// EventsHandler handles storage upload notifications.
type EventsHandler struct {
	runner  Runner
	timeout time.Duration
	log     zerolog.Logger
}

// NewEventsHandler creates a new events handler. timeout bounds each run;
// zero means no limit beyond the request context.
func NewEventsHandler(runner Runner, timeout time.Duration, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		runner:  runner,
		timeout: timeout,
		log:     log,
	}
}

// HandleStorageEvent handles POST /events/storage
func (h *EventsHandler) HandleStorageEvent(w http.ResponseWriter, r *http.Request) {
	log := h.log.With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Logger()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	location, err := event.Decode(body, r.Header)
	if errors.Is(err, event.ErrIgnored) {
		log.Info().Err(err).Msg("Storage event ignored")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("Invalid storage event")
		middleware.WriteError(w, http.StatusBadRequest, "Invalid storage event")
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res := h.runner.Run(ctx, location)

	middleware.WriteJSON(w, res.StatusCode, RunResponse{
		Outcome: string(res.Outcome),
		Body:    res.Body,
		RunID:   res.RunID,
	})
}

// AnalysesHandler handles asynchronous analysis requests.
type AnalysesHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(publisher jobs.Publisher, log zerolog.Logger) *AnalysesHandler {
	return &AnalysesHandler{
		publisher: publisher,
		log:       log,
	}
}

// CreateAnalysis handles POST /api/analyses
func (h *AnalysesHandler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URI string `json:"uri"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.URI = strings.TrimSpace(req.URI)
	if req.URI == "" {
		middleware.WriteError(w, http.StatusBadRequest, "uri is required")
		return
	}

	job := &jobs.AnalyzeJob{URI: req.URI}
	if err := h.publisher.PublishAnalyze(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("uri", req.URI).Msg("Failed to enqueue analysis job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue analysis job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("uri", req.URI).Msg("Analysis job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"uri":    req.URI,
		"status": string(jobs.JobStatusPending),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		URI:    query.Get("uri"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// NewMux registers every endpoint on a new ServeMux.
func NewMux(events *EventsHandler, analyses *AnalysesHandler, jobsHandler *JobsHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/events/storage", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			events.HandleStorageEvent(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/analyses", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			analyses.CreateAnalysis(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	})

	mux.HandleFunc("/health", Health)

	return mux
}
