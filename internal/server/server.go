// Package server exposes blend optimization as an HTTP job API.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cwbudde/blendopt/internal/blend"
	"github.com/cwbudde/blendopt/internal/config"
	"github.com/cwbudde/blendopt/internal/plan"
	"github.com/cwbudde/blendopt/internal/store"
)

const maxRequestBytes = 10 << 20

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	worker     *worker
	store      *store.FSStore
	addr       string
	server     *http.Server
	logger     *zap.Logger

	jobCtx    context.Context
	cancelJob context.CancelFunc
	jobs      sync.WaitGroup
}

// NewServer creates a new HTTP server. A nil store disables persistence and
// a nil logger disables logging.
func NewServer(addr string, optCfg config.OptimizerConfig, st *store.FSStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	jm := NewJobManager(logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		jobManager: jm,
		worker: &worker{
			jm:     jm,
			orch:   plan.New(optCfg, logger),
			optCfg: optCfg,
			store:  st,
			logger: logger,
		},
		store:     st,
		addr:      addr,
		logger:    logger,
		jobCtx:    ctx,
		cancelJob: cancel,
	}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunsWithID)
	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting HTTP server", zap.String("addr", s.addr))
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, cancels pending jobs and waits for
// running ones to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server", zap.Int("runningJobs", len(s.jobManager.GetRunningJobs())))
	s.cancelJob()

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// handleRuns handles /api/v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunsWithID handles /api/v1/runs/:id/*
func (s *Server) handleRunsWithID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	parts := strings.Split(path, "/")
	if parts[0] == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	runID := parts[0]
	switch {
	case len(parts) == 1 || parts[1] == "status":
		s.handleGetRun(w, r, runID)
	case parts[1] == "report":
		s.handleGetReport(w, r, runID)
	case parts[1] == "trace":
		s.handleGetTrace(w, r, runID)
	case parts[1] == "stream":
		s.handleJobStream(w, r, runID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// runRequest is the body of POST /api/v1/runs: an input document plus an
// optional mode.
type runRequest struct {
	Mode string `json:"mode"`
}

// handleCreateRun handles POST /api/v1/runs
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read body: %v", err), http.StatusBadRequest)
		return
	}

	in, err := blend.DecodeInput(bytes.NewReader(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req runRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if q := r.URL.Query().Get("mode"); q != "" {
		req.Mode = q
	}
	mode, err := plan.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(in, mode)

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.worker.runJob(s.jobCtx, job.ID)
	}()

	writeJSON(w, http.StatusCreated, job)
}

// handleListRuns handles GET /api/v1/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobManager.ListJobs()
	summaries := make([]Job, len(jobs))
	for i, job := range jobs {
		summaries[i] = job.Summary()
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleGetRun handles GET /api/v1/runs/:id
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request, runID string) {
	job, exists := s.jobManager.GetJob(runID)
	if !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	writeJSON(w, http.StatusOK, struct {
		Job
		Elapsed float64 `json:"elapsed"`
	}{job, elapsed.Seconds()})
}

// handleGetReport handles GET /api/v1/runs/:id/report?format=json|yaml.
// Finished jobs are served from memory, older runs from the store.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request, runID string) {
	report, status, err := s.lookupReport(runID)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
	case "yaml", "yml":
		w.Header().Set("Content-Type", "application/yaml")
	default:
		http.Error(w, fmt.Sprintf("unsupported format: %s", format), http.StatusBadRequest)
		return
	}
	if err := report.Write(w, format); err != nil {
		s.logger.Error("failed to write report", zap.String("runID", runID), zap.Error(err))
	}
}

func (s *Server) lookupReport(runID string) (*plan.Report, int, error) {
	if job, ok := s.jobManager.GetJob(runID); ok {
		if job.Report == nil {
			return nil, http.StatusConflict, fmt.Errorf("run %s is %s", runID, job.State)
		}
		return job.Report, http.StatusOK, nil
	}
	if s.store == nil {
		return nil, http.StatusNotFound, fmt.Errorf("run not found: %s", runID)
	}

	rec, err := s.store.LoadRun(runID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, http.StatusNotFound, err
	} else if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return rec.Report, http.StatusOK, nil
}

// handleGetTrace handles GET /api/v1/runs/:id/trace
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request, runID string) {
	if s.store == nil {
		http.Error(w, "Persistence is disabled", http.StatusNotFound)
		return
	}

	reader, err := store.NewTraceReader(s.store.BaseDir(), runID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Trace not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []store.TraceEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
