// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the research pipeline over HTTP: job submission
// with optional server-sent-event streaming, status lookup, and a
// gate-checked search endpoint. Input validation rejects bad requests
// before a job is ever created.
//
// See docs/ARCHITECTURE.md § HTTP Surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-orchestrator/internal/classify"
	"github.com/pdiddy/research-orchestrator/internal/gate"
	"github.com/pdiddy/research-orchestrator/internal/orchestrate"
	"github.com/pdiddy/research-orchestrator/internal/store"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// Launcher starts research runs.
type Launcher interface {
	Launch(ctx context.Context, query string, opts orchestrate.Options) *orchestrate.Run
}

// Searcher is the search slice of the tool adapter, used by /search.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]types.SearchItem, string, error)
}

// JobStore persists terminal jobs for /status lookups.
type JobStore interface {
	Put(ctx context.Context, job *types.ResearchJob) error
	Get(ctx context.Context, id string) (*types.ResearchJob, error)
}

// Server handles the HTTP surface. In-flight runs are served from an
// in-memory registry; terminal jobs are persisted to the store and evicted.
type Server struct {
	launcher Launcher
	searcher Searcher
	checker  orchestrate.Checker
	jobs     JobStore
	cfg      types.ServerConfig

	maxQueryLen int

	mu   sync.Mutex
	runs map[string]*orchestrate.Run

	log *zap.Logger
}

// New constructs a Server. jobs may be nil; /status then only sees
// in-flight runs.
func New(launcher Launcher, searcher Searcher, checker orchestrate.Checker, jobs JobStore, cfg types.ServerConfig, maxQueryLen int, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if maxQueryLen <= 0 {
		maxQueryLen = 2000
	}
	return &Server{
		launcher:    launcher,
		searcher:    searcher,
		checker:     checker,
		jobs:        jobs,
		cfg:         cfg,
		maxQueryLen: maxQueryLen,
		runs:        make(map[string]*orchestrate.Run),
		log:         log,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /run", s.handleRun)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("GET /status/{id}", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("http server listening", zap.String("addr", s.cfg.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shCtx)
	}
}

type runRequest struct {
	Query   string     `json:"query"`
	Stream  bool       `json:"stream"`
	Options runOptions `json:"options"`
}

type runOptions struct {
	Limit      int                      `json:"limit"`
	StrictMode bool                     `json:"strictMode"`
	MinSources int                      `json:"minSources"`
	Sources    []types.ConfiguredSource `json:"sources"`
}

func (o runOptions) orchestrate() orchestrate.Options {
	return orchestrate.Options{
		Limit:      o.Limit,
		StrictMode: o.StrictMode,
		MinSources: o.MinSources,
		Sources:    o.Sources,
	}
}

// validateQuery enforces the request contract before any stage runs. URLs
// embedded in the query are scrape targets, so they pass the same
// validation as configured sources: a private or loopback target is an
// input error, not a job.
func (s *Server) validateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return errors.New("query must not be empty")
	}
	if len([]rune(query)) > s.maxQueryLen {
		return fmt.Errorf("query exceeds %d characters", s.maxQueryLen)
	}
	for _, u := range classify.ExtractURLs(query) {
		if err := gate.ValidateURL(u); err != nil {
			return fmt.Errorf("disallowed URL target %q: %w", u, err)
		}
	}
	return nil
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := s.validateQuery(req.Query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Options.Limit < 0 {
		req.Options.Limit = 0
	}
	if req.Options.Limit > 20 {
		req.Options.Limit = 20
	}

	// The request context propagates into the run: a client disconnect
	// cancels further stage work.
	run := s.launcher.Launch(r.Context(), req.Query, req.Options.orchestrate())
	s.register(run)

	if req.Stream {
		s.streamRun(w, r, run)
		return
	}

	job, err := run.Wait(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "request cancelled before completion")
		return
	}
	s.retire(job)

	if sme := run.StrictFailure(); sme != nil {
		writeJSON(w, http.StatusServiceUnavailable, strictResponse(sme))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// streamRun writes the run's snapshots as server-sent events: one
// "data: <job JSON>" event per transition, an error event on failure, and
// a terminating "data: [DONE]" sentinel.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, run *orchestrate.Run) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported by connection")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var final *types.ResearchJob
	for snap := range run.Events() {
		payload, err := json.Marshal(snap)
		if err != nil {
			s.log.Error("snapshot marshal failed", zap.Error(err))
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		final = snap
	}

	if final != nil && final.Status == types.StatusFailed {
		payload, _ := json.Marshal(map[string]string{"error": final.Error})
		fmt.Fprintf(w, "data: %s\n\n", payload)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	if final != nil {
		s.retire(final)
	}
}

type searchRequest struct {
	Query      string                   `json:"query"`
	Limit      int                      `json:"limit"`
	StrictMode bool                     `json:"strictMode"`
	MinSources int                      `json:"minSources"`
	Sources    []types.ConfiguredSource `json:"sources"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := s.validateQuery(req.Query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 8
	}
	if limit > 20 {
		limit = 20
	}

	var (
		result *gate.Result
		err    error
	)
	if s.checker != nil && (req.StrictMode || len(req.Sources) > 0) {
		result, err = s.checker.Check(r.Context(), req.Sources, gate.Options{
			StrictMode: req.StrictMode,
			MinSources: req.MinSources,
		})
		if err != nil {
			var sme *gate.StrictModeError
			if errors.As(err, &sme) {
				writeJSON(w, http.StatusServiceUnavailable, strictResponse(sme))
				return
			}
			writeError(w, http.StatusBadGateway, "gate check failed: "+err.Error())
			return
		}
	}

	items, method, err := s.searcher.Search(r.Context(), req.Query, limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, "search failed: "+err.Error())
		return
	}

	// The success shape is fixed: diagnostics are present (empty) even
	// when the gate did not run.
	statuses := []types.SourceStatus{}
	summary := gate.Summary{}
	if result != nil {
		statuses = result.Statuses
		summary = result.Summarize()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"data":           items,
		"totalResults":   len(items),
		"searchMethod":   method,
		"strictMode":     req.StrictMode,
		"sourceStatuses": statuses,
		"summary":        summary,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	run, ok := s.runs[id]
	s.mu.Unlock()
	if ok {
		writeJSON(w, http.StatusOK, run.Job())
		return
	}

	if s.jobs == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	job, err := s.jobs.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "job lookup failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// register makes an in-flight run visible to /status.
func (s *Server) register(run *orchestrate.Run) {
	job := run.Job()
	s.mu.Lock()
	s.runs[job.ID] = run
	s.mu.Unlock()
}

// retire persists a terminal job and evicts the run from the registry.
// Persistence uses a detached context: the client may already be gone.
func (s *Server) retire(job *types.ResearchJob) {
	if s.jobs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.jobs.Put(ctx, job); err != nil {
			s.log.Error("job persist failed", zap.String("job", job.ID), zap.Error(err))
			return // keep the run in the registry so /status still works
		}
	}
	s.mu.Lock()
	delete(s.runs, job.ID)
	s.mu.Unlock()
}

// strictResponse is the 503 body for a strict-mode failure.
func strictResponse(sme *gate.StrictModeError) map[string]any {
	return map[string]any{
		"success":            false,
		"error":              sme.Error(),
		"strictModeFailure":  true,
		"sourceStatuses":     sme.Statuses,
		"unreachableSources": sme.Unreachable,
		"reachableSources":   sme.Reachable,
		"recommendations":    sme.Recommendations,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"success": false, "error": msg})
}
