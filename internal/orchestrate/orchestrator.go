// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrate drives a research job through its staged state
// machine: planning, searching, extracting, analyzing, verifying,
// compiling. Stages advance in strict forward order; the only side
// transition is to failed, from any non-terminal state.
//
// The job object is owned by the run goroutine. Extraction workers hand
// results back to the owner instead of mutating the job, so no stage needs
// a lock around job state. Consumers observe the run through cloned
// snapshots published at every transition.
//
// See docs/ARCHITECTURE.md § Orchestrator.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-orchestrator/internal/classify"
	"github.com/pdiddy/research-orchestrator/internal/gate"
	"github.com/pdiddy/research-orchestrator/internal/provider"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// ErrCancelled marks a job failed by caller cancellation rather than by a
// provider or stage error. Metrics and tests rely on the distinction.
var ErrCancelled = errors.New("research cancelled by caller")

// Progress checkpoints per stage. The exact numbers are presentation; the
// contract is monotonic non-decrease with an event at every transition.
const (
	progressPlanning   = 5
	progressSearching  = 15
	progressExtracting = 30
	progressAnalyzing  = 55
	progressVerifying  = 75
	progressCompiling  = 85
	progressCompleted  = 100
)

// Tools is the slice of the tool adapter the orchestrator drives directly.
type Tools interface {
	Search(ctx context.Context, query string, limit int) ([]types.SearchItem, string, error)
	Extract(ctx context.Context, url string) (provider.Extraction, error)
}

// Checker is the reliability gate's pre-flight check.
type Checker interface {
	Check(ctx context.Context, sources []types.ConfiguredSource, opts gate.Options) (*gate.Result, error)
}

// Consolidator cross-references findings against sources.
type Consolidator interface {
	Consolidate(ctx context.Context, query string, sources []types.Source) []types.Finding
	Verify(findings []types.Finding, sources []types.Source) ([]types.Finding, []types.Source)
}

// ReportCompiler builds the final report.
type ReportCompiler interface {
	Compile(ctx context.Context, query string, findings []types.Finding, sources []types.Source) *types.Report
}

// Config holds the orchestrator's tunables.
type Config struct {
	// MaxSources is the default extraction fan-out width, clamped to [1, 20].
	MaxSources int

	// ExtractConcurrency caps concurrent extraction workers.
	ExtractConcurrency int

	// MinContentLen is the usable-content threshold for the post-extraction
	// strict check and for source reliability scoring.
	MinContentLen int
}

// ConfigFrom derives orchestrator tunables from the pipeline configuration.
func ConfigFrom(p types.PipelineConfig) Config {
	return Config{
		MaxSources:         p.Orchestrator.MaxSources,
		ExtractConcurrency: p.Extract.Concurrency,
		MinContentLen:      p.Extract.MinContentLen,
	}
}

// Options control a single run.
type Options struct {
	// Limit overrides the extraction fan-out width for this run.
	Limit int

	// StrictMode fails the run when too few sources are reachable or useful.
	StrictMode bool

	// MinSources is the strict-mode threshold.
	MinSources int

	// Sources overrides the gate's configured source list for this run.
	Sources []types.ConfiguredSource
}

// Orchestrator runs research jobs. It is safe for concurrent Launch calls;
// each run owns its own job.
type Orchestrator struct {
	tools    Tools
	checker  Checker
	engine   Consolidator
	compiler ReportCompiler
	cfg      Config
	log      *zap.Logger
}

// New constructs an Orchestrator. checker may be nil when no gate is
// configured; strict-mode runs then fail fast.
func New(tools Tools, checker Checker, engine Consolidator, compiler ReportCompiler, cfg Config, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 8
	}
	if cfg.ExtractConcurrency <= 0 {
		cfg.ExtractConcurrency = 4
	}
	if cfg.MinContentLen <= 0 {
		cfg.MinContentLen = 200
	}
	return &Orchestrator{
		tools:    tools,
		checker:  checker,
		engine:   engine,
		compiler: compiler,
		cfg:      cfg,
		log:      log,
	}
}

// Run is one in-flight or finished job execution.
type Run struct {
	bc       *broadcaster
	done     chan struct{}
	snapshot atomic.Pointer[types.ResearchJob]
	strict   atomic.Pointer[gate.StrictModeError]
}

// Events returns a subscription to the run's progress snapshots. The
// channel closes after the terminal snapshot; subscribing after completion
// still yields the terminal snapshot.
func (r *Run) Events() <-chan *types.ResearchJob {
	return r.bc.subscribe()
}

// Job returns the latest published snapshot.
func (r *Run) Job() *types.ResearchJob {
	return r.snapshot.Load()
}

// StrictFailure returns the strict-mode diagnostics when the run failed a
// strict check, nil otherwise.
func (r *Run) StrictFailure() *gate.StrictModeError {
	return r.strict.Load()
}

// Wait blocks until the run reaches a terminal state or ctx is done. The
// returned job is the terminal snapshot (nil only when ctx expired first).
func (r *Run) Wait(ctx context.Context) (*types.ResearchJob, error) {
	select {
	case <-r.done:
		return r.snapshot.Load(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Launch starts a job for the query and returns immediately. Cancelling
// ctx stops further stage work and fails the job with a cancellation
// error distinct from provider failures.
func (o *Orchestrator) Launch(ctx context.Context, query string, opts Options) *Run {
	now := time.Now().UTC()
	job := &types.ResearchJob{
		ID:        uuid.NewString(),
		Query:     query,
		Status:    types.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	run := &Run{bc: newBroadcaster(), done: make(chan struct{})}
	run.snapshot.Store(job.Clone())

	go o.execute(ctx, run, job, opts)
	return run
}

// execute drives the state machine. Only this goroutine mutates job.
func (o *Orchestrator) execute(ctx context.Context, run *Run, job *types.ResearchJob, opts Options) {
	defer close(run.done)

	limit := opts.Limit
	if limit <= 0 {
		limit = o.cfg.MaxSources
	}
	if limit > 20 {
		limit = 20
	}

	// planning: classify the query and pick the tool chain.
	o.transition(run, job, types.StatusPlanning, progressPlanning)
	analysis := classify.Analyze(job.Query)
	o.log.Info("query classified",
		zap.String("job", job.ID),
		zap.String("intent", string(analysis.Intent)),
		zap.Float64("confidence", analysis.Confidence))

	if o.cancelled(ctx, run, job) {
		return
	}

	// searching: URL-bearing queries skip providers and scrape directly.
	o.transition(run, job, types.StatusSearching, progressSearching)
	items, err := o.search(ctx, run, job, analysis, opts, limit)
	if err != nil {
		return // search already failed the job
	}
	if len(items) > limit {
		items = items[:limit]
	}

	if o.cancelled(ctx, run, job) {
		return
	}

	// extracting: bounded parallel fan-out; all attempts settle before the
	// stage ends, and individual failures only degrade the source set.
	o.transition(run, job, types.StatusExtracting, progressExtracting)
	sources := o.extractAll(ctx, items)
	job.Sources = sources

	if o.cancelled(ctx, run, job) {
		return
	}

	// Second strict tier: reachable is not the same as useful.
	if opts.StrictMode {
		if _, err := gate.CheckUsable(sources, opts.MinSources, limit, o.cfg.MinContentLen); err != nil {
			o.failStrict(run, job, err)
			return
		}
	}
	if len(sources) == 0 {
		o.fail(run, job, "extraction yielded no usable sources")
		return
	}

	// analyzing
	o.transition(run, job, types.StatusAnalyzing, progressAnalyzing)
	findings := o.engine.Consolidate(ctx, job.Query, sources)

	if o.cancelled(ctx, run, job) {
		return
	}

	// verifying: deterministic corroboration, independent of any provider.
	o.transition(run, job, types.StatusVerifying, progressVerifying)
	findings, sources = o.engine.Verify(findings, sources)
	job.Findings = findings
	job.Sources = sources

	if o.cancelled(ctx, run, job) {
		return
	}

	// compiling
	o.transition(run, job, types.StatusCompiling, progressCompiling)
	job.Report = o.compiler.Compile(ctx, job.Query, findings, sources)

	job.Status = types.StatusCompleted
	job.Progress = progressCompleted
	job.UpdatedAt = time.Now().UTC()
	o.finish(run, job)
}

// search resolves the searching stage. On failure it marks the job failed
// and returns an error so execute can stop.
func (o *Orchestrator) search(ctx context.Context, run *Run, job *types.ResearchJob, analysis types.QueryAnalysis, opts Options, limit int) ([]types.SearchItem, error) {
	if len(analysis.ExtractedURLs) > 0 {
		// Query URLs are scrape targets and pass the same validation as
		// configured sources; private and loopback hosts never reach the
		// extraction ladder.
		var items []types.SearchItem
		for _, u := range analysis.ExtractedURLs {
			if err := gate.ValidateURL(u); err != nil {
				o.log.Warn("skipping disallowed URL target",
					zap.String("job", job.ID),
					zap.String("url", u),
					zap.Error(err))
				continue
			}
			items = append(items, types.SearchItem{Title: u, URL: u, Source: "query", Score: 1.0})
		}
		if len(items) == 0 {
			o.fail(run, job, "query contains no allowed URL targets")
			return nil, errors.New("no allowed URL targets")
		}
		return items, nil
	}

	// Pre-flight reliability gate, when requested.
	if opts.StrictMode || len(opts.Sources) > 0 {
		if o.checker == nil {
			o.fail(run, job, "strict mode requested but no reliability gate configured")
			return nil, errors.New("no gate")
		}
		_, err := o.checker.Check(ctx, opts.Sources, gate.Options{
			StrictMode:    opts.StrictMode,
			MinSources:    opts.MinSources,
			MinContentLen: o.cfg.MinContentLen,
		})
		if err != nil {
			o.failStrict(run, job, err)
			return nil, err
		}
	}

	items, method, err := o.tools.Search(ctx, job.Query, limit)
	if err != nil {
		o.fail(run, job, fmt.Sprintf("search failed: %v", err))
		return nil, err
	}
	o.log.Info("search complete",
		zap.String("job", job.ID),
		zap.String("method", method),
		zap.Int("results", len(items)))
	if len(items) == 0 {
		o.fail(run, job, "search returned no results")
		return nil, errors.New("no results")
	}
	return items, nil
}

// extractAll fans extraction out over the search results with bounded
// concurrency and waits for every attempt to settle. Workers write into
// per-index slots and never touch the job.
func (o *Orchestrator) extractAll(ctx context.Context, items []types.SearchItem) []types.Source {
	type outcome struct {
		ex  provider.Extraction
		err error
	}
	outcomes := make([]outcome, len(items))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(o.cfg.ExtractConcurrency)
	for i, item := range items {
		eg.Go(func() error {
			ex, err := o.tools.Extract(egCtx, item.URL)
			outcomes[i] = outcome{ex: ex, err: err}
			return nil
		})
	}
	eg.Wait()

	now := time.Now().UTC()
	var sources []types.Source
	for i, out := range outcomes {
		if out.err != nil {
			o.log.Warn("extraction failed",
				zap.String("url", items[i].URL),
				zap.Error(out.err))
			continue
		}
		title := out.ex.Title
		if title == "" {
			title = items[i].Title
		}
		sources = append(sources, types.Source{
			ID:          uuid.NewString(),
			URL:         items[i].URL,
			Domain:      domainOf(items[i].URL),
			Title:       title,
			Content:     out.ex.Content,
			ExtractedAt: now,
			Reliability: reliability(items[i].Score, len(out.ex.Content), o.cfg.MinContentLen),
		})
	}
	return sources
}

// transition advances the state machine and publishes a snapshot. Progress
// never decreases within a run.
func (o *Orchestrator) transition(run *Run, job *types.ResearchJob, status types.JobStatus, progress int) {
	job.Status = status
	if progress > job.Progress {
		job.Progress = progress
	}
	job.UpdatedAt = time.Now().UTC()
	snap := job.Clone()
	run.snapshot.Store(snap)
	run.bc.publish(snap)
	o.log.Info("stage transition",
		zap.String("job", job.ID),
		zap.String("status", string(status)),
		zap.Int("progress", job.Progress))
}

// cancelled checks for caller cancellation between stages and fails the job
// with the dedicated cancellation error when it fired.
func (o *Orchestrator) cancelled(ctx context.Context, run *Run, job *types.ResearchJob) bool {
	if ctx.Err() == nil {
		return false
	}
	o.fail(run, job, ErrCancelled.Error())
	return true
}

// fail moves the job to the failed terminal state.
func (o *Orchestrator) fail(run *Run, job *types.ResearchJob, msg string) {
	job.Status = types.StatusFailed
	job.Error = msg
	job.UpdatedAt = time.Now().UTC()
	o.finish(run, job)
	o.log.Warn("job failed", zap.String("job", job.ID), zap.String("error", msg))
}

// failStrict records the strict-mode diagnostics alongside the failure.
func (o *Orchestrator) failStrict(run *Run, job *types.ResearchJob, err error) {
	var sme *gate.StrictModeError
	if errors.As(err, &sme) {
		run.strict.Store(sme)
	}
	o.fail(run, job, err.Error())
}

// finish publishes the terminal snapshot and closes the broadcast.
func (o *Orchestrator) finish(run *Run, job *types.ResearchJob) {
	snap := job.Clone()
	run.snapshot.Store(snap)
	run.bc.finish(snap)
}

// reliability scores a source from its search rank and content volume.
func reliability(score float64, contentLen, minLen int) float64 {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	volume := float64(contentLen) / float64(4*minLen)
	if volume > 1 {
		volume = 1
	}
	r := 0.2 + 0.5*score + 0.3*volume
	if r > 1 {
		r = 1
	}
	return r
}

// domainOf extracts the registrable host from a URL, stripping "www.".
func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
