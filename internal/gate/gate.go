// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gate implements the source reliability gate: a pre-flight
// connectivity and content check over a configured source list, run before
// any expensive extraction or analysis work. In strict mode the gate fails
// the whole job when fewer than the requested minimum of sources are
// reachable, returning per-source diagnostics instead of degraded results.
//
// See docs/ARCHITECTURE.md § Reliability Gate.
package gate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/research-orchestrator/internal/httputil"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// maxProbeBody caps how much of a probe response is read for the content check.
const maxProbeBody = 64 * 1024

// Options control a single gate check.
type Options struct {
	// StrictMode fails the check when fewer than MinSources are reachable.
	StrictMode bool

	// MinSources is the strict-mode reachability threshold.
	MinSources int

	// MinContentLen is the minimum probe body length, in bytes, for a
	// source to count as having content (default 200).
	MinContentLen int
}

// Result holds the outcome of one gate check.
type Result struct {
	Statuses []types.SourceStatus

	// Pages maps source name to the candidate page URLs discovered through
	// sitemap enumeration (at minimum the homepage for reachable sources).
	Pages map[string][]string
}

// Reachable returns the names of sources whose probe succeeded.
func (r *Result) Reachable() []string {
	var names []string
	for _, s := range r.Statuses {
		if s.Status == types.ProbeSuccess {
			names = append(names, s.Name)
		}
	}
	return names
}

// Unreachable returns the names of sources whose probe did not succeed.
func (r *Result) Unreachable() []string {
	var names []string
	for _, s := range r.Statuses {
		if s.Status != types.ProbeSuccess {
			names = append(names, s.Name)
		}
	}
	return names
}

// Summary aggregates the per-source statuses.
type Summary struct {
	SourcesChecked      int `json:"sourcesChecked"`
	SourcesReachable    int `json:"sourcesReachable"`
	SourcesUnreachable  int `json:"sourcesUnreachable"`
	TotalPagesFound     int `json:"totalPagesFound"`
	TotalPagesExtracted int `json:"totalPagesExtracted"`
}

// Summarize computes the aggregate view of the result.
func (r *Result) Summarize() Summary {
	s := Summary{SourcesChecked: len(r.Statuses)}
	for _, st := range r.Statuses {
		if st.Status == types.ProbeSuccess {
			s.SourcesReachable++
		} else {
			s.SourcesUnreachable++
		}
		s.TotalPagesFound += st.PagesFound
		s.TotalPagesExtracted += st.PagesExtracted
	}
	return s
}

// Gate probes candidate sources concurrently with bounded parallelism and
// paced outbound traffic.
type Gate struct {
	client  *http.Client
	cfg     types.GateConfig
	limiter *rate.Limiter
	log     *zap.Logger
}

// New constructs a Gate from explicit configuration.
func New(cfg types.GateConfig, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 8 * time.Second
	}
	if cfg.MaxPagesPerSource <= 0 {
		cfg.MaxPagesPerSource = 25
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	return &Gate{
		client:  httputil.NewClient(cfg.ProbeTimeout),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), cfg.Concurrency),
		log:     log,
	}
}

// Check probes every source and returns the per-source diagnostics. All
// probes settle before Check returns; a failed probe never aborts the
// others. When opts.StrictMode is set and fewer than opts.MinSources probes
// succeed, the returned error is a *StrictModeError carrying the full
// diagnostic list.
func (g *Gate) Check(ctx context.Context, sources []types.ConfiguredSource, opts Options) (*Result, error) {
	if len(sources) == 0 {
		sources = g.cfg.Sources
	}
	if opts.MinContentLen <= 0 {
		opts.MinContentLen = 200
	}

	result := &Result{
		Statuses: make([]types.SourceStatus, len(sources)),
		Pages:    make(map[string][]string, len(sources)),
	}
	pages := make([][]string, len(sources))

	eg, probeCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)
	for i, src := range sources {
		eg.Go(func() error {
			result.Statuses[i], pages[i] = g.checkSource(probeCtx, src, opts)
			return nil
		})
	}
	// Workers never return errors; Wait is a pure fan-in barrier.
	eg.Wait()

	for i, src := range sources {
		if len(pages[i]) > 0 {
			result.Pages[src.Name] = pages[i]
		}
	}

	reachable := len(result.Reachable())
	g.log.Info("gate check complete",
		zap.Int("sources", len(sources)),
		zap.Int("reachable", reachable))

	if opts.StrictMode && reachable < opts.MinSources {
		return result, &StrictModeError{
			MinSources:      opts.MinSources,
			Reachable:       result.Reachable(),
			Unreachable:     result.Unreachable(),
			Statuses:        result.Statuses,
			Recommendations: recommendations(result.Statuses, opts.MinSources),
		}
	}
	return result, nil
}

// checkSource validates and probes one source, then enumerates candidate pages.
func (g *Gate) checkSource(ctx context.Context, src types.ConfiguredSource, opts Options) (types.SourceStatus, []string) {
	status := types.SourceStatus{Name: src.Name, BaseURL: src.BaseURL}

	if err := ValidateURL(src.BaseURL); err != nil && !g.cfg.AllowPrivate {
		status.Status = types.ProbeBlocked
		status.Error = err.Error()
		return status, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		status.Status = types.ProbeFailed
		status.Error = err.Error()
		return status, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, g.cfg.ProbeTimeout)
	defer cancel()

	start := time.Now()
	body, err := g.fetch(probeCtx, src.BaseURL)
	status.ResponseTimeMS = time.Since(start).Milliseconds()

	if err != nil {
		if isTimeout(err) {
			status.Status = types.ProbeTimeout
		} else {
			status.Status = types.ProbeFailed
		}
		status.Error = err.Error()
		return status, nil
	}

	if len(strings.TrimSpace(body)) < opts.MinContentLen {
		status.Status = types.ProbeNoContent
		status.Error = fmt.Sprintf("homepage returned %d bytes of text, need %d", len(body), opts.MinContentLen)
		return status, nil
	}

	status.Status = types.ProbeSuccess
	status.PagesExtracted = 1 // the homepage body itself

	pages := g.discoverPages(ctx, src.BaseURL)
	if len(pages) == 0 {
		pages = []string{src.BaseURL}
	}
	status.PagesFound = len(pages)
	return status, pages
}

// fetch GETs the URL and returns up to maxProbeBody bytes of the body.
func (g *Gate) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if g.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", g.cfg.UserAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	return string(data), nil
}

// ValidateURL rejects non-HTTP(S) schemes and private or loopback network
// targets. Hostnames are checked literally (IP ranges, localhost names);
// DNS-level rebinding is out of scope for the gate.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("disallowed scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("missing host")
	}

	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") ||
		strings.HasSuffix(lower, ".local") || strings.HasSuffix(lower, ".internal") {
		return fmt.Errorf("disallowed host %q", host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
			ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return fmt.Errorf("disallowed network target %q", host)
		}
	}
	return nil
}

// CheckUsable is the second strict-mode tier, run after extraction: even
// when enough sources were reachable, the job must fail if too few pages
// yielded usable content. Returns the usable count and a *StrictModeError
// when the threshold is not met.
func CheckUsable(sources []types.Source, minSources, limit, minContentLen int) (int, error) {
	if minContentLen <= 0 {
		minContentLen = 200
	}
	need := minSources
	if limit > 0 && limit < need {
		need = limit
	}

	usable := 0
	var reachable, unusable []string
	statuses := make([]types.SourceStatus, 0, len(sources))
	for _, s := range sources {
		status := types.SourceStatus{Name: s.Domain, BaseURL: s.URL}
		if len(strings.TrimSpace(s.Content)) >= minContentLen {
			usable++
			status.Status = types.ProbeSuccess
			status.PagesExtracted = 1
			reachable = append(reachable, s.Domain)
		} else {
			status.Status = types.ProbeNoContent
			status.Error = fmt.Sprintf("extracted %d bytes of text, need %d", len(s.Content), minContentLen)
			unusable = append(unusable, s.Domain)
		}
		statuses = append(statuses, status)
	}
	if usable < need {
		return usable, &StrictModeError{
			MinSources:  need,
			Reachable:   reachable,
			Unreachable: unusable,
			Statuses:    statuses,
			Recommendations: []string{
				fmt.Sprintf("only %d of %d required sources yielded usable content; broaden the source list or lower min_sources", usable, need),
			},
		}
	}
	return usable, nil
}

// isTimeout reports whether err is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
