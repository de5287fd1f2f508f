// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/research-orchestrator/internal/httputil"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// Adapter walks ordered provider ladders for each capability. A provider is
// tried at most once per call; when the ladder is exhausted the adapter
// falls through to a deterministic local implementation where one exists.
type Adapter struct {
	searchers  []SearchProvider
	extractors []ExtractProvider
	texters    []TextProvider

	searchTimeout  time.Duration
	extractTimeout time.Duration
	aiTimeout      time.Duration
	maxContentLen  int

	limiter *rate.Limiter
	log     *zap.Logger
}

// New constructs an Adapter from explicit configuration. All provider
// selection happens here, at construction time; nothing reads the
// environment later.
func New(cfg types.PipelineConfig, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}

	a := &Adapter{
		searchTimeout:  orDuration(cfg.Search.Timeout, 10*time.Second),
		extractTimeout: orDuration(cfg.Extract.Timeout, 15*time.Second),
		aiTimeout:      orDuration(cfg.AI.Timeout, 60*time.Second),
		maxContentLen:  orInt(cfg.Extract.MaxContentLen, 20000),
		limiter:        rate.NewLimiter(rate.Limit(4), 4),
		log:            log,
	}

	if cfg.Search.EnableBrave && cfg.Search.BraveAPIKey != "" {
		a.searchers = append(a.searchers, &BraveSearch{
			Client:    httputil.NewClient(a.searchTimeout),
			APIKey:    cfg.Search.BraveAPIKey,
			UserAgent: cfg.Search.UserAgent,
		})
	}
	if cfg.Search.EnableSearx && cfg.Search.SearxBaseURL != "" {
		a.searchers = append(a.searchers, &SearxSearch{
			Client:    httputil.NewClient(a.searchTimeout),
			BaseURL:   cfg.Search.SearxBaseURL,
			UserAgent: cfg.Search.UserAgent,
		})
	}

	if cfg.Extract.ReaderBaseURL != "" {
		a.extractors = append(a.extractors, &ReaderExtract{
			Client:        httputil.NewClient(a.extractTimeout),
			BaseURL:       cfg.Extract.ReaderBaseURL,
			UserAgent:     cfg.Extract.UserAgent,
			MaxContentLen: a.maxContentLen,
		})
	}
	// The direct fetch-and-parse extractor is always the last rung.
	a.extractors = append(a.extractors, &LocalExtract{
		Client:        httputil.NewClient(a.extractTimeout),
		UserAgent:     cfg.Extract.UserAgent,
		MaxContentLen: a.maxContentLen,
	})

	if cfg.AI.APIKey != "" {
		a.texters = append(a.texters, &ClaudeText{
			APIKey:     cfg.AI.APIKey,
			Model:      cfg.AI.Model,
			Client:     httputil.NewClient(a.aiTimeout),
			MaxRetries: cfg.AI.MaxRetries,
		})
	}

	return a
}

// NewWithProviders constructs an Adapter with explicit provider ladders.
// Used by tests and by callers that assemble providers themselves.
func NewWithProviders(searchers []SearchProvider, extractors []ExtractProvider, texters []TextProvider, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		searchers:      searchers,
		extractors:     extractors,
		texters:        texters,
		searchTimeout:  10 * time.Second,
		extractTimeout: 15 * time.Second,
		aiTimeout:      60 * time.Second,
		maxContentLen:  20000,
		limiter:        rate.NewLimiter(rate.Inf, 1),
		log:            log,
	}
}

// Search walks the search ladder and returns results plus the name of the
// provider that served them. When every provider fails, URLs embedded in
// the query itself become the result set; a query with neither working
// providers nor embedded URLs is a genuine failure.
func (a *Adapter) Search(ctx context.Context, query string, limit int) ([]types.SearchItem, string, error) {
	for _, p := range a.searchers {
		callCtx, cancel := context.WithTimeout(ctx, a.searchTimeout)
		items, err := p.Search(callCtx, query, limit)
		cancel()
		if err != nil {
			a.log.Warn("search provider failed",
				zap.String("provider", p.Name()),
				zap.Error(err))
			continue
		}
		if len(items) == 0 {
			a.log.Warn("search provider returned no results",
				zap.String("provider", p.Name()))
			continue
		}
		a.log.Info("search served",
			zap.String("provider", p.Name()),
			zap.Int("results", len(items)))
		return items, p.Name(), nil
	}

	if items := localSearch(query, limit); len(items) > 0 {
		a.log.Info("search served", zap.String("provider", "local"))
		return items, "local", nil
	}
	return nil, "", fmt.Errorf("search %q: %w", query, ErrAllProvidersFailed)
}

// Extract walks the extraction ladder for one URL. The local fetch-and-parse
// rung is part of the ladder, so an error here means the page itself is
// unreachable or empty.
func (a *Adapter) Extract(ctx context.Context, url string) (Extraction, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return Extraction{}, err
	}
	var lastErr error
	for _, p := range a.extractors {
		callCtx, cancel := context.WithTimeout(ctx, a.extractTimeout)
		ex, err := p.Extract(callCtx, url)
		cancel()
		if err != nil {
			a.log.Warn("extract provider failed",
				zap.String("provider", p.Name()),
				zap.String("url", url),
				zap.Error(err))
			lastErr = err
			continue
		}
		return ex, nil
	}
	return Extraction{}, fmt.Errorf("extract %s: %w: %v", url, ErrAllProvidersFailed, lastErr)
}

// Summarize returns a summary of text bounded by maxLen characters. It
// never fails: when no text provider is available the text is truncated
// with an ellipsis.
func (a *Adapter) Summarize(ctx context.Context, text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 500
	}
	prompt, err := renderSummarizePrompt(text, maxLen)
	if err == nil {
		if out, name, ok := a.complete(ctx, prompt, maxLen); ok {
			a.log.Info("summarize served", zap.String("provider", name))
			return out
		}
	}
	return LocalSummarize(text, maxLen)
}

// LocalSummarize is the deterministic summarize fallback: truncation at
// maxLen runes with an ellipsis when anything was cut.
func LocalSummarize(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

// Analyze extracts claim tuples for the query from the sources. It never
// fails: when no provider is available, or the provider response cannot be
// parsed, each source's first sentence becomes a naive claim with the
// source's reliability as confidence. The returned method names which path
// produced the findings.
func (a *Adapter) Analyze(ctx context.Context, query string, sources []types.Source) ([]RawFinding, string) {
	prompt, err := renderAnalyzePrompt(query, a.boundSources(sources))
	if err == nil {
		if out, name, ok := a.complete(ctx, prompt, 0); ok {
			findings, perr := parseFindings(out)
			if perr == nil && len(findings) > 0 {
				a.log.Info("analyze served",
					zap.String("provider", name),
					zap.Int("findings", len(findings)))
				return findings, name
			}
			a.log.Warn("analyze response unusable", zap.Error(perr))
		}
	}
	return localAnalyze(sources), "local"
}

// GenerateReport produces a markdown report. It never fails: with no
// provider available a fixed template assembles the report from findings
// and sources. The returned method names which path produced the markdown.
func (a *Adapter) GenerateReport(ctx context.Context, query string, findings []types.Finding, sources []types.Source) (string, string) {
	prompt, err := renderReportPrompt(query, findings, sources)
	if err == nil {
		if out, name, ok := a.complete(ctx, prompt, 0); ok && strings.Contains(out, "#") {
			a.log.Info("report served", zap.String("provider", name))
			return out, name
		}
	}
	return localReport(query, findings, sources), "local"
}

// complete walks the text ladder once.
func (a *Adapter) complete(ctx context.Context, prompt string, maxTokens int) (string, string, bool) {
	for _, p := range a.texters {
		callCtx, cancel := context.WithTimeout(ctx, a.aiTimeout)
		out, err := p.Complete(callCtx, prompt, maxTokens)
		cancel()
		if err != nil {
			a.log.Warn("text provider failed",
				zap.String("provider", p.Name()),
				zap.Error(err))
			continue
		}
		return out, p.Name(), true
	}
	return "", "", false
}

// boundSources truncates source content so prompts stay within a sane size.
func (a *Adapter) boundSources(sources []types.Source) []types.Source {
	const perSource = 4000
	bounded := make([]types.Source, len(sources))
	copy(bounded, sources)
	for i := range bounded {
		if len(bounded[i].Content) > perSource {
			bounded[i].Content = bounded[i].Content[:perSource]
		}
	}
	return bounded
}

// localSearch turns URLs embedded in the query into a result set.
func localSearch(query string, limit int) []types.SearchItem {
	var items []types.SearchItem
	for _, f := range strings.Fields(query) {
		f = strings.TrimRight(f, ".,;:!?")
		if !strings.HasPrefix(f, "http://") && !strings.HasPrefix(f, "https://") {
			continue
		}
		items = append(items, types.SearchItem{
			Title:  f,
			URL:    f,
			Source: "local",
			Score:  1.0,
		})
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	return items
}

// localAnalyze is the deterministic analyze fallback: one naive claim per
// source, from its first sentence.
func localAnalyze(sources []types.Source) []RawFinding {
	var findings []RawFinding
	for _, s := range sources {
		claim := FirstSentence(s.Content)
		if claim == "" {
			continue
		}
		findings = append(findings, RawFinding{
			Claim:      claim,
			Evidence:   []string{claim},
			Confidence: s.Reliability,
			SourceIDs:  []string{s.ID},
		})
	}
	return findings
}

// localReport is the deterministic report fallback: a fixed template with
// Key Findings and Sources sections using the [n] citation grammar.
func localReport(query string, findings []types.Finding, sources []types.Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report: %s\n\n", query)
	fmt.Fprintf(&b, "Automated research across %d sources produced %d findings.\n\n", len(sources), len(findings))

	b.WriteString("## Key Findings\n\n")
	if len(findings) == 0 {
		b.WriteString("No findings could be extracted from the available sources.\n")
	}
	srcIndex := make(map[string]int, len(sources))
	for i, s := range sources {
		srcIndex[s.ID] = i + 1
	}
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s", f.Claim)
		for _, id := range f.SourceIDs {
			if n, ok := srcIndex[id]; ok {
				fmt.Fprintf(&b, " [%d]", n)
			}
		}
		b.WriteByte('\n')
	}

	b.WriteString("\n## Sources\n\n")
	for i, s := range sources {
		title := s.Title
		if title == "" {
			title = s.Domain
		}
		fmt.Fprintf(&b, "%d. %s — %s\n", i+1, title, s.URL)
	}
	return b.String()
}

// parseFindings decodes the analyze response JSON, tolerating markdown code
// fences around the object.
func parseFindings(out string) ([]RawFinding, error) {
	out = strings.TrimSpace(out)
	if i := strings.Index(out, "{"); i > 0 {
		out = out[i:]
	}
	if i := strings.LastIndex(out, "}"); i >= 0 {
		out = out[:i+1]
	}
	var resp struct {
		Findings []RawFinding `json:"findings"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		return nil, fmt.Errorf("parsing findings JSON: %w", err)
	}
	var valid []RawFinding
	for _, f := range resp.Findings {
		if strings.TrimSpace(f.Claim) == "" {
			continue
		}
		if f.Confidence < 0 {
			f.Confidence = 0
		}
		if f.Confidence > 1 {
			f.Confidence = 1
		}
		valid = append(valid, f)
	}
	return valid, nil
}

// FirstSentence returns the first sentence of text, bounded at 300 runes.
func FirstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	// First line, then first sentence terminator within it.
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			return strings.TrimSpace(text[:i+1])
		}
	}
	return LocalSummarize(text, 300)
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
