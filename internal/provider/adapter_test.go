// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// --- mock providers ---

type mockSearch struct {
	name  string
	items []types.SearchItem
	err   error
	calls int
}

func (m *mockSearch) Name() string { return m.name }

func (m *mockSearch) Search(_ context.Context, _ string, _ int) ([]types.SearchItem, error) {
	m.calls++
	return m.items, m.err
}

type mockExtract struct {
	name string
	ex   Extraction
	err  error
}

func (m *mockExtract) Name() string { return m.name }

func (m *mockExtract) Extract(_ context.Context, _ string) (Extraction, error) {
	return m.ex, m.err
}

type mockText struct {
	name  string
	out   string
	err   error
	calls int
}

func (m *mockText) Name() string { return m.name }

func (m *mockText) Complete(_ context.Context, _ string, _ int) (string, error) {
	m.calls++
	return m.out, m.err
}

// --- Search ladder ---

func TestSearchFallsThroughLadder(t *testing.T) {
	broken := &mockSearch{name: "broken", err: errors.New("boom")}
	working := &mockSearch{name: "working", items: []types.SearchItem{{URL: "https://a.com", Title: "A"}}}
	a := NewWithProviders([]SearchProvider{broken, working}, nil, nil, nil)

	items, method, err := a.Search(context.Background(), "anything", 8)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if method != "working" {
		t.Errorf("method = %q, want working", method)
	}
	if len(items) != 1 || items[0].URL != "https://a.com" {
		t.Errorf("items = %v", items)
	}
	if broken.calls != 1 {
		t.Errorf("broken provider called %d times, want exactly 1 (no same-provider retry)", broken.calls)
	}
}

func TestSearchLocalFallbackUsesQueryURLs(t *testing.T) {
	broken := &mockSearch{name: "broken", err: errors.New("boom")}
	a := NewWithProviders([]SearchProvider{broken}, nil, nil, nil)

	items, method, err := a.Search(context.Background(), "summarize https://example.com/page.", 8)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if method != "local" {
		t.Errorf("method = %q, want local", method)
	}
	if len(items) != 1 || items[0].URL != "https://example.com/page" {
		t.Errorf("items = %v, want the query URL with punctuation stripped", items)
	}
}

func TestSearchAllExhaustedIsTypedFailure(t *testing.T) {
	broken := &mockSearch{name: "broken", err: errors.New("boom")}
	a := NewWithProviders([]SearchProvider{broken}, nil, nil, nil)

	_, _, err := a.Search(context.Background(), "no urls here", 8)
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Errorf("err = %v, want ErrAllProvidersFailed", err)
	}
}

// --- Extract ladder ---

func TestExtractFallsThroughToLocal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Page Title</title></head><body><p>Hello world. More text here.</p><script>junk()</script></body></html>`)
	}))
	defer ts.Close()

	broken := &mockExtract{name: "reader", err: errors.New("reader down")}
	local := &LocalExtract{Client: ts.Client()}
	a := NewWithProviders(nil, []ExtractProvider{broken, local}, nil, nil)

	ex, err := a.Extract(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if ex.Title != "Page Title" {
		t.Errorf("Title = %q, want Page Title", ex.Title)
	}
	if !strings.Contains(ex.Content, "Hello world") {
		t.Errorf("Content = %q, want body text", ex.Content)
	}
	if strings.Contains(ex.Content, "junk") {
		t.Errorf("Content = %q, script text leaked", ex.Content)
	}
}

func TestExtractAllExhausted(t *testing.T) {
	broken := &mockExtract{name: "reader", err: errors.New("down")}
	a := NewWithProviders(nil, []ExtractProvider{broken}, nil, nil)

	_, err := a.Extract(context.Background(), "https://example.com")
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Errorf("err = %v, want ErrAllProvidersFailed", err)
	}
}

// --- Summarize ---

func TestSummarizeLocalFallbackTruncates(t *testing.T) {
	a := NewWithProviders(nil, nil, nil, nil) // no text providers

	long := strings.Repeat("a", 100)
	got := a.Summarize(context.Background(), long, 10)
	if got != strings.Repeat("a", 10)+"..." {
		t.Errorf("Summarize = %q, want 10 chars + ellipsis", got)
	}

	short := "short"
	if got := a.Summarize(context.Background(), short, 10); got != "short" {
		t.Errorf("Summarize = %q, want unchanged input", got)
	}
}

func TestSummarizeUsesProvider(t *testing.T) {
	texter := &mockText{name: "claude", out: "a fine summary"}
	a := NewWithProviders(nil, nil, []TextProvider{texter}, nil)

	got := a.Summarize(context.Background(), "anything long enough", 500)
	if got != "a fine summary" {
		t.Errorf("Summarize = %q, want provider output", got)
	}
}

// --- Analyze ---

func TestAnalyzeParsesProviderJSON(t *testing.T) {
	texter := &mockText{name: "claude", out: "```json\n" + `{"findings": [{"claim": "X was founded in 2015.", "evidence": ["ev"], "confidence": 0.9, "source_ids": ["s1"]}]}` + "\n```"}
	a := NewWithProviders(nil, nil, []TextProvider{texter}, nil)

	findings, method := a.Analyze(context.Background(), "q", nil)
	if method != "claude" {
		t.Fatalf("method = %q, want claude", method)
	}
	if len(findings) != 1 || findings[0].Claim != "X was founded in 2015." {
		t.Errorf("findings = %+v", findings)
	}
}

func TestAnalyzeLocalFallback(t *testing.T) {
	sources := []types.Source{
		{ID: "s1", Content: "First sentence of source one. Second sentence.", Reliability: 0.7},
		{ID: "s2", Content: "", Reliability: 0.5},
	}
	a := NewWithProviders(nil, nil, nil, nil)

	findings, method := a.Analyze(context.Background(), "q", sources)
	if method != "local" {
		t.Fatalf("method = %q, want local", method)
	}
	if len(findings) != 1 {
		t.Fatalf("findings = %+v, want one (empty source skipped)", findings)
	}
	if findings[0].Claim != "First sentence of source one." {
		t.Errorf("Claim = %q", findings[0].Claim)
	}
	if findings[0].Confidence != 0.7 {
		t.Errorf("Confidence = %v, want source reliability", findings[0].Confidence)
	}
}

func TestAnalyzeBadJSONFallsBack(t *testing.T) {
	texter := &mockText{name: "claude", out: "I could not produce JSON, sorry."}
	sources := []types.Source{{ID: "s1", Content: "A claim here.", Reliability: 0.6}}
	a := NewWithProviders(nil, nil, []TextProvider{texter}, nil)

	findings, method := a.Analyze(context.Background(), "q", sources)
	if method != "local" {
		t.Errorf("method = %q, want local fallback on unparseable output", method)
	}
	if len(findings) != 1 {
		t.Errorf("findings = %+v", findings)
	}
}

func TestParseFindingsClampsConfidence(t *testing.T) {
	findings, err := parseFindings(`{"findings": [{"claim": "c", "confidence": 1.7}, {"claim": "d", "confidence": -0.2}]}`)
	if err != nil {
		t.Fatal(err)
	}
	if findings[0].Confidence != 1 || findings[1].Confidence != 0 {
		t.Errorf("confidences = %v, %v; want clamped to [0,1]", findings[0].Confidence, findings[1].Confidence)
	}
}

// --- GenerateReport ---

func TestGenerateReportLocalTemplate(t *testing.T) {
	a := NewWithProviders(nil, nil, nil, nil)
	sources := []types.Source{{ID: "s1", Title: "Source One", URL: "https://a.com"}}
	findings := []types.Finding{{Claim: "The sky is blue", SourceIDs: []string{"s1"}}}

	md, method := a.GenerateReport(context.Background(), "sky color", findings, sources)
	if method != "local" {
		t.Fatalf("method = %q, want local", method)
	}
	for _, want := range []string{"# Research Report: sky color", "## Key Findings", "## Sources", "The sky is blue [1]", "Source One — https://a.com"} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q:\n%s", want, md)
		}
	}
}

// --- FirstSentence ---

func TestFirstSentence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"One. Two.", "One."},
		{"No terminator here", "No terminator here"},
		{"Line one\nLine two.", "Line one"},
		{"", ""},
		{"  Question? Answer.", "Question?"},
	}
	for _, tt := range tests {
		if got := FirstSentence(tt.in); got != tt.want {
			t.Errorf("FirstSentence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
