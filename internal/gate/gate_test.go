// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

func testGate() *Gate {
	return New(types.GateConfig{
		ProbeTimeout:      2 * time.Second,
		MaxPagesPerSource: 10,
		Concurrency:       4,
		RequestsPerSecond: 1000,
		AllowPrivate:      true, // httptest servers bind loopback
	}, nil)
}

func longBody() string {
	return strings.Repeat("content ", 50)
}

// --- ValidateURL ---

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https ok", "https://example.com", false},
		{"http ok", "http://example.com/path", false},
		{"ftp rejected", "ftp://example.com", true},
		{"file rejected", "file:///etc/passwd", true},
		{"localhost rejected", "http://localhost:8080", true},
		{"loopback ip rejected", "http://127.0.0.1/", true},
		{"private ip rejected", "http://10.0.0.5/", true},
		{"rfc1918 rejected", "http://192.168.1.1/", true},
		{"link local rejected", "http://169.254.169.254/latest/meta-data", true},
		{"internal suffix rejected", "https://db.prod.internal", true},
		{"missing host", "https://", true},
		{"public ip ok", "http://93.184.216.34/", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

// --- probes ---

func TestCheckProbesAllSources(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, longBody())
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	g := testGate()
	result, err := g.Check(context.Background(), []types.ConfiguredSource{
		{Name: "good", BaseURL: good.URL},
		{Name: "bad", BaseURL: bad.URL},
		{Name: "blocked", BaseURL: "ftp://nope.example"},
	}, Options{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	byName := map[string]types.SourceStatus{}
	for _, s := range result.Statuses {
		byName[s.Name] = s
	}
	if byName["good"].Status != types.ProbeSuccess {
		t.Errorf("good.Status = %q, want success (%s)", byName["good"].Status, byName["good"].Error)
	}
	if byName["bad"].Status != types.ProbeFailed {
		t.Errorf("bad.Status = %q, want failed", byName["bad"].Status)
	}
	if byName["blocked"].Status != types.ProbeBlocked {
		t.Errorf("blocked.Status = %q, want blocked", byName["blocked"].Status)
	}
	if byName["good"].PagesFound < 1 || byName["good"].PagesExtracted != 1 {
		t.Errorf("good pages = %+v", byName["good"])
	}
}

func TestCheckScheme(t *testing.T) {
	// Blocked URLs must be rejected before any network traffic.
	g := New(types.GateConfig{ProbeTimeout: time.Second, RequestsPerSecond: 1000}, nil)
	result, err := g.Check(context.Background(), []types.ConfiguredSource{
		{Name: "local", BaseURL: "http://127.0.0.1:1/"},
	}, Options{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Statuses[0].Status != types.ProbeBlocked {
		t.Errorf("Status = %q, want blocked", result.Statuses[0].Status)
	}
}

func TestCheckNoContent(t *testing.T) {
	thin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "hi")
	}))
	defer thin.Close()

	g := testGate()
	result, err := g.Check(context.Background(), []types.ConfiguredSource{
		{Name: "thin", BaseURL: thin.URL},
	}, Options{MinContentLen: 100})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Statuses[0].Status != types.ProbeNoContent {
		t.Errorf("Status = %q, want no_content", result.Statuses[0].Status)
	}
}

func TestCheckTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, longBody())
	}))
	defer slow.Close()

	g := New(types.GateConfig{
		ProbeTimeout:      50 * time.Millisecond,
		RequestsPerSecond: 1000,
		AllowPrivate:      true,
	}, nil)
	result, err := g.Check(context.Background(), []types.ConfiguredSource{
		{Name: "slow", BaseURL: slow.URL},
	}, Options{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Statuses[0].Status != types.ProbeTimeout {
		t.Errorf("Status = %q, want timeout (%s)", result.Statuses[0].Status, result.Statuses[0].Error)
	}
}

func TestCheckIsIdempotent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, longBody())
	}))
	defer ts.Close()

	g := testGate()
	sources := []types.ConfiguredSource{{Name: "a", BaseURL: ts.URL}}
	first, err := g.Check(context.Background(), sources, Options{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := g.Check(context.Background(), sources, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if first.Statuses[0].Status != second.Statuses[0].Status {
		t.Errorf("statuses differ across identical checks: %q vs %q",
			first.Statuses[0].Status, second.Statuses[0].Status)
	}
}

// --- strict mode ---

func TestCheckStrictModeFailure(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, longBody())
	}))
	defer good.Close()

	g := testGate()
	_, err := g.Check(context.Background(), []types.ConfiguredSource{
		{Name: "up", BaseURL: good.URL},
		{Name: "down", BaseURL: "ftp://blocked.example"},
	}, Options{StrictMode: true, MinSources: 3})

	var sme *StrictModeError
	if !errors.As(err, &sme) {
		t.Fatalf("err = %v, want *StrictModeError", err)
	}
	if len(sme.Reachable) != 1 || len(sme.Unreachable) != 1 {
		t.Errorf("reachable = %v, unreachable = %v", sme.Reachable, sme.Unreachable)
	}
	if len(sme.Recommendations) == 0 {
		t.Error("want actionable recommendations")
	}
	if len(sme.Statuses) != 2 {
		t.Errorf("want full diagnostic list, got %d entries", len(sme.Statuses))
	}
}

func TestCheckStrictModePasses(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, longBody())
	}))
	defer good.Close()

	g := testGate()
	_, err := g.Check(context.Background(), []types.ConfiguredSource{
		{Name: "up", BaseURL: good.URL},
	}, Options{StrictMode: true, MinSources: 1})
	if err != nil {
		t.Errorf("Check() error = %v, want nil", err)
	}
}

func TestCheckUsable(t *testing.T) {
	sources := []types.Source{
		{Domain: "a.com", Content: strings.Repeat("x", 300)},
		{Domain: "b.com", Content: "thin"},
		{Domain: "c.com", Content: strings.Repeat("y", 300)},
	}

	usable, err := CheckUsable(sources, 2, 8, 200)
	if err != nil {
		t.Errorf("CheckUsable() error = %v, want nil (2 usable >= 2)", err)
	}
	if usable != 2 {
		t.Errorf("usable = %d, want 2", usable)
	}

	_, err = CheckUsable(sources, 3, 8, 200)
	var sme *StrictModeError
	if !errors.As(err, &sme) {
		t.Fatalf("err = %v, want *StrictModeError", err)
	}
	if len(sme.Statuses) != len(sources) {
		t.Fatalf("Statuses = %d entries, want one per source", len(sme.Statuses))
	}
	if sme.Statuses[1].Status != types.ProbeNoContent {
		t.Errorf("thin source status = %q, want %q", sme.Statuses[1].Status, types.ProbeNoContent)
	}
	if len(sme.Reachable) != 2 || len(sme.Unreachable) != 1 {
		t.Errorf("reachable/unreachable = %v / %v", sme.Reachable, sme.Unreachable)
	}

	// The threshold is min(minSources, limit): limit 2 caps the requirement.
	if _, err := CheckUsable(sources, 5, 2, 200); err != nil {
		t.Errorf("CheckUsable() error = %v, want nil with limit cap", err)
	}
}

// --- sitemap discovery ---

func TestDiscoverPagesFromRobots(t *testing.T) {
	mux := http.NewServeMux()
	var ts *httptest.Server
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nSitemap: %s/custom-map.xml\n", ts.URL)
	})
	mux.HandleFunc("/custom-map.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?><urlset><url><loc>%s/a</loc></url><url><loc>%s/b</loc></url></urlset>`, ts.URL, ts.URL)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, longBody())
	})
	ts = httptest.NewServer(mux)
	defer ts.Close()

	g := testGate()
	pages := g.discoverPages(context.Background(), ts.URL)
	if len(pages) != 2 {
		t.Fatalf("pages = %v, want 2 from sitemap", pages)
	}
}

func TestDiscoverPagesConventionalSitemap(t *testing.T) {
	mux := http.NewServeMux()
	var ts *httptest.Server
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<urlset><url><loc>%s/only</loc></url></urlset>`, ts.URL)
	})
	ts = httptest.NewServer(mux)
	defer ts.Close()

	g := testGate()
	pages := g.discoverPages(context.Background(), ts.URL)
	if len(pages) != 1 || !strings.HasSuffix(pages[0], "/only") {
		t.Errorf("pages = %v", pages)
	}
}

func TestDiscoverPagesFallsBackToHomepage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	g := testGate()
	pages := g.discoverPages(context.Background(), ts.URL)
	if len(pages) != 1 || pages[0] != ts.URL {
		t.Errorf("pages = %v, want just the homepage", pages)
	}
}

func TestDiscoverPagesSitemapIndex(t *testing.T) {
	mux := http.NewServeMux()
	var ts *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<sitemapindex><sitemap><loc>%s/child.xml</loc></sitemap></sitemapindex>`, ts.URL)
	})
	mux.HandleFunc("/child.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<urlset><url><loc>%s/page1</loc></url></urlset>`, ts.URL)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	ts = httptest.NewServer(mux)
	defer ts.Close()

	g := testGate()
	pages := g.discoverPages(context.Background(), ts.URL)
	if len(pages) != 1 || !strings.HasSuffix(pages[0], "/page1") {
		t.Errorf("pages = %v, want the child sitemap page", pages)
	}
}
