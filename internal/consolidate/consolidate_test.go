// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package consolidate

import (
	"context"
	"math"
	"testing"

	"github.com/pdiddy/research-orchestrator/internal/provider"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

type stubAnalyzer struct {
	raw    []provider.RawFinding
	method string
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ string, _ []types.Source) ([]provider.RawFinding, string) {
	return s.raw, s.method
}

func TestConsolidateAssignsIdentities(t *testing.T) {
	e := New(&stubAnalyzer{
		raw: []provider.RawFinding{
			{Claim: "  Acme ships widgets.  ", Confidence: 0.5, SourceIDs: []string{"s1", "s1", ""}},
		},
		method: "claude",
	}, nil)

	findings := e.Consolidate(context.Background(), "q", nil)
	if len(findings) != 1 {
		t.Fatalf("findings = %+v", findings)
	}
	f := findings[0]
	if f.ID == "" {
		t.Error("finding missing ID")
	}
	if f.Claim != "Acme ships widgets." {
		t.Errorf("Claim = %q, want trimmed", f.Claim)
	}
	if len(f.SourceIDs) != 1 {
		t.Errorf("SourceIDs = %v, want deduplicated", f.SourceIDs)
	}
	if f.Verified {
		t.Error("Consolidate must not verify; that is Verify's job")
	}
}

func TestVerifyTwoSourceCorroboration(t *testing.T) {
	sources := []types.Source{
		{ID: "s1", URL: "https://a.com", Content: "Acme ships widgets worldwide since 2020."},
		{ID: "s2", URL: "https://b.com", Content: "Independent report: acme ships widgets to Europe."},
		{ID: "s3", URL: "https://c.com", Content: "Unrelated text."},
	}
	findings := []types.Finding{
		{ID: "f1", Claim: "Acme ships widgets", Confidence: 0.5},
	}

	e := New(&stubAnalyzer{}, nil)
	verified, updated := e.Verify(findings, sources)

	if !verified[0].Verified {
		t.Error("finding corroborated by 2 sources must verify")
	}
	if len(verified[0].SourceIDs) != 2 {
		t.Errorf("SourceIDs = %v, want both corroborating sources", verified[0].SourceIDs)
	}
	if len(updated[0].Citations) != 1 || len(updated[1].Citations) != 1 {
		t.Error("corroborating sources must receive citation back-references")
	}
	if len(updated[2].Citations) != 0 {
		t.Error("non-corroborating source must not receive citations")
	}
	if updated[0].Citations[0].Context != "https://a.com" {
		t.Errorf("citation context = %q, want the source URL", updated[0].Citations[0].Context)
	}
}

func TestVerifyHighConfidenceWithoutCorroboration(t *testing.T) {
	findings := []types.Finding{
		{ID: "f1", Claim: "Completely novel claim text", Confidence: 0.9, SourceIDs: []string{"s1"}},
	}
	e := New(&stubAnalyzer{}, nil)
	verified, _ := e.Verify(findings, nil)
	if !verified[0].Verified {
		t.Error("confidence > 0.8 must verify without corroboration")
	}
}

func TestVerifySingleCorroborationLowConfidenceStaysUnverified(t *testing.T) {
	sources := []types.Source{
		{ID: "s1", Content: "The moon orbits earth every month."},
	}
	findings := []types.Finding{
		{ID: "f1", Claim: "The moon orbits", Confidence: 0.4},
	}
	e := New(&stubAnalyzer{}, nil)
	verified, _ := e.Verify(findings, sources)
	if verified[0].Verified {
		t.Error("one corroborating source with low confidence must not verify")
	}
}

// Claims shorter than the corroboration window rely on confidence alone.
func TestVerifyShortClaimSkipsSubstringMatch(t *testing.T) {
	sources := []types.Source{
		{ID: "s1", Content: "yes yes yes"},
		{ID: "s2", Content: "yes yes yes"},
	}
	findings := []types.Finding{
		{ID: "f1", Claim: "yes yes", Confidence: 0.5},
	}
	e := New(&stubAnalyzer{}, nil)
	verified, _ := e.Verify(findings, sources)
	if verified[0].Verified {
		t.Error("two-word claim must not verify via substring corroboration")
	}
}

func TestVerifyCaseInsensitive(t *testing.T) {
	sources := []types.Source{
		{ID: "s1", Content: "GO ROUTINES ARE CHEAP and plentiful."},
		{ID: "s2", Content: "go routines are cheap, observed independently."},
	}
	findings := []types.Finding{
		{ID: "f1", Claim: "Go Routines Are cheap", Confidence: 0.1},
	}
	e := New(&stubAnalyzer{}, nil)
	verified, _ := e.Verify(findings, sources)
	if !verified[0].Verified {
		t.Error("corroboration must be case-insensitive")
	}
}

func TestMeanConfidence(t *testing.T) {
	tests := []struct {
		name     string
		findings []types.Finding
		want     float64
	}{
		{"empty", nil, 0},
		{"single", []types.Finding{{Confidence: 0.6}}, 0.6},
		{"mean", []types.Finding{{Confidence: 0.4}, {Confidence: 0.8}}, 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MeanConfidence(tt.findings)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MeanConfidence = %v, want %v", got, tt.want)
			}
		})
	}
}
