// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package consolidate cross-references extracted claims against source text
// to compute verification status and aggregate confidence.
//
// Claim extraction may come from a generative provider, but verification
// never does: a deterministic corroboration pass runs over the source text
// regardless of which path produced the claims, so "verified" never depends
// solely on what a model asserts about itself.
package consolidate

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-orchestrator/internal/provider"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// corroborationWords is how many leading claim words must appear verbatim
// in a source for it to count as corroborating. Claims shorter than this
// are never substring-corroborated; they can only verify through high
// confidence.
const corroborationWords = 3

// highConfidence is the confidence threshold above which a claim verifies
// without independent corroboration.
const highConfidence = 0.8

// Analyzer is the slice of the tool adapter the engine needs.
type Analyzer interface {
	Analyze(ctx context.Context, query string, sources []types.Source) ([]provider.RawFinding, string)
}

// Engine turns raw extracted text into scored, cross-referenced findings.
type Engine struct {
	analyzer Analyzer
	log      *zap.Logger
}

// New constructs an Engine.
func New(analyzer Analyzer, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{analyzer: analyzer, log: log}
}

// Consolidate extracts claim tuples for the query and assigns identities.
// The returned findings are unverified; run Verify afterwards.
func (e *Engine) Consolidate(ctx context.Context, query string, sources []types.Source) []types.Finding {
	raw, method := e.analyzer.Analyze(ctx, query, sources)
	e.log.Info("consolidation complete",
		zap.String("method", method),
		zap.Int("findings", len(raw)))

	findings := make([]types.Finding, 0, len(raw))
	for _, rf := range raw {
		conf := rf.Confidence
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		findings = append(findings, types.Finding{
			ID:             uuid.NewString(),
			Claim:          strings.TrimSpace(rf.Claim),
			Evidence:       rf.Evidence,
			Confidence:     conf,
			SourceIDs:      dedupStrings(rf.SourceIDs),
			Contradictions: rf.Contradictions,
		})
	}
	return findings
}

// Verify runs the deterministic corroboration pass: a finding is verified
// when at least two independent sources contain its leading words, or when
// its confidence exceeds the high-confidence threshold. Corroborating
// sources are merged into SourceIDs, and each corroborated claim leaves a
// citation back-reference on its sources.
func (e *Engine) Verify(findings []types.Finding, sources []types.Source) ([]types.Finding, []types.Source) {
	for i := range findings {
		f := &findings[i]

		corroborating := corroboratingSources(f.Claim, sources)
		for _, srcID := range corroborating {
			f.SourceIDs = appendUnique(f.SourceIDs, srcID)
		}
		f.Verified = len(corroborating) >= 2 || f.Confidence > highConfidence

		for j := range sources {
			if containsString(corroborating, sources[j].ID) {
				sources[j].Citations = append(sources[j].Citations, types.Citation{
					ID:         uuid.NewString(),
					Text:       provider.LocalSummarize(f.Claim, 120),
					Context:    sources[j].URL,
					Confidence: f.Confidence,
				})
			}
		}
	}
	return findings, sources
}

// MeanConfidence returns the arithmetic mean of finding confidences, 0 when
// there are none. Report metadata always uses this local computation.
func MeanConfidence(findings []types.Finding) float64 {
	if len(findings) == 0 {
		return 0
	}
	var sum float64
	for _, f := range findings {
		sum += f.Confidence
	}
	return sum / float64(len(findings))
}

// corroboratingSources returns the IDs of sources whose content contains
// the first corroborationWords words of the claim, case-insensitively.
// Claims with fewer words never corroborate.
func corroboratingSources(claim string, sources []types.Source) []string {
	words := strings.Fields(strings.ToLower(claim))
	if len(words) < corroborationWords {
		return nil
	}
	prefix := strings.Join(words[:corroborationWords], " ")
	prefix = strings.Trim(prefix, ".,;:!?\"'")

	var ids []string
	for _, s := range sources {
		if strings.Contains(strings.ToLower(s.Content), prefix) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func appendUnique(in []string, s string) []string {
	for _, v := range in {
		if v == s {
			return in
		}
	}
	return append(in, s)
}

func containsString(in []string, s string) bool {
	for _, v := range in {
		if v == s {
			return true
		}
	}
	return false
}
