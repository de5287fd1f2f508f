// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report compiles findings and sources into a structured,
// citation-indexed report. The markdown may come from a generative
// provider or from the adapter's deterministic template; either way the
// report metadata is computed locally and never trusted from provider
// output.
package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-orchestrator/internal/consolidate"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// Generator is the slice of the tool adapter the compiler needs.
type Generator interface {
	GenerateReport(ctx context.Context, query string, findings []types.Finding, sources []types.Source) (markdown string, method string)
}

// Compiler builds the final Report for a job.
type Compiler struct {
	gen Generator
	log *zap.Logger
}

// New constructs a Compiler.
func New(gen Generator, log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{gen: gen, log: log}
}

// Compile produces the report. Citations are indexed 1..n in source order,
// so inline [n] markers in the markdown line up with the citation list.
func (c *Compiler) Compile(ctx context.Context, query string, findings []types.Finding, sources []types.Source) *types.Report {
	md, method := c.gen.GenerateReport(ctx, query, findings, sources)
	parsed := parseMarkdown(md)
	c.log.Info("report compiled",
		zap.String("method", method),
		zap.Int("sections", len(parsed.Sections)))

	title := parsed.Title
	if title == "" {
		title = "Research Report: " + query
	}

	verified := 0
	for _, f := range findings {
		if f.Verified {
			verified++
		}
	}

	return &types.Report{
		ID:        uuid.NewString(),
		Title:     title,
		Summary:   parsed.Summary,
		Sections:  parsed.Sections,
		Citations: buildCitations(sources),
		Metadata: types.ReportMetadata{
			TotalSources:    len(sources),
			VerifiedClaims:  verified,
			ConfidenceScore: consolidate.MeanConfidence(findings),
			GeneratedAt:     time.Now().UTC(),
		},
	}
}

// buildCitations derives the citation list from the job's sources, one per
// source, in order. Every citation context is a source URL by construction.
func buildCitations(sources []types.Source) []types.Citation {
	citations := make([]types.Citation, 0, len(sources))
	for _, s := range sources {
		text := s.Title
		if text == "" {
			text = s.Domain
		}
		citations = append(citations, types.Citation{
			ID:         uuid.NewString(),
			Text:       text,
			Context:    s.URL,
			Confidence: s.Reliability,
		})
	}
	return citations
}
