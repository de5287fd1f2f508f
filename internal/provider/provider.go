// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider implements the tool adapter: a uniform interface over
// external search, extraction, and generative AI capabilities. Each
// capability is backed by an ordered fallback ladder of providers ending in
// a deterministic local implementation, so callers get a best-effort result
// or a typed failure, never an unbounded wait.
//
// See docs/ARCHITECTURE.md § Tool Adapter.
package provider

import (
	"context"
	"errors"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// ErrAllProvidersFailed is returned when every rung of a ladder, including
// the local fallback, failed.
var ErrAllProvidersFailed = errors.New("all providers failed")

// SearchProvider returns candidate web results for a free-text query.
// Implementations follow the Strategy pattern used by the search backends.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]types.SearchItem, error)
}

// ExtractProvider fetches a URL and returns its readable text content.
type ExtractProvider interface {
	Name() string
	Extract(ctx context.Context, url string) (Extraction, error)
}

// Extraction is the result of extracting one page.
type Extraction struct {
	Title    string
	Content  string
	Metadata map[string]string
}

// TextProvider answers a free-form prompt with text. Summarization,
// analysis, and report generation all ride on this single contract.
type TextProvider interface {
	Name() string
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// RawFinding is one claim tuple as emitted by the analyze capability,
// before consolidation assigns identities and runs verification.
type RawFinding struct {
	Claim          string   `json:"claim"`
	Evidence       []string `json:"evidence"`
	Contradictions []string `json:"contradictions"`
	Confidence     float64  `json:"confidence"`
	SourceIDs      []string `json:"source_ids"`
}
