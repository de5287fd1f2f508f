// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research-orchestrator
// pipeline: the job state machine artifacts (ResearchJob, Source, Finding,
// Report), the reliability-gate artifacts (SourceStatus), and the query
// analysis output.
//
// See docs/ARCHITECTURE.md § Data Structures.
package types

import "time"

// JobStatus is the state of a research job. States advance in strict forward
// order; the only side transition is to StatusFailed from any non-terminal
// state.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusPlanning   JobStatus = "planning"
	StatusSearching  JobStatus = "searching"
	StatusExtracting JobStatus = "extracting"
	StatusAnalyzing  JobStatus = "analyzing"
	StatusVerifying  JobStatus = "verifying"
	StatusCompiling  JobStatus = "compiling"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state. A terminal job
// is never mutated again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ResearchJob is a single request-scoped unit of research work. It is owned
// exclusively by the orchestrator run that created it; consumers only ever
// see snapshots.
type ResearchJob struct {
	ID        string        `json:"id" yaml:"id"`
	Query     string        `json:"query" yaml:"query"`
	Status    JobStatus     `json:"status" yaml:"status"`
	Progress  int           `json:"progress" yaml:"progress"`
	Sources   []Source      `json:"sources" yaml:"sources"`
	Findings  []Finding     `json:"findings" yaml:"findings"`
	Report    *Report       `json:"report,omitempty" yaml:"report,omitempty"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" yaml:"updated_at"`
}

// Clone returns a deep copy of the job. The orchestrator broadcasts clones
// so that consumers never observe a job mid-mutation.
func (j *ResearchJob) Clone() *ResearchJob {
	c := *j
	c.Sources = make([]Source, len(j.Sources))
	copy(c.Sources, j.Sources)
	for i := range c.Sources {
		c.Sources[i].Citations = append([]Citation(nil), j.Sources[i].Citations...)
	}
	c.Findings = make([]Finding, len(j.Findings))
	copy(c.Findings, j.Findings)
	for i := range c.Findings {
		c.Findings[i].Evidence = append([]string(nil), j.Findings[i].Evidence...)
		c.Findings[i].SourceIDs = append([]string(nil), j.Findings[i].SourceIDs...)
		c.Findings[i].Contradictions = append([]string(nil), j.Findings[i].Contradictions...)
	}
	if j.Report != nil {
		r := *j.Report
		r.Sections = append([]ReportSection(nil), j.Report.Sections...)
		r.Citations = append([]Citation(nil), j.Report.Citations...)
		c.Report = &r
	}
	return &c
}

// Source is one extracted web source. Immutable after creation except for
// citation back-references added during consolidation.
type Source struct {
	ID          string    `json:"id" yaml:"id"`
	URL         string    `json:"url" yaml:"url"`
	Domain      string    `json:"domain" yaml:"domain"`
	Title       string    `json:"title" yaml:"title"`
	Content     string    `json:"content" yaml:"content"`
	ExtractedAt time.Time `json:"extracted_at" yaml:"extracted_at"`

	// Reliability is a heuristic score between 0.0 and 1.0 combining the
	// search relevance and the amount of usable content extracted.
	Reliability float64 `json:"reliability" yaml:"reliability"`

	Citations []Citation `json:"citations,omitempty" yaml:"citations,omitempty"`
}

// Citation links a piece of report or finding text back to a source URL.
type Citation struct {
	ID         string  `json:"id" yaml:"id"`
	Text       string  `json:"text" yaml:"text"`
	Context    string  `json:"context" yaml:"context"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Finding is a single claim extracted during consolidation, with supporting
// evidence and the cross-reference verification outcome.
type Finding struct {
	ID             string   `json:"id" yaml:"id"`
	Claim          string   `json:"claim" yaml:"claim"`
	Evidence       []string `json:"evidence" yaml:"evidence"`
	Confidence     float64  `json:"confidence" yaml:"confidence"`
	SourceIDs      []string `json:"source_ids" yaml:"source_ids"`
	Contradictions []string `json:"contradictions,omitempty" yaml:"contradictions,omitempty"`
	Verified       bool     `json:"verified" yaml:"verified"`
}

// Report is the compiled, citation-indexed output of a completed job.
// Created once at job completion; immutable.
type Report struct {
	ID       string          `json:"id" yaml:"id"`
	Title    string          `json:"title" yaml:"title"`
	Summary  string          `json:"summary" yaml:"summary"`
	Sections []ReportSection `json:"sections" yaml:"sections"`
	Citations []Citation     `json:"citations" yaml:"citations"`
	Metadata ReportMetadata  `json:"metadata" yaml:"metadata"`
}

// ReportSection is one heading-delimited section of a report.
type ReportSection struct {
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`

	// CitationRefs lists the inline [n] citation indices found in Content,
	// in order of first appearance.
	CitationRefs []int `json:"citation_refs,omitempty" yaml:"citation_refs,omitempty"`
}

// ReportMetadata summarizes the evidence behind a report. ConfidenceScore
// is always computed locally as the mean of finding confidences, never
// taken from a provider response.
type ReportMetadata struct {
	TotalSources    int       `json:"total_sources" yaml:"total_sources"`
	VerifiedClaims  int       `json:"verified_claims" yaml:"verified_claims"`
	ConfidenceScore float64   `json:"confidence_score" yaml:"confidence_score"`
	GeneratedAt     time.Time `json:"generated_at" yaml:"generated_at"`
}

// ProbeStatus is the outcome of a reliability-gate probe for one source.
type ProbeStatus string

const (
	ProbeSuccess   ProbeStatus = "success"
	ProbeFailed    ProbeStatus = "failed"
	ProbeTimeout   ProbeStatus = "timeout"
	ProbeBlocked   ProbeStatus = "blocked"
	ProbeNoContent ProbeStatus = "no_content"
)

// SourceStatus is the per-source diagnostic record produced by the
// reliability gate.
type SourceStatus struct {
	Name           string      `json:"name" yaml:"name"`
	BaseURL        string      `json:"base_url" yaml:"base_url"`
	Status         ProbeStatus `json:"status" yaml:"status"`
	PagesFound     int         `json:"pages_found" yaml:"pages_found"`
	PagesExtracted int         `json:"pages_extracted" yaml:"pages_extracted"`
	Error          string      `json:"error,omitempty" yaml:"error,omitempty"`
	ResponseTimeMS int64       `json:"response_time_ms,omitempty" yaml:"response_time_ms,omitempty"`
}

// SearchItem is one candidate result returned by a search provider.
type SearchItem struct {
	Title   string  `json:"title" yaml:"title"`
	URL     string  `json:"url" yaml:"url"`
	Snippet string  `json:"snippet" yaml:"snippet"`
	Source  string  `json:"source" yaml:"source"`
	Score   float64 `json:"score" yaml:"score"`
}
