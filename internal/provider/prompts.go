// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// summarizePromptTmpl asks the model for a plain-text summary bounded by a
// character limit.
var summarizePromptTmpl = template.Must(template.New("summarize").Parse(`Summarize the following text in at most {{.MaxLen}} characters. Respond with the summary only, no preamble.

Text:
{{.Text}}
`))

// analyzePromptTmpl asks the model for claim tuples across sources. The
// response contract mirrors RawFinding; consolidation re-verifies every
// claim locally, so the model's own confidence is advisory.
var analyzePromptTmpl = template.Must(template.New("analyze").Parse(`You are a research analysis system. Given a research question and a set of extracted web sources, identify the key factual claims that answer the question.

For each claim, report:
- claim: one factual assertion, stated neutrally
- evidence: verbatim supporting passages from the sources
- contradictions: passages from other sources that conflict with the claim, if any
- confidence: a float between 0.0 and 1.0
- source_ids: the ids of the sources the claim is drawn from

Respond with a JSON object containing a "findings" array. Do not include any text outside the JSON object.

Example response:
{"findings": [{"claim": "Example Corp was founded in 2015.", "evidence": ["Founded in 2015, Example Corp ..."], "contradictions": [], "confidence": 0.9, "source_ids": ["src-1", "src-3"]}]}

Research question: {{.Query}}

Sources:
{{range .Sources}}---
id: {{.ID}}
url: {{.URL}}
title: {{.Title}}
content: {{.Content}}
{{end}}`))

// reportPromptTmpl asks the model for a citation-indexed markdown report.
// The heading and [n] citation grammar here is what the compiler parses.
var reportPromptTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`Write a research report in markdown answering the question below. Structure it as a single "# " title line, an introductory summary paragraph, and "## " sections. Cite sources inline with bracketed indices like [1], [2] referring to the numbered source list. Do not add a sources section; it is appended separately.

Question: {{.Query}}

Verified findings:
{{range .Findings}}- {{.Claim}} (confidence {{printf "%.2f" .Confidence}})
{{end}}
Sources:
{{range $i, $s := .Sources}}[{{inc $i}}] {{$s.Title}} — {{$s.URL}}
{{end}}`))

func renderSummarizePrompt(text string, maxLen int) (string, error) {
	var buf bytes.Buffer
	err := summarizePromptTmpl.Execute(&buf, struct {
		Text   string
		MaxLen int
	}{text, maxLen})
	return buf.String(), err
}

func renderAnalyzePrompt(query string, sources []types.Source) (string, error) {
	var buf bytes.Buffer
	err := analyzePromptTmpl.Execute(&buf, struct {
		Query   string
		Sources []types.Source
	}{query, sources})
	return buf.String(), err
}

func renderReportPrompt(query string, findings []types.Finding, sources []types.Source) (string, error) {
	var buf bytes.Buffer
	err := reportPromptTmpl.Execute(&buf, struct {
		Query    string
		Findings []types.Finding
		Sources  []types.Source
	}{query, findings, sources})
	return buf.String(), err
}
