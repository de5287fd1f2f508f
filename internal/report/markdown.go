// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// citationMarkerPattern matches inline numeric citation markers: [1], [12].
var citationMarkerPattern = regexp.MustCompile(`\[(\d+)\]`)

// parsedReport is the structured form of a markdown report.
type parsedReport struct {
	Title    string
	Summary  string
	Sections []types.ReportSection
}

// parseMarkdown splits a markdown report on heading markers. The first
// "# " line becomes the title; text between the title and the first
// section heading becomes the summary; every subsequent "# " or "## "
// line opens a new section whose body accumulates until the next heading.
// Inline [n] markers are collected per section in order of first
// appearance.
func parseMarkdown(md string) parsedReport {
	var p parsedReport
	var current *types.ReportSection
	var body strings.Builder

	flush := func() {
		if current != nil {
			current.Content = strings.TrimSpace(body.String())
			current.CitationRefs = citationRefs(current.Content)
			p.Sections = append(p.Sections, *current)
		} else {
			p.Summary = strings.TrimSpace(body.String())
		}
		body.Reset()
	}

	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "## "):
			flush()
			current = &types.ReportSection{Title: strings.TrimSpace(trimmed[3:])}
		case strings.HasPrefix(trimmed, "# "):
			if p.Title == "" && current == nil && body.Len() == 0 {
				p.Title = strings.TrimSpace(trimmed[2:])
				continue
			}
			flush()
			current = &types.ReportSection{Title: strings.TrimSpace(trimmed[2:])}
		default:
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	flush()
	return p
}

// citationRefs returns the distinct [n] indices in text, in order of first
// appearance.
func citationRefs(text string) []int {
	var refs []int
	seen := make(map[int]bool)
	for _, m := range citationMarkerPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 || seen[n] {
			continue
		}
		seen[n] = true
		refs = append(refs, n)
	}
	return refs
}
