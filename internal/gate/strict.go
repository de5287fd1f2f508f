// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gate

import (
	"fmt"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// StrictModeError is the typed failure returned when a strict-mode check
// does not meet its minimum-sources threshold. It carries the full
// per-source diagnostics so callers can return an actionable response
// without re-probing.
type StrictModeError struct {
	MinSources      int
	Reachable       []string
	Unreachable     []string
	Statuses        []types.SourceStatus
	Recommendations []string
}

func (e *StrictModeError) Error() string {
	return fmt.Sprintf("strict mode failure: %d of %d required sources available (unreachable: %d)",
		len(e.Reachable), e.MinSources, len(e.Unreachable))
}

// recommendations turns per-source failures into actionable hints.
func recommendations(statuses []types.SourceStatus, minSources int) []string {
	var recs []string
	counts := map[types.ProbeStatus]int{}
	for _, s := range statuses {
		counts[s.Status]++
	}

	if counts[types.ProbeTimeout] > 0 {
		recs = append(recs, fmt.Sprintf("%d source(s) timed out; raise probe_timeout or retry later", counts[types.ProbeTimeout]))
	}
	if counts[types.ProbeBlocked] > 0 {
		recs = append(recs, fmt.Sprintf("%d source(s) have disallowed URLs; only public http(s) targets are probed", counts[types.ProbeBlocked]))
	}
	if counts[types.ProbeNoContent] > 0 {
		recs = append(recs, fmt.Sprintf("%d source(s) returned thin or empty homepages; check the configured base URLs", counts[types.ProbeNoContent]))
	}
	if counts[types.ProbeFailed] > 0 {
		recs = append(recs, fmt.Sprintf("%d source(s) failed to respond; verify the sites are up", counts[types.ProbeFailed]))
	}
	recs = append(recs, fmt.Sprintf("add more sources or lower min_sources below %d", minSources))
	return recs
}
