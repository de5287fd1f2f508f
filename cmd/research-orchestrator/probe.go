// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-orchestrator/internal/gate"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe the reliability of configured or ad hoc sources",
	Long: `Probe runs the source reliability gate against the configured source list
(gate.sources) or ad hoc --source name=url entries, printing per-source
status, discovered page counts, and response times.

With --strict and --min-sources the command exits non-zero when too few
sources are reachable, printing the gate's recommendations.`,
	RunE: runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer flushLogger(log)

	cfg := pipelineConfig()

	sources := cfg.Gate.Sources
	if flagSources, _ := cmd.Flags().GetStringSlice("source"); len(flagSources) > 0 {
		sources, err = parseSourceFlags(flagSources)
		if err != nil {
			return err
		}
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources: configure gate.sources or pass --source name=url")
	}

	strict, _ := cmd.Flags().GetBool("strict")
	minSources, _ := cmd.Flags().GetInt("min-sources")

	g := gate.New(cfg.Gate, log)
	result, err := g.Check(context.Background(), sources, gate.Options{
		StrictMode:    strict,
		MinSources:    minSources,
		MinContentLen: cfg.Extract.MinContentLen,
	})

	var sme *gate.StrictModeError
	if err != nil && !errors.As(err, &sme) {
		return err
	}

	printStatuses(result.Statuses)
	summary := result.Summarize()
	fmt.Printf("\n%d checked, %d reachable, %d unreachable, %d pages found\n",
		summary.SourcesChecked, summary.SourcesReachable,
		summary.SourcesUnreachable, summary.TotalPagesFound)

	if sme != nil {
		fmt.Fprintln(os.Stderr)
		for _, rec := range sme.Recommendations {
			fmt.Fprintf(os.Stderr, "recommendation: %s\n", rec)
		}
		return sme
	}
	return nil
}

func printStatuses(statuses []types.SourceStatus) {
	fmt.Printf("%-20s  %-10s  %-6s  %-8s  %s\n", "Source", "Status", "Pages", "Time", "Error")
	fmt.Println(strings.Repeat("-", 70))
	for _, s := range statuses {
		errText := s.Error
		if len(errText) > 40 {
			errText = errText[:37] + "..."
		}
		fmt.Printf("%-20s  %-10s  %-6d  %-8s  %s\n",
			truncate(s.Name, 20), s.Status, s.PagesFound,
			fmt.Sprintf("%dms", s.ResponseTimeMS), errText)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// parseSourceFlags parses repeated --source name=url entries. A bare URL is
// accepted and used as its own name.
func parseSourceFlags(entries []string) ([]types.ConfiguredSource, error) {
	var sources []types.ConfiguredSource
	for _, entry := range entries {
		name, url, found := strings.Cut(entry, "=")
		if !found {
			name, url = entry, entry
		}
		if url == "" {
			return nil, fmt.Errorf("invalid --source entry %q: want name=url", entry)
		}
		sources = append(sources, types.ConfiguredSource{Name: name, BaseURL: url})
	}
	return sources, nil
}

func init() {
	probeCmd.Flags().StringSlice("source", nil, "ad hoc source as name=url (repeatable, overrides gate.sources)")
	probeCmd.Flags().Bool("strict", false, "exit non-zero when too few sources are reachable")
	probeCmd.Flags().Int("min-sources", 0, "minimum reachable sources for --strict")

	rootCmd.AddCommand(probeCmd)
}
