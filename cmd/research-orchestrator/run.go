// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-orchestrator/internal/orchestrate"
	"github.com/pdiddy/research-orchestrator/internal/store"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [query...]",
	Short: "Run a one-shot research job",
	Long: `Run executes a research job for the query and prints the compiled report.
Progress is reported to stderr as the job moves through its stages.

Strict mode (--strict with --min-sources) fails the job up front when too
few of the configured sources are reachable, instead of returning a
degraded report.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func runResearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer flushLogger(log)

	cfg := pipelineConfig()
	if n := len([]rune(query)); cfg.Orchestrator.MaxQueryLen > 0 && n > cfg.Orchestrator.MaxQueryLen {
		return fmt.Errorf("query is %d characters; the limit is %d", n, cfg.Orchestrator.MaxQueryLen)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	strict, _ := cmd.Flags().GetBool("strict")
	minSources, _ := cmd.Flags().GetInt("min-sources")

	orch, _, _ := buildPipeline(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := orch.Launch(ctx, query, orchestrate.Options{
		Limit:      limit,
		StrictMode: strict,
		MinSources: minSources,
	})

	var final *types.ResearchJob
	for snap := range run.Events() {
		fmt.Fprintf(os.Stderr, "%-11s %3d%%\n", snap.Status, snap.Progress)
		final = snap
	}
	if final == nil {
		return fmt.Errorf("job produced no result")
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		jobs, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer jobs.Close()
		if err := jobs.Put(context.Background(), final); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved job %s\n", final.ID)
	}

	format, _ := cmd.Flags().GetString("output")
	if err := formatJob(final, format); err != nil {
		return err
	}

	if final.Status == types.StatusFailed {
		if sme := run.StrictFailure(); sme != nil {
			for _, rec := range sme.Recommendations {
				fmt.Fprintf(os.Stderr, "recommendation: %s\n", rec)
			}
		}
		return fmt.Errorf("job failed: %s", final.Error)
	}
	return nil
}

func formatJob(job *types.ResearchJob, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(job)
	case "text", "":
		printReport(job)
		return nil
	default:
		return fmt.Errorf("unsupported output format %q: use text, json, or yaml", format)
	}
}

func printReport(job *types.ResearchJob) {
	if job.Report == nil {
		fmt.Printf("Job %s: %s\n", job.ID, job.Status)
		if job.Error != "" {
			fmt.Printf("Error: %s\n", job.Error)
		}
		return
	}
	r := job.Report

	fmt.Printf("# %s\n\n", r.Title)
	if r.Summary != "" {
		fmt.Printf("%s\n\n", r.Summary)
	}
	for _, sec := range r.Sections {
		fmt.Printf("## %s\n\n%s\n\n", sec.Title, sec.Content)
	}
	if len(r.Citations) > 0 {
		fmt.Println("## Sources")
		fmt.Println()
		for i, c := range r.Citations {
			fmt.Printf("[%d] %s — %s\n", i+1, c.Text, c.Context)
		}
		fmt.Println()
	}
	fmt.Printf("%d sources, %d verified claims, confidence %.2f\n",
		r.Metadata.TotalSources, r.Metadata.VerifiedClaims, r.Metadata.ConfidenceScore)
}

func init() {
	runCmd.Flags().Int("limit", 0, "maximum sources to extract (0 = config default, clamped to 1-20)")
	runCmd.Flags().Bool("strict", false, "fail the job when too few sources are reachable or useful")
	runCmd.Flags().Int("min-sources", 0, "minimum reachable/useful sources for --strict")
	runCmd.Flags().String("output", "text", "output format: text, json, or yaml")
	runCmd.Flags().Bool("save", false, "persist the finished job to the job store")

	rootCmd.AddCommand(runCmd)
}
