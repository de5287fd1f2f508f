// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-orchestrator/internal/classify"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [query...]",
	Short: "Show how a query would be routed",
	Long: `Classify runs the query-intent classifier and prints the detected intent,
confidence, extracted entities, and suggested agent chain without starting
a research job. Useful for inspecting routing decisions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	analysis := classify.Analyze(strings.Join(args, " "))

	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(analysis)
	case "text", "":
		fmt.Printf("Intent:     %s (%.2f)\n", analysis.Intent, analysis.Confidence)
		if len(analysis.ExtractedURLs) > 0 {
			fmt.Printf("URLs:       %s\n", strings.Join(analysis.ExtractedURLs, ", "))
		}
		if len(analysis.ExtractedNames) > 0 {
			fmt.Printf("Names:      %s\n", strings.Join(analysis.ExtractedNames, ", "))
		}
		if len(analysis.ExtractedCompanies) > 0 {
			fmt.Printf("Companies:  %s\n", strings.Join(analysis.ExtractedCompanies, ", "))
		}
		if len(analysis.Keywords) > 0 {
			fmt.Printf("Keywords:   %s\n", strings.Join(analysis.Keywords, ", "))
		}
		if len(analysis.SuggestedAgents) > 0 {
			fmt.Printf("Agents:     %s\n", strings.Join(analysis.SuggestedAgents, " -> "))
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q: use text, json, or yaml", format)
	}
}

func init() {
	classifyCmd.Flags().String("output", "text", "output format: text, json, or yaml")

	rootCmd.AddCommand(classifyCmd)
}
