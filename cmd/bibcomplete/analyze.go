// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bibcomplete/internal/bibtex"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [input.bib]",
	Short: "Report missing fields per entry",
	Long: `Analyze checks each entry for the fields expected of its type (journal
for articles, booktitle for proceedings papers) and reports what is
missing. Run it before and after complete to see what changed.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "output results as JSON")
	analyzeCmd.Flags().Bool("incomplete-only", false, "list only entries with missing fields")

	rootCmd.AddCommand(analyzeCmd)
}

// entryReport is one entry's completeness result, for JSON output.
type entryReport struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Present []string `json:"present"`
	Missing []string `json:"missing,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	entries, err := bibtex.ParseFile(args[0])
	if err != nil {
		return err
	}
	incompleteOnly, _ := cmd.Flags().GetBool("incomplete-only")

	var reports []entryReport
	complete := 0
	for _, e := range entries {
		present, missing := bibtex.Completeness(e)
		if len(missing) == 0 {
			complete++
			if incompleteOnly {
				continue
			}
		}
		reports = append(reports, entryReport{
			ID: e.ID, Type: e.Type, Present: present, Missing: missing,
		})
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	for _, r := range reports {
		if len(r.Missing) == 0 {
			fmt.Fprintf(os.Stdout, "%-30s  complete\n", r.ID)
			continue
		}
		fmt.Fprintf(os.Stdout, "%-30s  missing: %s\n", r.ID, strings.Join(r.Missing, ", "))
	}
	fmt.Fprintf(os.Stdout, "\n%d/%d entries complete\n", complete, len(entries))
	return nil
}
