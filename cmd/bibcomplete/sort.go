package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bibcomplete/internal/bibtex"
)

var sortCmd = &cobra.Command{
	Use:   "sort [input.bib]",
	Short: "Sort a .bib file by citation key",
	Long: `Sort rewrites a .bib file with entries ordered by citation key and
fields ordered alphabetically, so diffs between revisions stay readable.`,
	Args: cobra.ExactArgs(1),
	RunE: runSort,
}

func init() {
	sortCmd.Flags().StringP("output", "o", "", "output .bib file (default: overwrite input)")

	rootCmd.AddCommand(sortCmd)
}

func runSort(cmd *cobra.Command, args []string) error {
	input := args[0]
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = input
	}

	entries, err := bibtex.ParseFile(input)
	if err != nil {
		return err
	}
	bibtex.SortByID(entries)
	if err := bibtex.WriteFile(output, entries); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Sorted %d entries into %s\n", len(entries), output)
	return nil
}
