// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bibcomplete/internal/bibtex"
	"github.com/pdiddy/bibcomplete/internal/cache"
	"github.com/pdiddy/bibcomplete/internal/complete"
	"github.com/pdiddy/bibcomplete/internal/corrections"
	"github.com/pdiddy/bibcomplete/internal/faillog"
	"github.com/pdiddy/bibcomplete/internal/ledger"
	"github.com/pdiddy/bibcomplete/internal/sources"
	"github.com/pdiddy/bibcomplete/internal/validate"
	"github.com/pdiddy/bibcomplete/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "bibcomplete/0.1"

	correctionsFile = "doi_corrections.yaml"
	failedFile      = "failed_dois.json"
)

var completeCmd = &cobra.Command{
	Use:   "complete [input.bib]",
	Short: "Fill missing fields of BibTeX entries from authoritative sources",
	Long: `Complete resolves each entry's DOI, fetches its record from the most
authoritative available source, validates the candidate against the entry,
and fills in missing fields. Existing field values are never overwritten.

Entries no source can complete pass through unchanged and are listed in
the failure log. With --replace-preprints, arXiv preprint entries whose
published version can be found are replaced with the published record.`,
	Args: cobra.ExactArgs(1),
	RunE: runComplete,
}

func init() {
	completeCmd.Flags().StringP("output", "o", "", "output .bib file (default: overwrite input)")
	completeCmd.Flags().Int("workers", 1, "entries processed concurrently")
	completeCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	completeCmd.Flags().Duration("request-delay", 0, "delay between live source requests (default 500ms)")
	completeCmd.Flags().Duration("search-delay", 0, "delay between search-engine requests (default 2s)")
	completeCmd.Flags().Bool("preflight", false, "check DOI existence against doi.org before fetching")
	completeCmd.Flags().Bool("try-invalid", false, "run the source chain even for known-invalid DOIs")
	completeCmd.Flags().Bool("replace-preprints", false, "replace arXiv preprints with their published versions")
	completeCmd.Flags().Bool("combine", false, "merge the best field values across all sources instead of first match")
	completeCmd.Flags().BoolP("interactive", "i", false, "prompt before accepting uncertain matches")
	completeCmd.Flags().String("cache", filepath.Join(".bibcomplete", "cache.db"), "record cache location (empty disables caching)")
	completeCmd.Flags().Duration("cache-max-age", 30*24*time.Hour, "age after which cached records expire")
	completeCmd.Flags().String("data-dir", ".bibcomplete", "directory for the corrections table and failure log")
	completeCmd.Flags().String("report", "", "write a Markdown change report to this path")

	rootCmd.AddCommand(completeCmd)
}

func runComplete(cmd *cobra.Command, args []string) error {
	input := args[0]
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = input
	}

	entries, err := bibtex.ParseFile(input)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%s contains no entries", input)
	}
	fmt.Fprintf(os.Stdout, "Read %d entries from %s\n", len(entries), input)

	cfg := completeConfig(cmd)
	client := &http.Client{Timeout: cfg.Timeout}

	deps, cleanup, err := completeDeps(cmd, cfg, client)
	if err != nil {
		return err
	}
	defer cleanup()

	completer := complete.New(cfg, deps)
	result, err := completer.CompleteBatch(cmd.Context(), entries)
	if err != nil {
		return err
	}

	bibtex.SortByID(entries)
	if err := bibtex.WriteFile(output, entries); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Wrote %d entries to %s\n", len(entries), output)

	if err := deps.FailLog.Save(); err != nil {
		return err
	}
	if reportPath, _ := cmd.Flags().GetString("report"); reportPath != "" {
		if err := deps.Ledger.WriteMarkdown(reportPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote change report to %s\n", reportPath)
	}
	deps.Ledger.Summarize(os.Stdout)

	if result.HasFailures() {
		return fmt.Errorf("%d entry(s) could not be completed", result.Failed)
	}
	return nil
}

// completeConfig assembles the stage config from flags, with the config
// file supplying defaults for anything not set on the command line.
func completeConfig(cmd *cobra.Command) types.CompleteConfig {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	requestDelay, _ := cmd.Flags().GetDuration("request-delay")
	if requestDelay == 0 {
		requestDelay = viper.GetDuration("complete.request_delay")
	}
	searchDelay, _ := cmd.Flags().GetDuration("search-delay")
	if searchDelay == 0 {
		searchDelay = viper.GetDuration("complete.search_delay")
	}
	workers, _ := cmd.Flags().GetInt("workers")
	preflight, _ := cmd.Flags().GetBool("preflight")
	tryInvalid, _ := cmd.Flags().GetBool("try-invalid")
	replacePreprints, _ := cmd.Flags().GetBool("replace-preprints")
	combine, _ := cmd.Flags().GetBool("combine")
	cachePath, _ := cmd.Flags().GetString("cache")
	cacheMaxAge, _ := cmd.Flags().GetDuration("cache-max-age")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	userAgent := defaultUserAgent
	if mailto := secretDefault("crossref-mailto", viper.GetString("complete.mailto")); mailto != "" {
		// CrossRef routes mailto-identified clients to its polite pool.
		userAgent = fmt.Sprintf("%s (mailto:%s)", defaultUserAgent, mailto)
	}

	return types.CompleteConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: userAgent,
		},
		RequestDelay:          requestDelay,
		SearchDelay:           searchDelay,
		Workers:               workers,
		Preflight:             preflight,
		TryInvalid:            tryInvalid,
		ReplacePreprints:      replacePreprints,
		CombineSources:        combine,
		CachePath:             cachePath,
		CacheMaxAge:           cacheMaxAge,
		DataDir:               dataDir,
		SemanticScholarAPIKey: secretDefault("semantic-scholar-api-key", ""),
	}
}

// completeDeps wires the orchestrator's collaborators. The returned
// cleanup closes the cache store.
func completeDeps(cmd *cobra.Command, cfg types.CompleteConfig, client *http.Client) (complete.Deps, func(), error) {
	deps := complete.Deps{
		Adapters: []sources.Adapter{
			sources.NewIEEE(client, cfg.UserAgent),
			sources.NewACM(client, cfg.UserAgent),
			sources.NewArxiv(client, cfg.UserAgent),
			sources.NewCrossref(client, cfg.UserAgent),
			sources.NewDBLP(client, cfg.UserAgent),
		},
		Ledger:  ledger.New(),
		FailLog: faillog.New(filepath.Join(cfg.DataDir, failedFile)),
		Client:  client,
		Out:     os.Stdout,
	}
	cleanup := func() {}

	table, err := corrections.Load(filepath.Join(cfg.DataDir, correctionsFile))
	if err != nil {
		return deps, cleanup, err
	}
	deps.Corrections = table
	if table.Len() > 0 {
		fmt.Fprintf(os.Stdout, "Loaded %d DOI corrections\n", table.Len())
	}

	if cfg.CachePath != "" {
		store, err := cache.Open(cfg.CachePath, cfg.CacheMaxAge)
		if err != nil {
			return deps, cleanup, err
		}
		deps.Cache = store
		cleanup = func() { store.Close() }
	}

	if cfg.ReplacePreprints {
		deps.Published = sources.NewSemanticScholar(client, cfg.UserAgent, cfg.SemanticScholarAPIKey)
	}
	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		deps.Decide = promptDecision(os.Stdin)
	}
	return deps, cleanup, nil
}

// promptDecision asks the operator whether to accept a candidate the
// validator could not decide on. Anything but an explicit yes declines.
func promptDecision(r *os.File) complete.Decision {
	scanner := bufio.NewScanner(r)
	return func(e *types.Entry, candidate *types.RawRecord, res validate.Result) bool {
		fmt.Fprintf(os.Stdout, "\nUncertain match for %s (%s):\n", e.ID, res.Reason)
		fmt.Fprintf(os.Stdout, "  entry:     %s\n", e.Get("title"))
		fmt.Fprintf(os.Stdout, "  candidate: %s (%s)\n", candidate.Get("title"), candidate.Source)
		fmt.Fprint(os.Stdout, "Accept? [y/N] ")

		if !scanner.Scan() {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		return answer == "y" || answer == "yes"
	}
}
