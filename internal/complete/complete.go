// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package complete drives the per-entry completion state machine: resolve
// an identifier, walk the source adapter chain in priority order, validate
// each candidate, and merge the first accepted record into the entry.
package complete

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/bibcomplete/internal/cache"
	"github.com/pdiddy/bibcomplete/internal/corrections"
	"github.com/pdiddy/bibcomplete/internal/faillog"
	"github.com/pdiddy/bibcomplete/internal/ledger"
	"github.com/pdiddy/bibcomplete/internal/merge"
	"github.com/pdiddy/bibcomplete/internal/resolve"
	"github.com/pdiddy/bibcomplete/internal/sources"
	"github.com/pdiddy/bibcomplete/internal/validate"
	"github.com/pdiddy/bibcomplete/pkg/types"
)

// ErrExhausted is returned when every eligible adapter was tried and
// none produced an accepted candidate. The entry passes through
// unchanged; the failure is logged, never fatal to the batch.
var ErrExhausted = errors.New("fallback chain exhausted")

// Decision resolves an Uncertain verdict. Return true to accept the
// candidate. The default implementation always declines, collapsing
// Uncertain to Reject in non-interactive runs.
type Decision func(e *types.Entry, candidate *types.RawRecord, res validate.Result) bool

// PublishedLookup finds the published version of an arXiv preprint.
// Satisfied by sources.SemanticScholar.
type PublishedLookup interface {
	LookupPublished(ctx context.Context, arxivID string) (*sources.Published, error)
}

// Deps holds the collaborators a Completer drives. Adapters and Ledger
// are required; everything else degrades gracefully when nil.
type Deps struct {
	Adapters    []sources.Adapter
	Ledger      *ledger.Ledger
	Cache       *cache.Store
	Corrections *corrections.Table
	FailLog     *faillog.Log
	Published   PublishedLookup
	Decide      Decision
	Client      *http.Client
	Out         io.Writer
}

// Completer runs the completion state machine over entries.
type Completer struct {
	cfg  types.CompleteConfig
	deps Deps

	// Live fetches are spaced out per source class: search engines
	// tolerate far less traffic than registry APIs.
	fetchLimiter  *rate.Limiter
	searchLimiter *rate.Limiter
}

// New creates a Completer. Zero config durations fall back to defaults
// (500ms between live fetches, 200ms after cache hits, 2s between
// search queries).
func New(cfg types.CompleteConfig, deps Deps) *Completer {
	if cfg.RequestDelay <= 0 {
		cfg.RequestDelay = 500 * time.Millisecond
	}
	if cfg.CachedDelay <= 0 {
		cfg.CachedDelay = 200 * time.Millisecond
	}
	if cfg.SearchDelay <= 0 {
		cfg.SearchDelay = 2 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if deps.Decide != nil {
		// One operator, one prompt: concurrent workers would interleave
		// reads on the decision callback's input.
		cfg.Workers = 1
	}
	if deps.Client == nil {
		deps.Client = http.DefaultClient
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	return &Completer{
		cfg:           cfg,
		deps:          deps,
		fetchLimiter:  rate.NewLimiter(rate.Every(cfg.RequestDelay), 1),
		searchLimiter: rate.NewLimiter(rate.Every(cfg.SearchDelay), 1),
	}
}

// CompleteEntry runs the state machine for one entry. On success the
// entry is modified in place and the ledger holds the change events.
// The returned diagnostics list one line per failed or rejected adapter
// attempt. ErrExhausted means the entry passed through unchanged.
func (c *Completer) CompleteEntry(ctx context.Context, e *types.Entry) ([]types.Diagnostic, error) {
	if c.cfg.ReplacePreprints && IsPreprint(e) {
		if err := c.replacePreprint(ctx, e); err != nil && !errors.Is(err, sources.ErrEmpty) {
			fmt.Fprintf(c.deps.Out, "  %s: published-version lookup failed: %v\n", e.ID, err)
		}
	}

	id, err := resolve.FromEntry(e)
	switch {
	case err == nil:
	case errors.Is(err, resolve.ErrNotFound), errors.Is(err, resolve.ErrMalformed):
		// No identifier. A titled entry can still try the search
		// engines; anything else is exhausted immediately.
		if !e.Has("title") {
			diag := types.Diagnostic{Reason: fmt.Sprintf("no identifier: %v", err)}
			c.logFailure(e, "", types.PublisherUnknown, []types.Diagnostic{diag})
			return []types.Diagnostic{diag}, ErrExhausted
		}
		return c.runChain(ctx, e, resolve.Identifier{Publisher: types.PublisherUnknown}, true)
	default:
		return nil, err
	}

	// The corrections table overrides the resolved identifier before
	// anything is spent on network calls.
	if c.deps.Corrections != nil {
		if corr, ok := c.deps.Corrections.Lookup(id.DOI); ok {
			switch corr.Status {
			case corrections.StatusCorrected:
				fixed, err := resolve.Parse(corr.CorrectedDOI)
				if err != nil {
					return nil, fmt.Errorf("corrections table has malformed replacement for %s: %w", id.DOI, err)
				}
				fmt.Fprintf(c.deps.Out, "  %s: DOI corrected %s -> %s (%s)\n", e.ID, id.DOI, fixed.DOI, corr.Reason)
				id = fixed
			case corrections.StatusInvalid, corrections.StatusPending:
				if !c.cfg.TryInvalid {
					diag := types.Diagnostic{
						Reason: fmt.Sprintf("DOI marked %s in corrections table: %s", corr.Status, corr.Reason),
					}
					c.logFailure(e, id.DOI, id.Publisher, []types.Diagnostic{diag})
					return []types.Diagnostic{diag}, ErrExhausted
				}
			}
		}
	}

	if c.cfg.Preflight {
		status, err := c.preflight(ctx, id.DOI)
		if err == nil && status == http.StatusNotFound && !c.cfg.TryInvalid {
			diag := types.Diagnostic{Reason: "DOI does not resolve", StatusCode: status}
			c.logFailure(e, id.DOI, id.Publisher, []types.Diagnostic{diag})
			return []types.Diagnostic{diag}, ErrExhausted
		}
	}

	return c.runChain(ctx, e, id, false)
}

// runChain walks the eligible adapters in priority order. searchOnly
// restricts the chain to search engines for entries with no identifier.
func (c *Completer) runChain(ctx context.Context, e *types.Entry, id resolve.Identifier, searchOnly bool) ([]types.Diagnostic, error) {
	chain := sources.Chain(c.deps.Adapters, id.Publisher)
	if searchOnly {
		var search []sources.Adapter
		for _, a := range chain {
			if a.Kind() == sources.KindSearch {
				search = append(search, a)
			}
		}
		chain = search
	}

	hint := sources.Hint{Title: e.Get("title"), Author: e.Get("author")}
	interactive := c.deps.Decide != nil

	var diags []types.Diagnostic
	var accepted []*types.RawRecord
	cacheSpent := false

	for _, adapter := range chain {
		if ctx.Err() != nil {
			return diags, ctx.Err()
		}

		rec, fromCache, err := c.fetch(ctx, adapter, id.DOI, hint, &cacheSpent)
		if err != nil {
			diags = append(diags, types.Diagnostic{
				Source:     adapter.Name(),
				Reason:     err.Error(),
				StatusCode: sources.HTTPStatus(err),
			})
			continue
		}
		if fromCache {
			fmt.Fprintf(c.deps.Out, "  %s: cache hit for %s\n", e.ID, id.DOI)
		}

		res := validate.Validate(e, rec, id.DOI, interactive)
		if res.Verdict == validate.Uncertain && !c.deps.Decide(e, rec, res) {
			res.Verdict = validate.Reject
		}
		if res.Verdict != validate.Accept && res.Verdict != validate.Uncertain {
			diags = append(diags, types.Diagnostic{Source: rec.Source, Reason: res.Reason})
			continue
		}

		if !c.cfg.CombineSources {
			events := merge.Merge(e, rec)
			c.deps.Ledger.Append(events...)
			fmt.Fprintf(c.deps.Out, "  %s: completed from %s (%d fields)\n", e.ID, rec.Source, len(events))
			return diags, nil
		}
		accepted = append(accepted, rec)
	}

	if combined := merge.Combine(accepted); combined != nil {
		events := merge.Merge(e, combined)
		c.deps.Ledger.Append(events...)
		fmt.Fprintf(c.deps.Out, "  %s: combined %s (%d fields)\n", e.ID, combined.Source, len(events))
		return diags, nil
	}

	c.logFailure(e, id.DOI, id.Publisher, diags)
	return diags, ErrExhausted
}

// fetch retrieves a record for one adapter attempt, consulting the cache
// first. The cache hit is spent once per entry chain; after a rejected
// cached candidate the remaining adapters go to the network, otherwise
// the chain would loop on the same stale record.
func (c *Completer) fetch(ctx context.Context, adapter sources.Adapter, doi string, hint sources.Hint, cacheSpent *bool) (rec *types.RawRecord, fromCache bool, err error) {
	if c.deps.Cache != nil && doi != "" && !*cacheSpent {
		cached, ok, err := c.deps.Cache.Get(ctx, doi)
		if err != nil {
			return nil, false, err
		}
		if ok {
			*cacheSpent = true
			if err := c.delay(ctx, c.cfg.CachedDelay); err != nil {
				return nil, false, err
			}
			return cached, true, nil
		}
	}

	limiter := c.fetchLimiter
	if adapter.Kind() == sources.KindSearch {
		limiter = c.searchLimiter
	}
	if err := limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	if c.deps.Cache != nil && doi != "" {
		rec, err := c.deps.Cache.Coalesce(ctx, doi, adapter.Name(), func() (*types.RawRecord, error) {
			return adapter.Fetch(ctx, doi, hint)
		})
		return rec, false, err
	}

	rec, err = adapter.Fetch(ctx, doi, hint)
	return rec, false, err
}

func (c *Completer) delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// logFailure writes one exhaustion record combining every adapter
// failure reason and the last terminal HTTP status seen.
func (c *Completer) logFailure(e *types.Entry, doi string, tag types.PublisherTag, diags []types.Diagnostic) {
	if c.deps.FailLog == nil {
		return
	}
	var reasons []string
	status := 0
	for _, d := range diags {
		if d.Source != "" {
			reasons = append(reasons, d.Source+": "+d.Reason)
		} else {
			reasons = append(reasons, d.Reason)
		}
		if d.StatusCode != 0 {
			status = d.StatusCode
		}
	}
	c.deps.FailLog.Add(faillog.Record{
		DOI:        doi,
		EntryID:    e.ID,
		Publisher:  tag,
		Reason:     strings.Join(reasons, "; "),
		StatusCode: status,
	})
}

// BatchResult holds the outcome of a batch completion run.
type BatchResult struct {
	Processed int
	Modified  int
	Failed    int
}

// HasFailures reports whether any entry exhausted its chain.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// CompleteBatch processes entries across a bounded worker pool. Each
// entry's chain is strictly sequential internally; entries run
// concurrently up to the configured worker count. Per-entry failures
// never abort the batch, and the totals line is always printed.
func (c *Completer) CompleteBatch(ctx context.Context, entries []*types.Entry) (BatchResult, error) {
	var result BatchResult
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			fmt.Fprintf(c.deps.Out, "[%d/%d] %s\n", i+1, len(entries), e.ID)

			_, err := c.CompleteEntry(gctx, e)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			switch {
			case errors.Is(err, ErrExhausted):
				result.Failed++
				if len(c.deps.Ledger.ByEntry(e.ID)) > 0 {
					// A replaced preprint can exhaust the chain on its
					// remaining fields; the entry changed all the same.
					result.Modified++
					fmt.Fprintf(c.deps.Out, "  %s: partially completed, remaining fields unavailable\n", e.ID)
				} else {
					fmt.Fprintf(c.deps.Out, "  %s: no source could complete this entry\n", e.ID)
				}
			case err != nil:
				// Cancellation or a broken collaborator. Stop the pool.
				return err
			case len(c.deps.Ledger.ByEntry(e.ID)) > 0:
				// Cite keys are unique within a batch, so the entry's
				// ledger slice is entirely this goroutine's work.
				result.Modified++
			}
			return nil
		})
	}

	err := g.Wait()
	fmt.Fprintf(c.deps.Out, "\nBatch summary: %d processed, %d modified, %d failed\n",
		result.Processed, result.Modified, result.Failed)
	return result, err
}
