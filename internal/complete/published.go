// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package complete

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/bibcomplete/internal/merge"
	"github.com/pdiddy/bibcomplete/internal/resolve"
	"github.com/pdiddy/bibcomplete/internal/sources"
	"github.com/pdiddy/bibcomplete/internal/validate"
	"github.com/pdiddy/bibcomplete/pkg/types"
)

var arxivURLIDPattern = regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf)/(\d{4}\.\d{4,5}(?:v\d+)?)`)

// IsPreprint reports whether an entry describes an arXiv preprint
// rather than a formally published work.
func IsPreprint(e *types.Entry) bool {
	if strings.ToLower(e.Type) == "misc" {
		return PreprintID(e) != ""
	}
	if strings.Contains(strings.ToLower(e.Get("archiveprefix")), "arxiv") {
		return true
	}
	journal := strings.ToLower(e.Get("journal"))
	publisher := strings.ToLower(e.Get("publisher"))
	return strings.Contains(journal, "arxiv") || strings.Contains(publisher, "arxiv")
}

// PreprintID extracts the arXiv ID from wherever the entry hides it:
// the eprint field, an abstract URL, or a DOI under the arXiv prefix.
func PreprintID(e *types.Entry) string {
	if id := e.Get("eprint"); id != "" {
		return id
	}
	if id := e.Get("arxivid"); id != "" {
		return id
	}
	if m := arxivURLIDPattern.FindStringSubmatch(e.Get("url")); m != nil {
		return m[1]
	}
	if id, ok := resolve.ArxivID(e.Get("doi")); ok {
		return id
	}
	return ""
}

// replacePreprint looks up the formally published version of a preprint
// entry and, when the registry record for it validates against the
// entry, swaps the entry's body for the published record. Returns
// sources.ErrEmpty when no published version exists.
func (c *Completer) replacePreprint(ctx context.Context, e *types.Entry) error {
	arxivID := PreprintID(e)
	if arxivID == "" {
		return fmt.Errorf("%w: entry has no arXiv id", sources.ErrEmpty)
	}

	id, err := c.findPublished(ctx, e, arxivID)
	if err != nil {
		return err
	}

	// Fetch the full record for the published DOI through the registry
	// adapter so the replacement body is real registry metadata, not
	// just the lookup's title and venue.
	rec, err := c.fetchPublishedRecord(ctx, id)
	if err != nil {
		return err
	}

	// The published version is a different registry entity from the
	// preprint, commonly years later, so the year gate does not apply.
	res := validate.ValidateReplacement(e, rec, id.DOI)
	if res.Verdict != validate.Accept {
		return fmt.Errorf("%w: published candidate rejected: %s", sources.ErrEmpty, res.Reason)
	}

	ev := merge.Replace(e, rec)
	c.deps.Ledger.Append(ev)
	fmt.Fprintf(c.deps.Out, "  %s: replaced preprint arXiv:%s with published version %s\n",
		e.ID, arxivID, id.DOI)
	return nil
}

// findPublished locates the published version's DOI: Semantic Scholar
// by arXiv ID first, then the search-engine adapters by title for works
// Semantic Scholar answers empty on. DBLP skips arXiv/CoRR venues, so a
// titled hit with a DOI there is a published venue by construction.
func (c *Completer) findPublished(ctx context.Context, e *types.Entry, arxivID string) (resolve.Identifier, error) {
	if c.deps.Published != nil {
		if err := c.fetchLimiter.Wait(ctx); err != nil {
			return resolve.Identifier{}, err
		}
		pub, err := c.deps.Published.LookupPublished(ctx, arxivID)
		switch {
		case err == nil:
			id, err := resolve.Parse(pub.DOI)
			if err != nil {
				return resolve.Identifier{}, fmt.Errorf("published version of arXiv:%s has malformed DOI %q: %w", arxivID, pub.DOI, err)
			}
			return id, nil
		case !errors.Is(err, sources.ErrEmpty):
			return resolve.Identifier{}, err
		}
	}

	hint := sources.Hint{Title: e.Get("title"), Author: e.Get("author")}
	if hint.Title != "" {
		for _, adapter := range c.deps.Adapters {
			if adapter.Kind() != sources.KindSearch {
				continue
			}
			if err := c.searchLimiter.Wait(ctx); err != nil {
				return resolve.Identifier{}, err
			}
			rec, err := adapter.Fetch(ctx, "", hint)
			if err != nil {
				continue
			}
			if id, err := resolve.Parse(rec.Get("doi")); err == nil {
				return id, nil
			}
		}
	}

	return resolve.Identifier{}, fmt.Errorf("%w: no published version found for arXiv:%s", sources.ErrEmpty, arxivID)
}

// fetchPublishedRecord pulls the record behind the published DOI from
// the first registry adapter in the set.
func (c *Completer) fetchPublishedRecord(ctx context.Context, id resolve.Identifier) (*types.RawRecord, error) {
	for _, adapter := range sources.Chain(c.deps.Adapters, id.Publisher) {
		if adapter.Kind() != sources.KindRegistry {
			continue
		}
		if err := c.fetchLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		if c.deps.Cache != nil {
			return c.deps.Cache.Coalesce(ctx, id.DOI, adapter.Name(), func() (*types.RawRecord, error) {
				return adapter.Fetch(ctx, id.DOI, sources.Hint{})
			})
		}
		return adapter.Fetch(ctx, id.DOI, sources.Hint{})
	}
	return nil, fmt.Errorf("%w: no registry adapter available", sources.ErrUnavailable)
}
