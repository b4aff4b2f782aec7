// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/bibcomplete/internal/httputil"
	"github.com/pdiddy/bibcomplete/internal/resolve"
	"github.com/pdiddy/bibcomplete/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// Arxiv fetches preprint metadata from the arXiv API. It is the
// publisher-specific adapter for DOIs under the arXiv registrant,
// including the synthetic DOIs the resolver builds from abstract URLs.
type Arxiv struct {
	Client    *http.Client
	UserAgent string
}

// NewArxiv creates an arXiv adapter.
func NewArxiv(client *http.Client, userAgent string) *Arxiv {
	return &Arxiv{Client: client, UserAgent: userAgent}
}

// Name returns the adapter identifier.
func (a *Arxiv) Name() string { return "arxiv" }

// Kind identifies arXiv as a publisher-specific adapter.
func (a *Arxiv) Kind() Kind { return KindPublisher }

// Publisher returns the tag this adapter serves.
func (a *Arxiv) Publisher() types.PublisherTag { return types.PublisherArxiv }

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// Fetch queries the arXiv API for the preprint behind an arXiv DOI and
// shapes the Atom entry into bibliographic fields.
func (a *Arxiv) Fetch(ctx context.Context, doi string, _ Hint) (*types.RawRecord, error) {
	arxivID, ok := resolve.ArxivID(doi)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an arXiv DOI", ErrEmpty, doi)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s?id_list=%s", arxivAPIBase, arxivID), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", a.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, a.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: arXiv API request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Source: a.Name(), StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: arXiv API returned HTTP %d", ErrUnavailable, resp.StatusCode)}
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: parsing arXiv response: %v", ErrEmpty, err)
	}
	if len(feed.Entries) == 0 {
		return nil, fmt.Errorf("%w: no entries for arXiv ID %s", ErrEmpty, arxivID)
	}

	entry := feed.Entries[0]
	title := strings.Join(strings.Fields(entry.Title), " ")
	if title == "" {
		return nil, fmt.Errorf("%w: arXiv entry missing title", ErrEmpty)
	}

	var authors []string
	for _, au := range entry.Authors {
		if name := strings.TrimSpace(au.Name); name != "" {
			authors = append(authors, name)
		}
	}

	fields := map[string]string{
		"title":         title,
		"journal":       "arXiv preprint arXiv:" + arxivID,
		"doi":           doi,
		"eprint":        arxivID,
		"archiveprefix": "arXiv",
	}
	if len(authors) > 0 {
		fields["author"] = strings.Join(authors, " and ")
	}
	if len(entry.Published) >= 4 {
		fields["year"] = entry.Published[:4]
	}
	if abstract := strings.Join(strings.Fields(entry.Summary), " "); abstract != "" {
		fields["abstract"] = abstract
	}

	return &types.RawRecord{EntryType: "article", Fields: fields, Source: a.Name()}, nil
}
