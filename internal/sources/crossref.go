// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/bibcomplete/internal/bibtex"
	"github.com/pdiddy/bibcomplete/internal/httputil"
	"github.com/pdiddy/bibcomplete/pkg/types"
)

// crossrefAPIBase is the CrossRef works endpoint. Declared as a var so
// tests can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works/"

// Crossref fetches records from the CrossRef registry via its BibTeX
// transform endpoint. It serves every publisher, so it sits in the
// chain as the universal fallback behind publisher-specific adapters.
type Crossref struct {
	Client    *http.Client
	UserAgent string
}

// NewCrossref creates a CrossRef adapter.
func NewCrossref(client *http.Client, userAgent string) *Crossref {
	return &Crossref{Client: client, UserAgent: userAgent}
}

// Name returns the adapter identifier.
func (c *Crossref) Name() string { return "crossref" }

// Kind identifies CrossRef as the universal registry adapter.
func (c *Crossref) Kind() Kind { return KindRegistry }

// Fetch retrieves the BibTeX rendering of a DOI from CrossRef.
func (c *Crossref) Fetch(ctx context.Context, doi string, _ Hint) (*types.RawRecord, error) {
	url := crossrefAPIBase + doi + "/transform/application/x-bibtex"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: CrossRef request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &StatusError{Source: c.Name(), StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: DOI not in CrossRef", ErrEmpty)}
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{Source: c.Name(), StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: CrossRef returned HTTP %d", ErrUnavailable, resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading CrossRef response: %v", ErrUnavailable, err)
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil, fmt.Errorf("%w: CrossRef returned empty body", ErrEmpty)
	}

	entry, err := bibtex.ParseOne(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing CrossRef bibtex: %v", ErrEmpty, err)
	}
	return recordFromEntry(entry, c.Name()), nil
}
