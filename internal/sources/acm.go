// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/pdiddy/bibcomplete/internal/bibtex"
	"github.com/pdiddy/bibcomplete/internal/httputil"
	"github.com/pdiddy/bibcomplete/pkg/types"
)

// acmExportBase is the ACM Digital Library BibTeX export base. Declared
// as a var so tests can substitute an httptest server.
var acmExportBase = "https://dl.acm.org/doi/"

// acmPrePattern extracts the citation text when the export endpoint
// wraps it in an HTML pre block.
var acmPrePattern = regexp.MustCompile(`(?s)<pre[^>]*>(.*?)</pre>`)

// ACM fetches citation records from the ACM Digital Library export
// endpoint.
type ACM struct {
	Client    *http.Client
	UserAgent string
}

// NewACM creates an ACM Digital Library adapter.
func NewACM(client *http.Client, userAgent string) *ACM {
	return &ACM{Client: client, UserAgent: userAgent}
}

// Name returns the adapter identifier.
func (a *ACM) Name() string { return "acm" }

// Kind identifies ACM as a publisher-specific adapter.
func (a *ACM) Kind() Kind { return KindPublisher }

// Publisher returns the tag this adapter serves.
func (a *ACM) Publisher() types.PublisherTag { return types.PublisherACM }

// Fetch downloads the BibTeX export for a DOI from the ACM Digital
// Library. The endpoint sometimes returns bare BibTeX and sometimes an
// HTML page with the citation in a pre block; both are handled.
func (a *ACM) Fetch(ctx context.Context, doi string, _ Hint) (*types.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, acmExportBase+doi+"/bibtex", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", a.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, a.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: ACM export request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &StatusError{Source: a.Name(), StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: DOI not in ACM Digital Library", ErrEmpty)}
	case resp.StatusCode == http.StatusForbidden:
		return nil, &StatusError{Source: a.Name(), StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: ACM export forbidden", ErrUnavailable)}
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{Source: a.Name(), StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: ACM export returned HTTP %d", ErrUnavailable, resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading ACM response: %v", ErrUnavailable, err)
	}

	text := string(body)
	if m := acmPrePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if !strings.Contains(text, "@") {
		return nil, fmt.Errorf("%w: no citation in ACM response", ErrEmpty)
	}

	entry, err := bibtex.ParseOne(text)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing ACM bibtex: %v", ErrEmpty, err)
	}
	return recordFromEntry(entry, a.Name()), nil
}
