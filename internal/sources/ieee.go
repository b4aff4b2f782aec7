// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/bibcomplete/internal/bibtex"
	"github.com/pdiddy/bibcomplete/internal/httputil"
	"github.com/pdiddy/bibcomplete/pkg/types"
)

// Endpoints for the IEEE Xplore citation flow. Declared as vars so
// tests can substitute httptest servers.
var (
	ieeeResolverBase = "https://doi.org/"
	ieeeCiteURL      = "https://ieeexplore.ieee.org/xpl/downloadCitations"
)

// ieeeDocPattern extracts the Xplore document number from the resolved URL.
var ieeeDocPattern = regexp.MustCompile(`/document/(\d+)`)

// IEEE fetches citation records from IEEE Xplore. The flow mirrors the
// site's own export: resolve the DOI to find the document number, then
// request the BibTeX rendering from the citation download endpoint.
type IEEE struct {
	Client    *http.Client
	UserAgent string
}

// NewIEEE creates an IEEE Xplore adapter.
func NewIEEE(client *http.Client, userAgent string) *IEEE {
	return &IEEE{Client: client, UserAgent: userAgent}
}

// Name returns the adapter identifier.
func (i *IEEE) Name() string { return "ieee" }

// Kind identifies IEEE as a publisher-specific adapter.
func (i *IEEE) Kind() Kind { return KindPublisher }

// Publisher returns the tag this adapter serves.
func (i *IEEE) Publisher() types.PublisherTag { return types.PublisherIEEE }

// Fetch resolves the DOI through doi.org and downloads the BibTeX
// citation for the resulting Xplore document.
func (i *IEEE) Fetch(ctx context.Context, doi string, _ Hint) (*types.RawRecord, error) {
	docNum, err := i.documentNumber(ctx, doi)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"recordIds":        {docNum},
		"citations-format": {"citation-abstract"},
		"download-format":  {"download-bibtex"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ieeeCiteURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", i.UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httputil.DoWithRetry(ctx, i.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: IEEE citation request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &StatusError{Source: i.Name(), StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: document %s not found", ErrEmpty, docNum)}
	case resp.StatusCode == http.StatusForbidden:
		return nil, &StatusError{Source: i.Name(), StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: IEEE citation export forbidden", ErrUnavailable)}
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{Source: i.Name(), StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: IEEE citation export returned HTTP %d", ErrUnavailable, resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading IEEE response: %v", ErrUnavailable, err)
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil, fmt.Errorf("%w: IEEE returned empty citation", ErrEmpty)
	}

	entry, err := bibtex.ParseOne(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing IEEE bibtex: %v", ErrEmpty, err)
	}
	return recordFromEntry(entry, i.Name()), nil
}

// documentNumber follows the DOI redirect to Xplore and extracts the
// document number from the final URL.
func (i *IEEE) documentNumber(ctx context.Context, doi string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ieeeResolverBase+doi, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", i.UserAgent)

	resp, err := i.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: DOI resolution: %v", ErrUnavailable, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", &StatusError{Source: i.Name(), StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: DOI not found", ErrEmpty)}
	case resp.StatusCode != http.StatusOK:
		return "", &StatusError{Source: i.Name(), StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: DOI resolution returned HTTP %d", ErrUnavailable, resp.StatusCode)}
	}

	m := ieeeDocPattern.FindStringSubmatch(resp.Request.URL.Path)
	if m == nil {
		return "", fmt.Errorf("%w: no document number in resolved URL %s", ErrEmpty, resp.Request.URL)
	}
	return m[1], nil
}
