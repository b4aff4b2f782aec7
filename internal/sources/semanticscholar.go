// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/bibcomplete/internal/httputil"
)

// semanticScholarAPIBase is the Semantic Scholar Graph API endpoint.
// Declared as a var so tests can substitute an httptest server.
var semanticScholarAPIBase = "https://api.semanticscholar.org/graph/v1/paper/"

// SemanticScholar looks up the published version of an arXiv preprint.
// It is not part of the fallback chain; the completer calls it directly
// when an entry looks like a preprint that may have been published.
type SemanticScholar struct {
	Client    *http.Client
	UserAgent string
	APIKey    string
}

// NewSemanticScholar creates a Semantic Scholar lookup client. The API
// key is optional; without one requests run at the public rate limit.
func NewSemanticScholar(client *http.Client, userAgent, apiKey string) *SemanticScholar {
	return &SemanticScholar{Client: client, UserAgent: userAgent, APIKey: apiKey}
}

// Published holds the published-version identity of a preprint.
type Published struct {
	DOI   string
	Title string
	Venue string
	Year  int
}

type s2Paper struct {
	ExternalIDs struct {
		DOI string `json:"DOI"`
	} `json:"externalIds"`
	Title            string   `json:"title"`
	Venue            string   `json:"venue"`
	Year             int      `json:"year"`
	PublicationTypes []string `json:"publicationTypes"`
}

// LookupPublished asks Semantic Scholar whether the arXiv paper has a
// published journal or conference version. Returns ErrEmpty when the
// paper is unknown or still preprint-only.
func (s *SemanticScholar) LookupPublished(ctx context.Context, arxivID string) (*Published, error) {
	if arxivID == "" {
		return nil, fmt.Errorf("%w: empty arXiv id", ErrEmpty)
	}

	u := semanticScholarAPIBase + url.PathEscape("arXiv:"+arxivID) +
		"?fields=externalIds,title,venue,year,publicationTypes"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: Semantic Scholar request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &StatusError{Source: "semantic-scholar", StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: arXiv:%s not indexed", ErrEmpty, arxivID)}
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{Source: "semantic-scholar", StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: Semantic Scholar returned HTTP %d", ErrUnavailable, resp.StatusCode)}
	}

	var paper s2Paper
	if err := json.NewDecoder(resp.Body).Decode(&paper); err != nil {
		return nil, fmt.Errorf("%w: parsing Semantic Scholar response: %v", ErrEmpty, err)
	}

	if paper.ExternalIDs.DOI == "" || !publishedType(paper.PublicationTypes) {
		return nil, fmt.Errorf("%w: arXiv:%s has no published version", ErrEmpty, arxivID)
	}
	// A DOI under the arXiv prefix is the preprint's own DOI, not a
	// publication.
	if strings.HasPrefix(strings.ToLower(paper.ExternalIDs.DOI), "10.48550/") {
		return nil, fmt.Errorf("%w: arXiv:%s has no published version", ErrEmpty, arxivID)
	}

	return &Published{
		DOI:   paper.ExternalIDs.DOI,
		Title: paper.Title,
		Venue: paper.Venue,
		Year:  paper.Year,
	}, nil
}

func publishedType(kinds []string) bool {
	for _, k := range kinds {
		switch k {
		case "JournalArticle", "Conference", "Book", "BookSection":
			return true
		}
	}
	return false
}
