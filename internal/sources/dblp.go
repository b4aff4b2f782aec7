// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/bibcomplete/internal/httputil"
	"github.com/pdiddy/bibcomplete/pkg/types"
)

// dblpAPIBase is the DBLP publication search endpoint. Declared as a
// var so tests can substitute an httptest server.
var dblpAPIBase = "https://dblp.org/search/publ/api"

const dblpMaxHits = 5

// dblpCleanPattern strips LaTeX braces and escapes from search titles.
var dblpCleanPattern = regexp.MustCompile(`[{}\\]`)

// DBLP searches the DBLP bibliography by title. It is the last-resort
// search-engine adapter: it works without any identifier and is also
// used when an entry never had a DOI at all.
type DBLP struct {
	Client    *http.Client
	UserAgent string
}

// NewDBLP creates a DBLP search adapter.
func NewDBLP(client *http.Client, userAgent string) *DBLP {
	return &DBLP{Client: client, UserAgent: userAgent}
}

// Name returns the adapter identifier.
func (d *DBLP) Name() string { return "dblp" }

// Kind identifies DBLP as a search-engine adapter.
func (d *DBLP) Kind() Kind { return KindSearch }

// DBLP search API JSON structures.
type dblpResponse struct {
	Result struct {
		Hits struct {
			Hit []dblpHit `json:"hit"`
		} `json:"hits"`
	} `json:"result"`
}

type dblpHit struct {
	Info dblpInfo `json:"info"`
}

type dblpInfo struct {
	Title   string      `json:"title"`
	Authors dblpAuthors `json:"authors"`
	Venue   string      `json:"venue"`
	Year    string      `json:"year"`
	Type    string      `json:"type"`
	DOI     string      `json:"doi"`
	URL     string      `json:"url"`
}

// dblpAuthors tolerates DBLP's habit of returning a single author as an
// object and multiple authors as an array.
type dblpAuthors struct {
	Names []string
}

func (a *dblpAuthors) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		Author json.RawMessage `json:"author"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	if len(wrapper.Author) == 0 {
		return nil
	}

	type authorObj struct {
		Text string `json:"text"`
	}

	var many []authorObj
	if err := json.Unmarshal(wrapper.Author, &many); err == nil {
		for _, au := range many {
			a.Names = append(a.Names, au.Text)
		}
		return nil
	}

	var one authorObj
	if err := json.Unmarshal(wrapper.Author, &one); err != nil {
		return fmt.Errorf("parsing dblp authors: %w", err)
	}
	a.Names = append(a.Names, one.Text)
	return nil
}

// Fetch searches DBLP by the hint title and returns the first hit whose
// venue is a real journal or conference (not arXiv) and whose title
// plausibly matches. The doi argument is ignored: DBLP is driven purely
// by the search hint.
func (d *DBLP) Fetch(ctx context.Context, _ string, hint Hint) (*types.RawRecord, error) {
	title := strings.TrimSpace(hint.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: no title to search DBLP by", ErrEmpty)
	}
	clean := dblpCleanPattern.ReplaceAllString(title, "")

	params := url.Values{
		"q":      {clean},
		"format": {"json"},
		"h":      {fmt.Sprintf("%d", dblpMaxHits)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dblpAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", d.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, d.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: DBLP request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Source: d.Name(), StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: DBLP returned HTTP %d", ErrUnavailable, resp.StatusCode)}
	}

	var dr dblpResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("%w: parsing DBLP response: %v", ErrEmpty, err)
	}

	for _, hit := range dr.Result.Hits.Hit {
		info := hit.Info
		venue := strings.ToLower(info.Venue)
		if venue == "" || strings.Contains(venue, "corr") || strings.Contains(venue, "arxiv") {
			continue
		}
		if !titlesOverlap(clean, info.Title) {
			continue
		}
		return dblpRecord(info, d.Name()), nil
	}

	return nil, fmt.Errorf("%w: no DBLP hit matched title %q", ErrEmpty, truncateTitle(clean))
}

// dblpRecord shapes a DBLP hit into a RawRecord. Conference papers get
// booktitle, everything else gets journal.
func dblpRecord(info dblpInfo, source string) *types.RawRecord {
	entryType := "article"
	venueField := "journal"
	if strings.Contains(strings.ToLower(info.Type), "conference") {
		entryType = "inproceedings"
		venueField = "booktitle"
	}

	fields := map[string]string{
		"title":    strings.TrimSuffix(strings.TrimSpace(info.Title), "."),
		venueField: info.Venue,
	}
	if len(info.Authors.Names) > 0 {
		fields["author"] = strings.Join(info.Authors.Names, " and ")
	}
	if info.Year != "" {
		fields["year"] = info.Year
	}
	if info.DOI != "" {
		fields["doi"] = info.DOI
	}
	if info.URL != "" {
		fields["url"] = info.URL
	}

	return &types.RawRecord{EntryType: entryType, Fields: fields, Source: source}
}

// titlesOverlap reports whether one title contains the other,
// case-insensitively. Fine-grained similarity scoring happens in the
// validator; this is only a cheap pre-filter over search hits.
func titlesOverlap(a, b string) bool {
	la := strings.ToLower(strings.TrimSpace(a))
	lb := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(b), "."))
	if la == "" || lb == "" {
		return false
	}
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

func truncateTitle(s string) string {
	if len(s) <= 50 {
		return s
	}
	return s[:47] + "..."
}
