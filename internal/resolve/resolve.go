// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve extracts and normalizes DOIs from bibliographic entries
// and classifies the publisher behind a DOI prefix.
package resolve

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/bibcomplete/pkg/types"
)

// Errors returned when an entry yields no usable identifier.
var (
	ErrNotFound  = errors.New("no identifier found in entry")
	ErrMalformed = errors.New("malformed identifier")
)

// Identifier is a normalized DOI plus its derived publisher tag.
type Identifier struct {
	DOI       string
	Publisher types.PublisherTag
}

// doiPrefixes maps DOI registrant prefixes to publisher tags. Matched
// longest-prefix-first; unmatched prefixes yield PublisherUnknown.
var doiPrefixes = []struct {
	prefix string
	tag    types.PublisherTag
}{
	{"10.48550", types.PublisherArxiv},
	{"10.1109", types.PublisherIEEE},
	{"10.1145", types.PublisherACM},
	{"10.1007", types.PublisherSpringer},
	{"10.1016", types.PublisherElsevier},
}

// urlPrefixPattern matches resolver URL prefixes stripped during normalization.
var urlPrefixPattern = regexp.MustCompile(`^(?:https?://)?(?:dx\.)?doi\.org/`)

// doiURLPattern extracts a DOI embedded in a resolver URL.
var doiURLPattern = regexp.MustCompile(`doi\.org/(10\.\d+/[^\s]+)`)

// arxivURLPattern extracts an arXiv ID from an abstract or PDF URL.
// Supports both new-style (2410.03805) and old-style (cs/0704001) IDs.
var arxivURLPattern = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/([a-zA-Z-]+/\d+|\d+\.\d+)`)

// arxivDOIPattern extracts the arXiv ID back out of a synthetic DOI.
var arxivDOIPattern = regexp.MustCompile(`^10\.48550/arxiv\.(.+)$`)

// Normalize strips resolver URL prefixes and whitespace from a raw DOI
// and lowercases it. DOI comparison is case-insensitive per the DOI
// handbook, so the lowercase form is the canonical one throughout.
func Normalize(raw string) string {
	doi := strings.TrimSpace(raw)
	doi = urlPrefixPattern.ReplaceAllString(doi, "")
	return strings.ToLower(doi)
}

// Publisher returns the publisher tag for a normalized DOI by
// longest-prefix match against the registrant table.
func Publisher(doi string) types.PublisherTag {
	for _, p := range doiPrefixes {
		if strings.HasPrefix(doi, p.prefix) {
			return p.tag
		}
	}
	return types.PublisherUnknown
}

// Parse normalizes a raw DOI and checks it is well-formed: it must start
// with "10.", contain a registrant/suffix separator, and carry a
// non-empty suffix after it.
func Parse(raw string) (Identifier, error) {
	doi := Normalize(raw)
	if doi == "" {
		return Identifier{}, fmt.Errorf("%w: empty identifier", ErrMalformed)
	}
	if !strings.HasPrefix(doi, "10.") {
		return Identifier{}, fmt.Errorf("%w: %q does not start with \"10.\"", ErrMalformed, doi)
	}
	slash := strings.Index(doi, "/")
	if slash < 0 || slash == len(doi)-1 {
		return Identifier{}, fmt.Errorf("%w: %q has no registrant/suffix separator", ErrMalformed, doi)
	}
	return Identifier{DOI: doi, Publisher: Publisher(doi)}, nil
}

// FromEntry extracts an identifier from an entry. It checks the doi
// field first; failing that, it scans the url field for a resolver URL
// or an arXiv abstract/PDF URL. arXiv URLs produce a synthetic DOI under
// the arXiv registrant prefix so the arXiv adapter can be driven even
// when no DOI was ever recorded.
func FromEntry(e *types.Entry) (Identifier, error) {
	if doi := e.Get("doi"); doi != "" {
		return Parse(doi)
	}

	url := e.Get("url")
	if url == "" {
		return Identifier{}, ErrNotFound
	}

	if m := doiURLPattern.FindStringSubmatch(url); m != nil {
		return Parse(m[1])
	}
	if m := arxivURLPattern.FindStringSubmatch(url); m != nil {
		return Parse("10.48550/arXiv." + m[1])
	}

	return Identifier{}, ErrNotFound
}

// ArxivID extracts the arXiv ID from a synthetic arXiv DOI. The second
// return value is false when the DOI is not under the arXiv registrant.
func ArxivID(doi string) (string, bool) {
	m := arxivDOIPattern.FindStringSubmatch(Normalize(doi))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Equal reports whether two raw DOIs denote the same registry entity
// after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
