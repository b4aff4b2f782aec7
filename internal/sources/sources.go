// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources implements the external record sources behind one
// fetch contract: publisher-specific citation exporters (IEEE, ACM,
// arXiv), the CrossRef registry, and the DBLP search engine. Adapters
// return partial records; validation and merging happen upstream.
package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/bibcomplete/pkg/types"
)

// Kind orders adapters within a fallback chain: publisher-specific
// first, then the universal registry, then search engines.
type Kind int

const (
	KindPublisher Kind = iota
	KindRegistry
	KindSearch
)

// Hint carries entry fields used by search-engine adapters that cannot
// look a record up by identifier alone.
type Hint struct {
	Title  string
	Author string
}

// Adapter fetches a candidate record for a normalized DOI.
type Adapter interface {
	Name() string
	Kind() Kind
	Fetch(ctx context.Context, doi string, hint Hint) (*types.RawRecord, error)
}

// PublisherAdapter is an Adapter tied to a single publisher; it is only
// eligible for DOIs under that publisher's registrant prefix.
type PublisherAdapter interface {
	Adapter
	Publisher() types.PublisherTag
}

// Sentinel errors for the fetch contract.
var (
	// ErrUnavailable indicates a transport-level failure: the source
	// could not be reached or did not answer usefully.
	ErrUnavailable = errors.New("source unavailable")

	// ErrEmpty indicates the source answered but had no record for the
	// identifier.
	ErrEmpty = errors.New("source returned no record")
)

// StatusError carries the terminal HTTP status of a failed fetch so the
// failure log can record it. It wraps ErrEmpty or ErrUnavailable.
type StatusError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %v", e.Source, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatus extracts the terminal HTTP status from an adapter error
// chain, or 0 when none was recorded.
func HTTPStatus(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Chain returns the adapters eligible for a publisher tag, in the fixed
// priority order publisher-specific, registry, search engine. Publisher
// adapters are included only when their publisher matches the tag;
// registry and search adapters are always eligible. The order within a
// kind follows the input slice and never changes at runtime.
func Chain(adapters []Adapter, tag types.PublisherTag) []Adapter {
	var chain []Adapter
	for _, kind := range []Kind{KindPublisher, KindRegistry, KindSearch} {
		for _, a := range adapters {
			if a.Kind() != kind {
				continue
			}
			if pa, ok := a.(PublisherAdapter); ok && pa.Publisher() != tag {
				continue
			}
			chain = append(chain, a)
		}
	}
	return chain
}

// recordFromEntry converts a parsed BibTeX entry into a RawRecord
// attributed to the given source.
func recordFromEntry(e *types.Entry, source string) *types.RawRecord {
	fields := make(map[string]string, len(e.Fields))
	for k, v := range e.Fields {
		if strings.TrimSpace(v) == "" {
			continue
		}
		fields[k] = v
	}
	return &types.RawRecord{
		EntryType: e.Type,
		Fields:    fields,
		Source:    source,
	}
}
