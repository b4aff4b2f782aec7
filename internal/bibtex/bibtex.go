// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bibtex reads and writes .bib files and maps them onto the
// shared Entry type. Parsing is delegated to github.com/nickng/bibtex;
// this package only adapts its document model.
package bibtex

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/nickng/bibtex"

	"github.com/pdiddy/bibcomplete/pkg/types"
)

// Parse reads a BibTeX document and returns its entries in file order.
// Entries without a citation key are skipped rather than failing the file.
func Parse(r io.Reader) ([]*types.Entry, error) {
	bib, err := bibtex.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing bibtex: %w", err)
	}

	var entries []*types.Entry
	for _, be := range bib.Entries {
		if strings.TrimSpace(be.CiteName) == "" {
			continue
		}
		e := &types.Entry{
			ID:     be.CiteName,
			Type:   strings.ToLower(be.Type),
			Fields: make(map[string]string, len(be.Fields)),
		}
		for name, value := range be.Fields {
			e.Fields[strings.ToLower(name)] = strings.TrimSpace(value.String())
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ParseFile reads a .bib file from disk.
func ParseFile(path string) ([]*types.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	entries, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return entries, nil
}

// ParseOne parses a BibTeX fragment and returns its first entry. Source
// adapters use this on the raw citation text publishers return.
func ParseOne(s string) (*types.Entry, error) {
	entries, err := Parse(strings.NewReader(s))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries in bibtex fragment")
	}
	return entries[0], nil
}

// Write renders entries as a BibTeX document. Field order within an
// entry is alphabetical so output is stable across runs.
func Write(w io.Writer, entries []*types.Entry) error {
	doc := bibtex.NewBibTex()
	for _, e := range entries {
		be := bibtex.NewBibEntry(e.Type, e.ID)
		for _, name := range e.FieldNames() {
			if e.Fields[name] == "" {
				continue
			}
			be.AddField(name, bibtex.NewBibConst(e.Fields[name]))
		}
		doc.AddEntry(be)
	}
	if _, err := io.WriteString(w, doc.PrettyString()); err != nil {
		return fmt.Errorf("writing bibtex: %w", err)
	}
	return nil
}

// WriteFile writes entries to a .bib file on disk.
func WriteFile(path string, entries []*types.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SortByID orders entries by citation key in place.
func SortByID(entries []*types.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
}
