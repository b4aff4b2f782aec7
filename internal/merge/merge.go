// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package merge applies fetched records to entries. Merging is strictly
// fill-only: a value already present in an entry is never overwritten,
// whatever the source claims. The one exception is Replace, which swaps
// a preprint entry for its published version and records that as a
// single replacement event.
package merge

import (
	"sort"
	"strings"

	"github.com/pdiddy/bibcomplete/pkg/types"
)

// Merge fills the entry's missing fields from the record and returns
// one change event per field added. The entry's ID and type are never
// touched. Fields are applied in sorted order so the event sequence is
// deterministic.
func Merge(e *types.Entry, rec *types.RawRecord) []types.ChangeEvent {
	if rec == nil {
		return nil
	}

	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var events []types.ChangeEvent
	for _, name := range names {
		value := strings.TrimSpace(rec.Fields[name])
		if value == "" {
			continue
		}
		if strings.TrimSpace(e.Get(name)) != "" {
			continue
		}
		e.Set(name, value)
		events = append(events, types.ChangeEvent{
			EntryID:  e.ID,
			Kind:     types.FieldAdded,
			Field:    name,
			NewValue: value,
			Source:   rec.Source,
		})
	}
	return events
}

// Replace swaps a preprint entry's content for its published version.
// The cite key survives so references elsewhere keep resolving, and the
// arXiv identity fields survive so the preprint remains findable. The
// whole swap is one event carrying the old and new DOI.
func Replace(e *types.Entry, rec *types.RawRecord) types.ChangeEvent {
	oldDOI := e.Get("doi")
	oldEprint := e.Get("eprint")
	oldPrefix := e.Get("archiveprefix")

	e.Type = rec.EntryType
	e.Fields = make(map[string]string, len(rec.Fields))
	for name, value := range rec.Fields {
		if v := strings.TrimSpace(value); v != "" {
			e.Fields[name] = v
		}
	}
	if e.Get("eprint") == "" && oldEprint != "" {
		e.Set("eprint", oldEprint)
	}
	if e.Get("archiveprefix") == "" && oldPrefix != "" {
		e.Set("archiveprefix", oldPrefix)
	}

	return types.ChangeEvent{
		EntryID:  e.ID,
		Kind:     types.RecordReplaced,
		Field:    "doi",
		OldValue: oldDOI,
		NewValue: e.Get("doi"),
		Source:   rec.Source,
	}
}
