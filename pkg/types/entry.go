// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the bibcomplete pipeline:
// bibliographic entries, fetch results, change events, and stage configuration.
package types

import (
	"sort"
	"strings"
	"time"
)

// PublisherTag identifies the registrant behind a DOI prefix.
type PublisherTag string

const (
	PublisherIEEE     PublisherTag = "IEEE"
	PublisherACM      PublisherTag = "ACM"
	PublisherSpringer PublisherTag = "Springer"
	PublisherElsevier PublisherTag = "Elsevier"
	PublisherArxiv    PublisherTag = "arXiv"
	PublisherUnknown  PublisherTag = "Unknown"
)

// Entry is one bibliographic record from a .bib file. ID is the citation
// key and is immutable once parsed; Type is the entry type (article,
// inproceedings, ...). Field names are stored lowercased.
type Entry struct {
	ID     string            `json:"id" yaml:"id"`
	Type   string            `json:"type" yaml:"type"`
	Fields map[string]string `json:"fields" yaml:"fields"`
}

// Get returns the trimmed value of a field, or "" when absent.
func (e *Entry) Get(field string) string {
	return strings.TrimSpace(e.Fields[strings.ToLower(field)])
}

// Has reports whether the field is present with a non-empty value.
func (e *Entry) Has(field string) bool {
	return e.Get(field) != ""
}

// Set stores a field value under the lowercased field name.
func (e *Entry) Set(field, value string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[strings.ToLower(field)] = value
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	fields := make(map[string]string, len(e.Fields))
	for k, v := range e.Fields {
		fields[k] = v
	}
	return &Entry{ID: e.ID, Type: e.Type, Fields: fields}
}

// FieldNames returns the entry's field names in sorted order.
func (e *Entry) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// RawRecord is a single fetch result from one source adapter: a partial
// field mapping plus the source it came from. It lives for exactly one
// fetch-validate cycle; the cache persists a copy beyond that.
type RawRecord struct {
	EntryType string            `json:"entry_type"`
	Fields    map[string]string `json:"fields"`
	Source    string            `json:"source"`
}

// Get returns the trimmed value of a field, or "" when absent.
func (r *RawRecord) Get(field string) string {
	return strings.TrimSpace(r.Fields[strings.ToLower(field)])
}

// Diagnostic records one failed or rejected step in an entry's fallback
// chain, for the exhaustion report.
type Diagnostic struct {
	Source     string `json:"source"`
	Reason     string `json:"reason"`
	StatusCode int    `json:"status_code,omitempty"`
}

// ChangeKind classifies a change applied to an entry during merging.
type ChangeKind string

const (
	FieldAdded     ChangeKind = "field_added"
	FieldUpdated   ChangeKind = "field_updated"
	RecordReplaced ChangeKind = "record_replaced"
)

// ChangeEvent is one append-only ledger record describing a merge change.
// For RecordReplaced, OldValue and NewValue carry the old and new DOI.
type ChangeEvent struct {
	EntryID   string     `json:"entry_id"`
	Kind      ChangeKind `json:"kind"`
	Field     string     `json:"field,omitempty"`
	OldValue  string     `json:"old_value,omitempty"`
	NewValue  string     `json:"new_value"`
	Source    string     `json:"source"`
	Timestamp time.Time  `json:"timestamp"`
}
