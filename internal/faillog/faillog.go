// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package faillog persists the identifiers every source failed to
// resolve, with enough context to research them by hand. The log is a
// JSON file so the corrections table can be curated from it.
package faillog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pdiddy/bibcomplete/pkg/types"
)

// Record is one exhausted-chain failure.
type Record struct {
	DOI        string             `json:"doi"`
	EntryID    string             `json:"entry_id"`
	Publisher  types.PublisherTag `json:"publisher"`
	Reason     string             `json:"reason"`
	StatusCode int                `json:"status_code,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Log accumulates failure records and writes them out as one JSON
// array. Safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	path    string
	records []Record
}

// New creates a failure log that will be written to path.
func New(path string) *Log {
	return &Log{path: path}
}

// Add records a failure, stamping a zero timestamp with the current
// time.
func (l *Log) Add(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

// Len reports the number of recorded failures.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Records returns a copy of the recorded failures.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Save writes the log to its file. An empty log writes nothing and
// leaves no file behind.
func (l *Log) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.records) == 0 {
		return nil
	}
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding failure log: %w", err)
	}
	if err := os.WriteFile(l.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing failure log: %w", err)
	}
	return nil
}

// Read loads a previously saved failure log.
func Read(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading failure log: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing failure log: %w", err)
	}
	return records, nil
}
