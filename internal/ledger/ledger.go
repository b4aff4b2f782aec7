// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records every modification the completion pipeline
// makes to an entry. The ledger is append-only; nothing ever rewrites
// or removes an event, so the report is a faithful history of the run.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/pdiddy/bibcomplete/pkg/types"
)

// Ledger accumulates change events. Safe for concurrent appends from
// worker goroutines.
type Ledger struct {
	mu     sync.Mutex
	events []types.ChangeEvent
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Append records events, stamping any zero timestamp with the current
// time.
func (l *Ledger) Append(events ...types.ChangeEvent) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range events {
		if ev.Timestamp.IsZero() {
			ev.Timestamp = now
		}
		l.events = append(l.events, ev)
	}
}

// Len reports the number of recorded events.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Events returns a copy of all recorded events in append order.
func (l *Ledger) Events() []types.ChangeEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.ChangeEvent, len(l.events))
	copy(out, l.events)
	return out
}

// EntryIDs returns the sorted set of entries the ledger touched.
func (l *Ledger) EntryIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := make(map[string]bool)
	var ids []string
	for _, ev := range l.events {
		if !seen[ev.EntryID] {
			seen[ev.EntryID] = true
			ids = append(ids, ev.EntryID)
		}
	}
	sort.Strings(ids)
	return ids
}

// ByEntry returns the events for one entry in append order.
func (l *Ledger) ByEntry(entryID string) []types.ChangeEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.ChangeEvent
	for _, ev := range l.events {
		if ev.EntryID == entryID {
			out = append(out, ev)
		}
	}
	return out
}

// CountByKind tallies events per change kind.
func (l *Ledger) CountByKind() map[types.ChangeKind]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[types.ChangeKind]int)
	for _, ev := range l.events {
		counts[ev.Kind]++
	}
	return counts
}
