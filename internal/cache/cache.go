// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists fetched records in a SQLite database keyed by
// normalized DOI, so repeated runs over the same bibliography stop
// hammering the upstream sources. Live fetches for the same identifier
// are coalesced so concurrent workers share one network call.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/bibcomplete/pkg/types"
)

// Store is the on-disk record cache.
type Store struct {
	db     *sql.DB
	maxAge time.Duration
	group  singleflight.Group
}

// Open opens or creates the cache database at path. Records older than
// maxAge are treated as absent; a maxAge of zero disables expiry.
func Open(path string, maxAge time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	s := &Store{db: db, maxAge: maxAge}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS records (
		doi TEXT PRIMARY KEY,
		entry_type TEXT NOT NULL,
		fields TEXT NOT NULL,
		source TEXT NOT NULL,
		fetched_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}
	return nil
}

// Get looks up the cached record for a DOI. The second return value is
// false on a miss or when the cached record has aged out.
func (s *Store) Get(ctx context.Context, doi string) (*types.RawRecord, bool, error) {
	var entryType, fieldsJSON, source, fetchedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT entry_type, fields, source, fetched_at FROM records WHERE doi = ?`, doi,
	).Scan(&entryType, &fieldsJSON, &source, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying cache: %w", err)
	}

	if s.maxAge > 0 {
		t, err := time.Parse(time.RFC3339, fetchedAt)
		if err != nil || time.Since(t) > s.maxAge {
			return nil, false, nil
		}
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return nil, false, fmt.Errorf("decoding cached fields: %w", err)
	}
	return &types.RawRecord{EntryType: entryType, Fields: fields, Source: source}, true, nil
}

// Put stores a record under a DOI, replacing any previous record.
func (s *Store) Put(ctx context.Context, doi string, rec *types.RawRecord) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO records (doi, entry_type, fields, source, fetched_at)
		 VALUES (?, ?, ?, ?, ?)`,
		doi, rec.EntryType, string(fieldsJSON), rec.Source, time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("storing record: %w", err)
	}
	return nil
}

// Prune deletes records older than maxAge and reports how many were
// removed. A no-op when expiry is disabled.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	if s.maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-s.maxAge).Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}

// Len reports the number of cached records, including expired ones.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache: %w", err)
	}
	return n, nil
}

// Coalesce runs fetch for a doi/source pair, ensuring that concurrent
// callers asking the same pair share a single invocation and its
// result. Successful results are written through to the store.
func (s *Store) Coalesce(ctx context.Context, doi, source string, fetch func() (*types.RawRecord, error)) (*types.RawRecord, error) {
	v, err, _ := s.group.Do(doi+"|"+source, func() (interface{}, error) {
		rec, err := fetch()
		if err != nil {
			return nil, err
		}
		if putErr := s.Put(ctx, doi, rec); putErr != nil {
			return nil, putErr
		}
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.RawRecord), nil
}
