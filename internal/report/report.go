// Package report persists build reports to SQLite: one summary row per
// build plus the unresolved references found, so regressions in
// cross-reference coverage can be inspected after the fact.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Summary is the per-build report row.
type Summary struct {
	BuildID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Pages      int
	Resolved   int
	Unresolved int
}

// UnresolvedRef is one reference that could not be resolved during a build.
type UnresolvedRef struct {
	Page       string
	Identifier string
	Context    string
}

// Store is a SQLite-backed report store.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (and initializes) a report store.
// Use ":memory:" for an in-memory database, or a file path for persistence.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		build_id TEXT PRIMARY KEY,
		started INTEGER NOT NULL,
		finished INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		resolved INTEGER NOT NULL,
		unresolved INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS unresolved_refs (
		build_id TEXT NOT NULL,
		page TEXT NOT NULL,
		identifier TEXT NOT NULL,
		context TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_unresolved_build ON unresolved_refs(build_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordBuild stores a build summary and its unresolved references in one
// transaction.
func (s *Store) RecordBuild(ctx context.Context, sum Summary, refs []UnresolvedRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO builds (build_id, started, finished, pages, resolved, unresolved)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sum.BuildID, sum.StartedAt.Unix(), sum.FinishedAt.Unix(), sum.Pages, sum.Resolved, sum.Unresolved)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	for _, ref := range refs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO unresolved_refs (build_id, page, identifier, context) VALUES (?, ?, ?, ?)`,
			sum.BuildID, ref.Page, ref.Identifier, ref.Context)
		if err != nil {
			return fmt.Errorf("insert unresolved ref: %w", err)
		}
	}
	return tx.Commit()
}

// LastBuild returns the most recently finished build summary.
func (s *Store) LastBuild(ctx context.Context) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum Summary
	var started, finished int64
	err := s.db.QueryRowContext(ctx,
		`SELECT build_id, started, finished, pages, resolved, unresolved
		 FROM builds ORDER BY finished DESC, rowid DESC LIMIT 1`).
		Scan(&sum.BuildID, &started, &finished, &sum.Pages, &sum.Resolved, &sum.Unresolved)
	if err != nil {
		return Summary{}, fmt.Errorf("query last build: %w", err)
	}
	sum.StartedAt = time.Unix(started, 0)
	sum.FinishedAt = time.Unix(finished, 0)
	return sum, nil
}

// Unresolved returns the unresolved references recorded for a build. An
// empty buildID means the most recent build.
func (s *Store) Unresolved(ctx context.Context, buildID string) ([]UnresolvedRef, error) {
	if buildID == "" {
		last, err := s.LastBuild(ctx)
		if err != nil {
			return nil, err
		}
		buildID = last.BuildID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT page, identifier, COALESCE(context, '') FROM unresolved_refs
		 WHERE build_id = ? ORDER BY page, identifier`, buildID)
	if err != nil {
		return nil, fmt.Errorf("query unresolved refs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var refs []UnresolvedRef
	for rows.Next() {
		var ref UnresolvedRef
		if err := rows.Scan(&ref.Page, &ref.Identifier, &ref.Context); err != nil {
			return nil, fmt.Errorf("scan unresolved ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
