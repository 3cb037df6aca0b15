// Package audit records accepted queries in a SQLite table with
// idempotent up/down votes.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"voxelgpt/internal/logging"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Log is the query audit table.
type Log struct {
	db *sql.DB
	mu sync.Mutex
}

// Entry is one audited query.
type Entry struct {
	ID        string
	Text      string
	Upvotes   int
	Downvotes int
}

// Open opens (or creates) the audit database at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		upvotes INTEGER NOT NULL DEFAULT 0,
		downvotes INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS votes (
		query_id TEXT NOT NULL,
		voter TEXT NOT NULL,
		direction INTEGER NOT NULL,
		PRIMARY KEY (query_id, voter)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit schema: %w", err)
	}
	return &Log{db: db}, nil
}

// RecordQuery inserts one row for an accepted query and returns its
// id.
func (l *Log) RecordQuery(ctx context.Context, text string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := uuid.New().String()
	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO queries (id, text) VALUES (?, ?)
	`, id, text); err != nil {
		return "", fmt.Errorf("failed to record query: %w", err)
	}
	logging.Get(logging.CategoryAudit).Info("recorded query %s", id)
	return id, nil
}

// Upvote registers an upvote from voter on the query. Repeating the
// same vote is a no-op; switching direction moves the count.
func (l *Log) Upvote(ctx context.Context, queryID, voter string) error {
	return l.vote(ctx, queryID, voter, 1)
}

// Downvote registers a downvote from voter on the query.
func (l *Log) Downvote(ctx context.Context, queryID, voter string) error {
	return l.vote(ctx, queryID, voter, -1)
}

func (l *Log) vote(ctx context.Context, queryID, voter string, direction int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT direction FROM votes WHERE query_id = ? AND voter = ?
	`, queryID, voter).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		existing = 0
	case err != nil:
		return err
	}

	if existing == direction {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO votes (query_id, voter, direction) VALUES (?, ?, ?)
		ON CONFLICT(query_id, voter) DO UPDATE SET direction = excluded.direction
	`, queryID, voter, direction); err != nil {
		return err
	}

	upDelta, downDelta := 0, 0
	if direction == 1 {
		upDelta = 1
	} else {
		downDelta = 1
	}
	if existing == 1 {
		upDelta--
	} else if existing == -1 {
		downDelta--
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE queries SET upvotes = upvotes + ?, downvotes = downvotes + ?
		WHERE id = ?
	`, upDelta, downDelta, queryID); err != nil {
		return err
	}
	return tx.Commit()
}

// Get fetches one audit entry.
func (l *Log) Get(ctx context.Context, queryID string) (Entry, error) {
	var e Entry
	err := l.db.QueryRowContext(ctx, `
		SELECT id, text, upvotes, downvotes FROM queries WHERE id = ?
	`, queryID).Scan(&e.ID, &e.Text, &e.Upvotes, &e.Downvotes)
	if err != nil {
		return Entry{}, fmt.Errorf("query %s not found: %w", queryID, err)
	}
	return e, nil
}

// Close closes the database.
func (l *Log) Close() error { return l.db.Close() }
