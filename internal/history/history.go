// Package history keeps a SQLite ledger of refresh outcomes per slug.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS refresh_runs (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	run_at INTEGER NOT NULL,
	slug   TEXT    NOT NULL,
	ok     INTEGER NOT NULL,
	reason TEXT    NOT NULL DEFAULT '',
	bytes  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS refresh_runs_slug ON refresh_runs (slug, run_at);`

// Entry is one target's outcome in one run.
type Entry struct {
	RunAt  time.Time
	Slug   string
	OK     bool
	Reason string
	Bytes  int
}

// Ledger is an open history database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// Record appends e.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	ok := 0
	if e.OK {
		ok = 1
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO refresh_runs (run_at, slug, ok, reason, bytes) VALUES (?, ?, ?, ?, ?)`,
		e.RunAt.Unix(), e.Slug, ok, e.Reason, e.Bytes)
	return err
}

// Recent returns up to n entries for slug, newest first.
func (l *Ledger) Recent(ctx context.Context, slug string, n int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_at, slug, ok, reason, bytes FROM refresh_runs WHERE slug = ? ORDER BY run_at DESC, id DESC LIMIT ?`,
		slug, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			at int64
			ok int
			e  Entry
		)
		if err := rows.Scan(&at, &e.Slug, &ok, &e.Reason, &e.Bytes); err != nil {
			return nil, err
		}
		e.RunAt = time.Unix(at, 0)
		e.OK = ok == 1
		out = append(out, e)
	}
	return out, rows.Err()
}

// FailureStreak returns how many of slug's most recent entries failed in a row.
func (l *Ledger) FailureStreak(ctx context.Context, slug string) (int, error) {
	recent, err := l.Recent(ctx, slug, 100)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range recent {
		if e.OK {
			break
		}
		n++
	}
	return n, nil
}
