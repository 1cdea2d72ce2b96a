// Package history records converter runs in an embedded SQLite database.
//
// The database is a plain log: one row per conversion with the modes, the
// files involved, how long the converter took and whether it succeeded.
// It is opened in WAL mode so the CLI can read it while a session writes.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Status values stored in the status column.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Run is one converter invocation.
type Run struct {
	ID         int64         `json:"id" yaml:"id"`
	Tab        int           `json:"tab" yaml:"tab"`
	Title      string        `json:"title" yaml:"title"`
	SourceMode string        `json:"source_mode" yaml:"source_mode"`
	TargetMode string        `json:"target_mode" yaml:"target_mode"`
	SourcePath string        `json:"source_path,omitempty" yaml:"source_path,omitempty"`
	TargetPath string        `json:"target_path,omitempty" yaml:"target_path,omitempty"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Status     string        `json:"status" yaml:"status"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Filter narrows List results. Zero values mean no restriction.
type Filter struct {
	Since  time.Time
	Status string
	Limit  int
}

// DB wraps the history database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the database at path and initializes the schema.
//
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection after checkpointing the WAL.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates the schema if it doesn't exist. It is idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tab INTEGER NOT NULL,
		title TEXT NOT NULL,
		source_mode TEXT NOT NULL,
		target_mode TEXT NOT NULL,
		source_path TEXT,
		target_path TEXT,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_conversions_started ON conversions(started_at);
	CREATE INDEX IF NOT EXISTS idx_conversions_status ON conversions(status);
	`
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Record inserts a run and returns its ID.
func (db *DB) Record(ctx context.Context, run Run) (int64, error) {
	if run.Status == "" {
		run.Status = StatusOK
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	res, err := db.conn.ExecContext(ctx, `
	INSERT INTO conversions (
		tab, title, source_mode, target_mode, source_path, target_path,
		started_at, duration_ms, status, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Tab,
		run.Title,
		run.SourceMode,
		run.TargetMode,
		nullString(run.SourcePath),
		nullString(run.TargetPath),
		run.StartedAt.UTC().Format(timeLayout),
		run.Duration.Milliseconds(),
		run.Status,
		nullString(run.Error),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record conversion: %w", err)
	}
	return res.LastInsertId()
}

// List returns runs matching f, newest first.
func (db *DB) List(ctx context.Context, f Filter) ([]Run, error) {
	var where []string
	var args []interface{}
	if !f.Since.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}

	query := `
	SELECT id, tab, title, source_mode, target_mode,
	       COALESCE(source_path, ''), COALESCE(target_path, ''),
	       started_at, duration_ms, status, COALESCE(error, '')
	FROM conversions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversions: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.Tab, &r.Title, &r.SourceMode, &r.TargetMode,
			&r.SourcePath, &r.TargetPath, &started, &durationMS, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan conversion: %w", err)
		}
		r.StartedAt, err = time.Parse(timeLayout, started)
		if err != nil {
			return nil, fmt.Errorf("failed to parse started_at %q: %w", started, err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Count returns the number of recorded runs.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count conversions: %w", err)
	}
	return n, nil
}

// Prune deletes runs started before t and returns how many were removed.
func (db *DB) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM conversions WHERE started_at < ?",
		before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune conversions: %w", err)
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
