package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// LoadRecord is one entry of the geometry load history.
type LoadRecord struct {
	Source    string    `json:"source"`
	Countries int       `json:"countries"`
	Error     string    `json:"error,omitempty"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// Init opens the database and runs migrations.
func Init(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// WAL keeps readers off the writer's back; the busy timeout covers the rest.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{db}
	// Single connection avoids SQLITE_BUSY on concurrent writes
	db.SetMaxOpenConns(1)

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

// PruneCache removes cache entries older than the specified duration.
func (d *DB) PruneCache(olderThan time.Duration) (int64, error) {
	// Same layout as SQLite's CURRENT_TIMESTAMP
	deadline := time.Now().Add(-olderThan).UTC().Format("2006-01-02 15:04:05")
	res, err := d.Exec("DELETE FROM cache WHERE created_at < ?", deadline)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	return res.RowsAffected()
}

// RecordLoad appends one geometry load attempt to the history.
func (d *DB) RecordLoad(ctx context.Context, source string, countries int, loadErr error) error {
	msg := ""
	if loadErr != nil {
		msg = loadErr.Error()
	}
	_, err := d.ExecContext(ctx,
		"INSERT INTO geometry_loads (source, countries, error, loaded_at) VALUES (?, ?, ?, ?)",
		source, countries, msg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record load: %w", err)
	}
	return nil
}

// LoadHistory returns the most recent load attempts, newest first.
func (d *DB) LoadHistory(ctx context.Context, limit int) ([]LoadRecord, error) {
	rows, err := d.QueryContext(ctx,
		"SELECT source, countries, error, loaded_at FROM geometry_loads ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query load history: %w", err)
	}
	defer rows.Close()

	var out []LoadRecord
	for rows.Next() {
		var r LoadRecord
		if err := rows.Scan(&r.Source, &r.Countries, &r.Error, &r.LoadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan load record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			value BLOB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS geometry_loads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT,
			countries INTEGER,
			error TEXT,
			loaded_at DATETIME
		);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}
	return nil
}
