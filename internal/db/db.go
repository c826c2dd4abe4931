// Package db stores credit snapshots, cached subscriptions and small
// key/value state in SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection with application-specific methods.
type DB struct {
	*sql.DB
	path string
}

// New creates a new database connection and initializes the schema.
func New(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path}
	for _, step := range []struct {
		name string
		fn   func() error
	}{
		{"configure database", db.configure},
		{"create schema", db.createSchema},
		{"fix legacy time formats", db.FixLegacyTimeFormats},
	} {
		if err := step.fn(); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to %s: %w", step.name, err)
		}
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// pragmas tune SQLite for one writer and many short reads.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

// schema is applied on every open; each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credit_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subscription_id INTEGER NOT NULL,
		plan_name TEXT,
		credits REAL NOT NULL,
		credit_limit REAL NOT NULL,
		reset_times INTEGER DEFAULT 0,
		timestamp TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_snapshots_sub_time ON credit_snapshots(subscription_id, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_snapshots_timestamp ON credit_snapshots(timestamp)`,
	`CREATE TABLE IF NOT EXISTS subscription_cache (
		id INTEGER PRIMARY KEY,
		payload TEXT NOT NULL,
		fetched_at TEXT NOT NULL
	)`,
}

// configure sets up database pragmas. A single connection keeps the
// kv writes of the scheduler and the UI serialized.
func (db *DB) configure() error {
	db.SetMaxOpenConns(1)
	return db.execAll(pragmas)
}

func (db *DB) createSchema() error {
	return db.execAll(schema)
}

func (db *DB) execAll(statements []string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", strings.SplitN(stmt, "\n", 2)[0], err)
		}
	}
	return nil
}

// Checkpoint truncates the write-ahead log.
func (db *DB) Checkpoint(ctx context.Context) error {
	_, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Vacuum rebuilds the database file to reclaim free pages.
func (db *DB) Vacuum(ctx context.Context) error {
	_, err := db.ExecContext(ctx, "VACUUM")
	return err
}

// Close checkpoints and closes the connection.
func (db *DB) Close() error {
	_ = db.Checkpoint(context.Background())
	return db.DB.Close()
}
