// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C toolchain. ":memory:" gives a throwaway database for tests.
//
// database/sql recap:
//   - sql.DB   is a connection pool, not a single connection
//   - sql.Tx   is a transaction pinned to one connection
//   - sql.Rows must always be closed
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// timeLayout is how timestamps are stored: fixed width, always UTC, so that
// text order equals time order and ORDER BY created_at works.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps the sql.DB pool and implements repository.TweetRepository.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/tweetsync.db" → file-based, persistent
//   - ":memory:"          → in-memory, gone on Close
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would be its own empty database,
	// so the pool is pinned to a single connection.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets the HTTP readers keep going while a sync pass writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable; used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate is idempotent: CREATE ... IF NOT EXISTS plus addColumnIfNotExists
// for columns added after the first release.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS tweets (
			id                     INTEGER PRIMARY KEY AUTOINCREMENT,
			id_str                 TEXT NOT NULL UNIQUE,
			text                   TEXT NOT NULL DEFAULT '',
			source                 TEXT NOT NULL DEFAULT '',
			user_id                INTEGER NOT NULL DEFAULT 0,
			user_name              TEXT NOT NULL DEFAULT '',
			user_profile_image_url TEXT NOT NULL DEFAULT '',
			created_at             TEXT NOT NULL DEFAULT '',
			approved               INTEGER NOT NULL DEFAULT 0,
			raw                    TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_tweets_created_at ON tweets(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating tweets table: %w", err)
	}

	// Not part of the first schema; older databases get it here.
	if err := db.addColumnIfNotExists("tweets", "entities_media_0_media_url",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding entities_media_0_media_url to tweets: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tweets_approved_created_at ON tweets(approved, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating tweets approved index: %w", err)
	}

	return nil
}

// addColumnIfNotExists makes ALTER TABLE ADD COLUMN safe to run repeatedly.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
