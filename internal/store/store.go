// Package store provides the SQLite-backed implementations of the
// login service's collaborator contracts for standalone deployments.
// Grid installations that keep accounts, presence or the region
// registry in separate services substitute their own implementations
// at composition time.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/halcyongrid/logind/internal/auth"
	"github.com/halcyongrid/logind/internal/services"
	"github.com/halcyongrid/logind/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore backs every local collaborator with one SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ services.AccountDirectory = (*SQLiteStore)(nil)
	_ auth.CredentialStore      = (*SQLiteStore)(nil)
	_ services.Presence         = (*SQLiteStore)(nil)
	_ services.Grid             = (*SQLiteStore)(nil)
	_ services.Inventory        = (*SQLiteStore)(nil)
	_ services.Friends          = (*SQLiteStore)(nil)
	_ services.Avatars          = (*SQLiteStore)(nil)
)

// NewSQLite opens (creating if needed) the database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		scope_id TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		password_hash TEXT NOT NULL DEFAULT '',
		password_salt TEXT NOT NULL DEFAULT '',
		user_level INTEGER NOT NULL DEFAULT 0,
		banned INTEGER NOT NULL DEFAULT 0,
		tos_accepted INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_name ON users(scope_id, first_name, last_name);

	CREATE TABLE IF NOT EXISTS auth_tokens (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tokens_user ON auth_tokens(user_id);

	CREATE TABLE IF NOT EXISTS presence (
		session_id TEXT PRIMARY KEY,
		secure_session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		logged_in_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_presence_user ON presence(user_id);

	CREATE TABLE IF NOT EXISTS locations (
		user_id TEXT PRIMARY KEY,
		home_region_id TEXT NOT NULL DEFAULT '',
		home_pos_x REAL NOT NULL DEFAULT 0, home_pos_y REAL NOT NULL DEFAULT 0, home_pos_z REAL NOT NULL DEFAULT 0,
		home_look_x REAL NOT NULL DEFAULT 0, home_look_y REAL NOT NULL DEFAULT 0, home_look_z REAL NOT NULL DEFAULT 0,
		last_region_id TEXT NOT NULL DEFAULT '',
		last_pos_x REAL NOT NULL DEFAULT 0, last_pos_y REAL NOT NULL DEFAULT 0, last_pos_z REAL NOT NULL DEFAULT 0,
		last_look_x REAL NOT NULL DEFAULT 0, last_look_y REAL NOT NULL DEFAULT 0, last_look_z REAL NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS regions (
		region_id TEXT PRIMARY KEY,
		scope_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		coord_x INTEGER NOT NULL,
		coord_y INTEGER NOT NULL,
		host_name TEXT NOT NULL,
		port INTEGER NOT NULL,
		server_uri TEXT NOT NULL DEFAULT '',
		safe INTEGER NOT NULL DEFAULT 1,
		is_default INTEGER NOT NULL DEFAULT 0,
		is_fallback INTEGER NOT NULL DEFAULT 0,
		is_safe INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_regions_name ON regions(scope_id, name);

	CREATE TABLE IF NOT EXISTS inventory_folders (
		folder_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		parent_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		type INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_folders_user ON inventory_folders(user_id);

	CREATE TABLE IF NOT EXISTS gestures (
		item_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		asset_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_gestures_user ON gestures(user_id);

	CREATE TABLE IF NOT EXISTS friends (
		user_id TEXT NOT NULL,
		friend_id TEXT NOT NULL,
		my_rights INTEGER NOT NULL DEFAULT 0,
		their_rights INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, friend_id)
	);

	CREATE TABLE IF NOT EXISTS avatars (
		user_id TEXT PRIMARY KEY,
		serial INTEGER NOT NULL DEFAULT 0,
		appearance_json TEXT NOT NULL DEFAULT ''
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// execRetry runs a write statement, retrying with exponential backoff
// when SQLite reports a concurrency conflict.
func (s *SQLiteStore) execRetry(ctx context.Context, query string, args ...interface{}) error {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		_, err = s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) {
			return err
		}
		if i < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<i))
		}
	}
	return fmt.Errorf("after %d attempts: %w", maxRetries, err)
}
