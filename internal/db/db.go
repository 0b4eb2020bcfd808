package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var defaultDB *sql.DB

const (
	createHashCacheSQL = `
CREATE TABLE IF NOT EXISTS file_hash_cache_tab (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	location VARCHAR(1024) NOT NULL,
	file_modtime BIGINT NOT NULL,
	file_size BIGINT NOT NULL DEFAULT 0,
	hash VARCHAR(32) NOT NULL,
	create_time BIGINT NOT NULL
);`

	createHashCacheIndexSQL = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_file_hash_cache_tab_location
ON file_hash_cache_tab(location);`

	createScrapeCacheSQL = `
CREATE TABLE IF NOT EXISTS scrape_cache_tab (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source VARCHAR(64) NOT NULL,
	cache_key VARCHAR(512) NOT NULL,
	payload TEXT NOT NULL,
	update_time BIGINT NOT NULL
);`

	createScrapeCacheIndexSQL = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_scrape_cache_tab_key
ON scrape_cache_tab(source, cache_key);`
)

var schema = []string{
	createHashCacheSQL,
	createHashCacheIndexSQL,
	createScrapeCacheSQL,
	createScrapeCacheIndexSQL,
}

// Open connects to the sqlite cache file, creating its directory and schema
// when needed.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %s: %w", path, err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// SetDefault assigns the global database instance.
func SetDefault(db *sql.DB) {
	defaultDB = db
}

// Default returns the configured global database instance.
func Default() *sql.DB {
	return defaultDB
}

// EnsureSchema initialises required tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
