// Package store is the server's metadata database (spec section 4.7):
// file metadata, compiled permission rules, and the rule-to-file link
// table, all backed by SQLite in WAL mode via internal/db.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS file_metadata (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	path          TEXT NOT NULL UNIQUE,
	hash          TEXT NOT NULL,
	signature     TEXT NOT NULL,
	file_size     INTEGER NOT NULL,
	last_modified TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_file_metadata_path_prefix ON file_metadata(path);

CREATE TABLE IF NOT EXISTS permission_rule (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	permfile_dir    TEXT NOT NULL,
	permfile_depth  INTEGER NOT NULL,
	priority        INTEGER NOT NULL,
	path_pattern    TEXT NOT NULL,
	user            TEXT NOT NULL,
	can_read        INTEGER NOT NULL DEFAULT 0,
	can_create      INTEGER NOT NULL DEFAULT 0,
	can_write       INTEGER NOT NULL DEFAULT 0,
	admin           INTEGER NOT NULL DEFAULT 0,
	disallow        INTEGER NOT NULL DEFAULT 0,
	terminal        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_permission_rule_dir ON permission_rule(permfile_dir);

CREATE TABLE IF NOT EXISTS rule_file_link (
	rule_id   INTEGER NOT NULL REFERENCES permission_rule(id) ON DELETE CASCADE,
	file_path TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rule_file_link_path ON rule_file_link(file_path);

CREATE TABLE IF NOT EXISTS users (
	email      TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store wraps the server's sqlite connection with the typed operations
// spec section 4.7 defines.
type Store struct {
	db *sqlx.DB
}

// New wraps an already-opened sqlx.DB (built via internal/db) and
// ensures the schema exists.
func New(ctx context.Context, db *sqlx.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for components (like migration) that
// need raw access.
func (s *Store) DB() *sqlx.DB {
	return s.db
}
