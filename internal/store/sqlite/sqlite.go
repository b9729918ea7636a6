// Package sqlite implements store.Store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/mnemo/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	raw_text     TEXT NOT NULL DEFAULT '',
	cleaned_text TEXT,
	summary      TEXT,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_user_created ON notes(user_id, created_at);

CREATE TABLE IF NOT EXISTS embeddings (
	id         TEXT PRIMARY KEY,
	note_id    TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	model      TEXT NOT NULL,
	dims       INTEGER NOT NULL,
	vector     BLOB NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_embeddings_note_model ON embeddings(note_id, model, created_at);

CREATE TABLE IF NOT EXISTS tags (
	id       TEXT PRIMARY KEY,
	user_id  TEXT NOT NULL,
	name     TEXT NOT NULL,
	name_key TEXT NOT NULL,
	UNIQUE(user_id, name_key)
);

CREATE TABLE IF NOT EXISTS note_tags (
	note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	tag_id  TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (note_id, tag_id)
);

CREATE TABLE IF NOT EXISTS edges (
	user_id        TEXT NOT NULL,
	source_note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	target_note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	strength       REAL NOT NULL,
	reason         TEXT NOT NULL DEFAULT '{}',
	UNIQUE(user_id, source_note_id, target_note_id)
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_note_id);
`

// Store wraps a sql.DB with note-store operations.
type Store struct {
	conn *sql.DB
}

// Verify *Store satisfies store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: init fts: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
