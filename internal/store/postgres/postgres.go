// Package postgres implements store.Store on PostgreSQL with pgvector.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/starford/mnemo/internal/store"
)

const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS notes (
	id           UUID PRIMARY KEY,
	user_id      TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	raw_text     TEXT NOT NULL DEFAULT '',
	cleaned_text TEXT,
	summary      TEXT,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_user_created ON notes(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS embeddings (
	id         UUID PRIMARY KEY,
	seq        BIGSERIAL,
	note_id    UUID NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	model      TEXT NOT NULL,
	dims       INTEGER NOT NULL,
	vector     vector NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_embeddings_note_model ON embeddings(note_id, model, created_at DESC);

CREATE TABLE IF NOT EXISTS tags (
	id       UUID PRIMARY KEY,
	user_id  TEXT NOT NULL,
	name     TEXT NOT NULL,
	name_key TEXT NOT NULL,
	UNIQUE(user_id, name_key)
);

CREATE TABLE IF NOT EXISTS note_tags (
	note_id UUID NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	tag_id  UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (note_id, tag_id)
);

CREATE TABLE IF NOT EXISTS edges (
	user_id        TEXT NOT NULL,
	source_note_id UUID NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	target_note_id UUID NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	strength       DOUBLE PRECISION NOT NULL,
	reason         JSONB NOT NULL DEFAULT '{}',
	UNIQUE(user_id, source_note_id, target_note_id)
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_note_id);
`

// Store wraps a pgx pool with note-store operations.
type Store struct {
	pool *pgxpool.Pool
}

// Verify *Store satisfies store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Open connects to dsn, applies the schema and returns the store.
// maxConns <= 0 keeps the pgx default.
func Open(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping checks the pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
