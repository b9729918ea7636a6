package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/starford/mnemo/internal/store"
)

// UpsertTags resolves names to tags of ownerID inside one transaction.
func (s *Store) UpsertTags(ctx context.Context, ownerID string, names []string) ([]store.Tag, error) {
	if len(names) == 0 {
		return []store.Tag{}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort on failure path

	batch := &pgx.Batch{}
	for _, name := range names {
		batch.Queue(`
			INSERT INTO tags (id, user_id, name, name_key) VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, name_key) DO UPDATE SET name = tags.name
			RETURNING id::text, name
		`, uuid.NewString(), ownerID, name, store.TagKey(name))
	}
	results := tx.SendBatch(ctx, batch)

	out := make([]store.Tag, 0, len(names))
	for _, name := range names {
		t := store.Tag{UserID: ownerID}
		if err := results.QueryRow().Scan(&t.ID, &t.Name); err != nil {
			results.Close()
			return nil, fmt.Errorf("postgres: upsert tag %q: %w", name, err)
		}
		out = append(out, t)
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("postgres: upsert tags: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit tags: %w", err)
	}
	return out, nil
}

// UpsertNoteTags attaches tagIDs to noteID; existing pairs are left alone.
func (s *Store) UpsertNoteTags(ctx context.Context, noteID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO note_tags (note_id, tag_id)
		SELECT $1::uuid, unnest($2::text[])::uuid
		ON CONFLICT (note_id, tag_id) DO NOTHING
	`, noteID, tagIDs)
	if err != nil {
		return fmt.Errorf("postgres: upsert note tags: %w", err)
	}
	return nil
}

// NoteTags returns the tags attached to noteID ordered by name.
func (s *Store) NoteTags(ctx context.Context, noteID string) ([]store.Tag, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id::text, t.user_id, t.name
		FROM note_tags nt
		JOIN tags t ON t.id = nt.tag_id
		WHERE nt.note_id = $1
		ORDER BY t.name_key
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("postgres: note tags: %w", err)
	}
	defer rows.Close()

	out := []store.Tag{}
	for rows.Next() {
		var t store.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
