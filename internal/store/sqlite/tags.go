package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/mnemo/internal/store"
)

// UpsertTags resolves names to tags of ownerID inside one transaction.
func (s *Store) UpsertTags(ctx context.Context, ownerID string, names []string) ([]store.Tag, error) {
	if len(names) == 0 {
		return []store.Tag{}, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tags (id, user_id, name, name_key) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, name_key) DO UPDATE SET name = tags.name
		RETURNING id, name
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: prepare tag upsert: %w", err)
	}
	defer stmt.Close()

	out := make([]store.Tag, 0, len(names))
	for _, name := range names {
		t := store.Tag{UserID: ownerID}
		if err := stmt.QueryRowContext(ctx, uuid.NewString(), ownerID, name, store.TagKey(name)).Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("sqlite: upsert tag %q: %w", name, err)
		}
		out = append(out, t)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit tags: %w", err)
	}
	return out, nil
}

// UpsertNoteTags attaches tagIDs to noteID; existing pairs are left alone.
func (s *Store) UpsertNoteTags(ctx context.Context, noteID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO note_tags (note_id, tag_id) VALUES (?, ?)
		ON CONFLICT(note_id, tag_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare note tag upsert: %w", err)
	}
	defer stmt.Close()

	for _, id := range tagIDs {
		if _, err := stmt.ExecContext(ctx, noteID, id); err != nil {
			return fmt.Errorf("sqlite: upsert note tag: %w", err)
		}
	}
	return tx.Commit()
}

// NoteTags returns the tags attached to noteID ordered by name.
func (s *Store) NoteTags(ctx context.Context, noteID string) ([]store.Tag, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT t.id, t.user_id, t.name
		FROM note_tags nt
		JOIN tags t ON t.id = nt.tag_id
		WHERE nt.note_id = ?
		ORDER BY t.name_key
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: note tags: %w", err)
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
