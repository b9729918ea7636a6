package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/store"
)

const noteColumns = `id::text, user_id, title, raw_text, COALESCE(cleaned_text, ''), COALESCE(summary, ''), created_at, updated_at`

// CreateNote inserts a new note.
func (s *Store) CreateNote(ctx context.Context, n *store.Note) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notes (id, user_id, title, raw_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.ID, n.UserID, n.Title, n.RawText, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create note: %w", err)
	}
	return nil
}

// GetNote returns the note with id or apperr.ErrNotFound.
func (s *Store) GetNote(ctx context.Context, id string) (*store.Note, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, id)
	n, err := scanNote(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get note: %w", err)
	}
	return n, nil
}

// ListNotes returns a page of the owner's notes, newest first.
func (s *Store) ListNotes(ctx context.Context, ownerID string, limit, offset int) ([]store.Note, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM notes WHERE user_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count notes: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+noteColumns+` FROM notes
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list notes: %w", err)
	}
	defer rows.Close()

	var out []store.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// UpdateNoteDerived stores the ingestion outputs on the note.
func (s *Store) UpdateNoteDerived(ctx context.Context, id, cleanedText, summary string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notes SET cleaned_text = $1, summary = $2, updated_at = $3 WHERE id = $4
	`, cleanedText, summary, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: update note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func scanNote(row pgx.Row) (*store.Note, error) {
	var n store.Note
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.RawText, &n.CleanedText, &n.Summary, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}
