package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/store"
)

const noteColumns = `id, user_id, title, raw_text, cleaned_text, summary, created_at, updated_at`

// CreateNote inserts a new note.
func (s *Store) CreateNote(ctx context.Context, n *store.Note) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, title, raw_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.Title, n.RawText, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: create note: %w", err)
	}
	return nil
}

// GetNote returns the note with id or apperr.ErrNotFound.
func (s *Store) GetNote(ctx context.Context, id string) (*store.Note, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get note: %w", err)
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
	if err := s.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes WHERE user_id = ?`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: count notes: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+noteColumns+` FROM notes
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: list notes: %w", err)
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
	res, err := s.conn.ExecContext(ctx, `
		UPDATE notes SET cleaned_text = ?, summary = ?, updated_at = ? WHERE id = ?
	`, cleanedText, summary, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: update note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (*store.Note, error) {
	var (
		n                store.Note
		cleaned, summary sql.NullString
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.RawText, &cleaned, &summary, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.CleanedText = cleaned.String
	n.Summary = summary.String
	return &n, nil
}
