package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/starford/mnemo/internal/store"
)

// UpsertEdges writes edges in one transaction; re-linking refreshes
// strength and reason in place.
func (s *Store) UpsertEdges(ctx context.Context, edges []store.Edge) error {
	if len(edges) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (user_id, source_note_id, target_note_id, strength, reason)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, source_note_id, target_note_id) DO UPDATE SET
			strength = excluded.strength,
			reason   = excluded.reason
	`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare edge upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		reason, err := json.Marshal(e.Reason)
		if err != nil {
			return fmt.Errorf("sqlite: encode edge reason: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, e.UserID, e.SourceNoteID, e.TargetNoteID, e.Strength, string(reason)); err != nil {
			return fmt.Errorf("sqlite: upsert edge: %w", err)
		}
	}
	return tx.Commit()
}

// Related returns the outgoing edges of noteID joined with their targets.
func (s *Store) Related(ctx context.Context, noteID string) ([]store.RelatedNote, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT n.id, n.title, COALESCE(n.summary, ''), e.strength
		FROM edges e
		JOIN notes n ON n.id = e.target_note_id
		WHERE e.source_note_id = ?
		ORDER BY e.strength DESC, n.id
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: related: %w", err)
	}
	defer rows.Close()

	out := []store.RelatedNote{}
	for rows.Next() {
		var r store.RelatedNote
		if err := rows.Scan(&r.ID, &r.Title, &r.Summary, &r.Strength); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanEdges(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]store.Edge, error) {
	out := []store.Edge{}
	for rows.Next() {
		var (
			e      store.Edge
			reason string
		)
		if err := rows.Scan(&e.UserID, &e.SourceNoteID, &e.TargetNoteID, &e.Strength, &reason); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(reason), &e.Reason); err != nil {
			return nil, fmt.Errorf("sqlite: decode edge reason: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
