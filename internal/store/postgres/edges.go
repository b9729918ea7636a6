package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/starford/mnemo/internal/store"
)

// UpsertEdges writes edges in one transaction; re-linking refreshes
// strength and reason in place.
func (s *Store) UpsertEdges(ctx context.Context, edges []store.Edge) error {
	if len(edges) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort on failure path

	batch := &pgx.Batch{}
	for _, e := range edges {
		reason, err := json.Marshal(e.Reason)
		if err != nil {
			return fmt.Errorf("postgres: encode edge reason: %w", err)
		}
		batch.Queue(`
			INSERT INTO edges (user_id, source_note_id, target_note_id, strength, reason)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, source_note_id, target_note_id) DO UPDATE SET
				strength = EXCLUDED.strength,
				reason   = EXCLUDED.reason
		`, e.UserID, e.SourceNoteID, e.TargetNoteID, e.Strength, reason)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: upsert edges: %w", err)
	}
	return tx.Commit(ctx)
}

// Related returns the outgoing edges of noteID joined with their targets.
func (s *Store) Related(ctx context.Context, noteID string) ([]store.RelatedNote, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT n.id::text, n.title, COALESCE(n.summary, ''), e.strength
		FROM edges e
		JOIN notes n ON n.id = e.target_note_id
		WHERE e.source_note_id = $1
		ORDER BY e.strength DESC, n.id
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("postgres: related: %w", err)
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
