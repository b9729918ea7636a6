package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/starford/mnemo/internal/store"
)

// Search performs a case-insensitive keyword search over the owner's notes.
func (s *Store) Search(ctx context.Context, ownerID, query string, limit int) ([]store.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, title, COALESCE(summary, ''), left(raw_text, 200)
		FROM notes
		WHERE user_id = $1
		  AND (title ILIKE $2 OR raw_text ILIKE $2 OR summary ILIKE $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, ownerID, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: search: %w", err)
	}
	defer rows.Close()

	out := []store.SearchHit{}
	for rows.Next() {
		var h store.SearchHit
		if err := rows.Scan(&h.ID, &h.Title, &h.Summary, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Graph returns the owner's most recent notes and the edges among them.
func (s *Store) Graph(ctx context.Context, ownerID string, limit int) ([]store.GraphNode, []store.Edge, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, title, COALESCE(summary, ''), created_at
		FROM notes
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: graph nodes: %w", err)
	}
	defer rows.Close()

	nodes := []store.GraphNode{}
	for rows.Next() {
		var n store.GraphNode
		if err := rows.Scan(&n.ID, &n.Title, &n.Summary, &n.CreatedAt); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	edgeRows, err := s.pool.Query(ctx, `
		WITH recent AS (
			SELECT id FROM notes WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
		)
		SELECT user_id, source_note_id::text, target_note_id::text, strength, reason
		FROM edges
		WHERE user_id = $1
		  AND source_note_id IN (SELECT id FROM recent)
		  AND target_note_id IN (SELECT id FROM recent)
		ORDER BY strength DESC
	`, ownerID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: graph edges: %w", err)
	}
	defer edgeRows.Close()

	edges := []store.Edge{}
	for edgeRows.Next() {
		var (
			e      store.Edge
			reason []byte
		)
		if err := edgeRows.Scan(&e.UserID, &e.SourceNoteID, &e.TargetNoteID, &e.Strength, &reason); err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal(reason, &e.Reason); err != nil {
			return nil, nil, fmt.Errorf("postgres: decode edge reason: %w", err)
		}
		edges = append(edges, e)
	}
	return nodes, edges, edgeRows.Err()
}

// Stats counts the owner's notes, edges and tags.
func (s *Store) Stats(ctx context.Context, ownerID string) (*store.Stats, error) {
	var st store.Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM notes WHERE user_id = $1),
			(SELECT count(*) FROM edges WHERE user_id = $1),
			(SELECT count(*) FROM tags  WHERE user_id = $1)
	`, ownerID).Scan(&st.Notes, &st.Connections, &st.Tags)
	if err != nil {
		return nil, fmt.Errorf("postgres: stats: %w", err)
	}
	return &st, nil
}
