package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/mnemo/internal/store"
)

// Graph returns the owner's most recent notes and the edges among them.
func (s *Store) Graph(ctx context.Context, ownerID string, limit int) ([]store.GraphNode, []store.Edge, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, title, COALESCE(summary, ''), created_at
		FROM notes
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, ownerID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: graph nodes: %w", err)
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

	edgeRows, err := s.conn.QueryContext(ctx, `
		WITH recent AS (
			SELECT id FROM notes WHERE user_id = ? ORDER BY created_at DESC LIMIT ?
		)
		SELECT user_id, source_note_id, target_note_id, strength, reason
		FROM edges
		WHERE user_id = ?
		  AND source_note_id IN (SELECT id FROM recent)
		  AND target_note_id IN (SELECT id FROM recent)
		ORDER BY strength DESC
	`, ownerID, limit, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: graph edges: %w", err)
	}
	defer edgeRows.Close()

	edges, err := scanEdges(edgeRows)
	if err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

// Stats counts the owner's notes, edges and tags.
func (s *Store) Stats(ctx context.Context, ownerID string) (*store.Stats, error) {
	var st store.Stats
	err := s.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM notes WHERE user_id = ?),
			(SELECT count(*) FROM edges WHERE user_id = ?),
			(SELECT count(*) FROM tags  WHERE user_id = ?)
	`, ownerID, ownerID, ownerID).Scan(&st.Notes, &st.Connections, &st.Tags)
	if err != nil {
		return nil, fmt.Errorf("sqlite: stats: %w", err)
	}
	return &st, nil
}

func scanHits(rows *sql.Rows) ([]store.SearchHit, error) {
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
