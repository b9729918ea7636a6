//go:build !sqlite_fts5

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/mnemo/internal/store"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; Search scans the notes table with LIKE.
	return nil
}

// Search performs a LIKE-based keyword search over the owner's notes
// (fallback when FTS5 is not compiled in).
func (s *Store) Search(ctx context.Context, ownerID, query string, limit int) ([]store.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, title, COALESCE(summary, ''), substr(raw_text, 1, 200)
		FROM notes
		WHERE user_id = ? AND (title LIKE ? OR raw_text LIKE ? OR summary LIKE ?)
		ORDER BY created_at DESC
		LIMIT ?
	`, ownerID, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search: %w", err)
	}
	return scanHits(rows)
}
