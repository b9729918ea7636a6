//go:build sqlite_fts5

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/mnemo/internal/store"
)

// notes_fts is an external-content index kept in step with notes by triggers.
const ftsSchemaSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
	title,
	raw_text,
	summary,
	content = 'notes',
	content_rowid = 'rowid',
	tokenize = 'unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS notes_fts_ai AFTER INSERT ON notes BEGIN
	INSERT INTO notes_fts(rowid, title, raw_text, summary)
	VALUES (new.rowid, new.title, new.raw_text, COALESCE(new.summary, ''));
END;

CREATE TRIGGER IF NOT EXISTS notes_fts_ad AFTER DELETE ON notes BEGIN
	INSERT INTO notes_fts(notes_fts, rowid, title, raw_text, summary)
	VALUES ('delete', old.rowid, old.title, old.raw_text, COALESCE(old.summary, ''));
END;

CREATE TRIGGER IF NOT EXISTS notes_fts_au AFTER UPDATE ON notes BEGIN
	INSERT INTO notes_fts(notes_fts, rowid, title, raw_text, summary)
	VALUES ('delete', old.rowid, old.title, old.raw_text, COALESCE(old.summary, ''));
	INSERT INTO notes_fts(rowid, title, raw_text, summary)
	VALUES (new.rowid, new.title, new.raw_text, COALESCE(new.summary, ''));
END;
`

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(ftsSchemaSQL)
	return err
}

// Search performs an FTS5 full-text search over the owner's notes. The query
// is matched as a single phrase so user input never reaches FTS syntax.
func (s *Store) Search(ctx context.Context, ownerID, query string, limit int) ([]store.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	phrase := `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
	rows, err := s.conn.QueryContext(ctx, `
		SELECT n.id,
		       n.title,
		       COALESCE(n.summary, ''),
		       snippet(notes_fts, 1, '<b>', '</b>', '...', 32)
		FROM notes_fts
		JOIN notes n ON n.rowid = notes_fts.rowid
		WHERE notes_fts MATCH ? AND n.user_id = ?
		ORDER BY rank
		LIMIT ?
	`, phrase, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search: %w", err)
	}
	return scanHits(rows)
}
