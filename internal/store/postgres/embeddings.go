package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/store"
)

// InsertEmbedding appends an embedding. The vector length must match every
// earlier vector stored for the same model.
func (s *Store) InsertEmbedding(ctx context.Context, e *store.Embedding) error {
	if len(e.Vector) == 0 {
		return fmt.Errorf("postgres: insert embedding: empty vector")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort on failure path

	var dims int
	err = tx.QueryRow(ctx, `SELECT dims FROM embeddings WHERE model = $1 LIMIT 1`, e.Model).Scan(&dims)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return fmt.Errorf("postgres: embedding dims: %w", err)
	case dims != len(e.Vector):
		return fmt.Errorf("postgres: model %s stores %d dims, got %d: %w", e.Model, dims, len(e.Vector), apperr.ErrConflict)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO embeddings (id, note_id, model, dims, vector, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.NoteID, e.Model, len(e.Vector), pgvector.NewVector(e.Vector), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert embedding: %w", err)
	}
	return tx.Commit(ctx)
}

// latestEmbeddings selects the newest embedding per note of $1 for model $2.
const latestEmbeddings = `
	SELECT DISTINCT ON (e.note_id) e.note_id, e.vector
	FROM embeddings e
	JOIN notes n ON n.id = e.note_id
	WHERE n.user_id = $1 AND e.model = $2
	ORDER BY e.note_id, e.created_at DESC, e.seq DESC
`

// MatchNotes ranks the owner's other notes against the latest embedding of
// noteID using the pgvector cosine-distance operator.
func (s *Store) MatchNotes(ctx context.Context, noteID, ownerID string, limit int) ([]store.Neighbor, error) {
	var (
		model string
		vec   pgvector.Vector
	)
	err := s.pool.QueryRow(ctx, `
		SELECT model, vector FROM embeddings
		WHERE note_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`, noteID).Scan(&model, &vec)
	if errors.Is(err, pgx.ErrNoRows) {
		return []store.Neighbor{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: source embedding: %w", err)
	}
	return s.rank(ctx, ownerID, noteID, model, vec, limit)
}

// MatchVector ranks the owner's notes against vector.
func (s *Store) MatchVector(ctx context.Context, ownerID, model string, vector []float32, limit int) ([]store.Neighbor, error) {
	return s.rank(ctx, ownerID, "", model, pgvector.NewVector(vector), limit)
}

func (s *Store) rank(ctx context.Context, ownerID, excludeID, model string, query pgvector.Vector, limit int) ([]store.Neighbor, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT l.note_id::text, 1 - (l.vector <=> $3) AS similarity
		FROM (`+latestEmbeddings+`) l
		WHERE l.note_id::text <> $4
		ORDER BY similarity DESC, l.note_id
		LIMIT $5
	`, ownerID, model, query, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: match notes: %w", err)
	}
	defer rows.Close()

	out := []store.Neighbor{}
	for rows.Next() {
		var n store.Neighbor
		if err := rows.Scan(&n.NoteID, &n.Similarity); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
