package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/store"
)

// InsertEmbedding appends an embedding. The vector length must match every
// earlier vector stored for the same model.
func (s *Store) InsertEmbedding(ctx context.Context, e *store.Embedding) error {
	if len(e.Vector) == 0 {
		return fmt.Errorf("sqlite: insert embedding: empty vector")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var dims int
	err = tx.QueryRowContext(ctx, `SELECT dims FROM embeddings WHERE model = ? LIMIT 1`, e.Model).Scan(&dims)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("sqlite: embedding dims: %w", err)
	case dims != len(e.Vector):
		return fmt.Errorf("sqlite: model %s stores %d dims, got %d: %w", e.Model, dims, len(e.Vector), apperr.ErrConflict)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO embeddings (id, note_id, model, dims, vector, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.NoteID, e.Model, len(e.Vector), encodeVector(e.Vector), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: insert embedding: %w", err)
	}
	return tx.Commit()
}

// MatchNotes ranks the owner's other notes against the latest embedding of
// noteID. A note without an embedding has no neighbours.
func (s *Store) MatchNotes(ctx context.Context, noteID, ownerID string, limit int) ([]store.Neighbor, error) {
	var (
		model string
		blob  []byte
	)
	err := s.conn.QueryRowContext(ctx, `
		SELECT model, vector FROM embeddings
		WHERE note_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, noteID).Scan(&model, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return []store.Neighbor{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: source embedding: %w", err)
	}
	return s.rank(ctx, ownerID, noteID, model, decodeVector(blob), limit)
}

// MatchVector ranks the owner's notes against vector.
func (s *Store) MatchVector(ctx context.Context, ownerID, model string, vector []float32, limit int) ([]store.Neighbor, error) {
	return s.rank(ctx, ownerID, "", model, vector, limit)
}

func (s *Store) rank(ctx context.Context, ownerID, excludeID, model string, query []float32, limit int) ([]store.Neighbor, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT e.note_id, e.vector
		FROM embeddings e
		JOIN notes n ON n.id = e.note_id
		WHERE n.user_id = ? AND e.note_id <> ? AND e.model = ?
		  AND e.rowid = (
			SELECT e2.rowid FROM embeddings e2
			WHERE e2.note_id = e.note_id AND e2.model = e.model
			ORDER BY e2.created_at DESC, e2.rowid DESC
			LIMIT 1
		  )
	`, ownerID, excludeID, model)
	if err != nil {
		return nil, fmt.Errorf("sqlite: candidate embeddings: %w", err)
	}
	defer rows.Close()

	candidates := []store.Neighbor{}
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		candidates = append(candidates, store.Neighbor{
			NoteID:     id,
			Similarity: store.Cosine(query, decodeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return store.RankNeighbors(candidates, limit), nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
