// Package store defines the note store collaborator: five owner-scoped
// collections (notes, embeddings, tags, note_tags, edges) and the
// nearest-neighbour query the similarity linker depends on.
package store

import (
	"context"
	"time"
)

// Store is the note store consumed by the ingestion pipeline and the API.
// Every write keyed by a uniqueness constraint is an upsert, so re-running
// any step is idempotent.
type Store interface {
	// CreateNote inserts n. ID and timestamps are filled in when empty.
	CreateNote(ctx context.Context, n *Note) error
	// GetNote returns the note or apperr.ErrNotFound.
	GetNote(ctx context.Context, id string) (*Note, error)
	// ListNotes returns the owner's notes, newest first, and the total count.
	ListNotes(ctx context.Context, ownerID string, limit, offset int) ([]Note, int, error)
	// UpdateNoteDerived sets cleaned_text, summary and updated_at.
	UpdateNoteDerived(ctx context.Context, id, cleanedText, summary string, at time.Time) error

	// InsertEmbedding appends a new embedding row. Rows are never updated.
	InsertEmbedding(ctx context.Context, e *Embedding) error

	// UpsertTags resolves every name to a tag of ownerID in one transaction,
	// creating missing ones. Names must already be normalised and unique by
	// key. The result is in input order.
	UpsertTags(ctx context.Context, ownerID string, names []string) ([]Tag, error)
	// UpsertNoteTags attaches tagIDs to noteID in one transaction.
	UpsertNoteTags(ctx context.Context, noteID string, tagIDs []string) error
	// NoteTags returns the tags attached to noteID ordered by name.
	NoteTags(ctx context.Context, noteID string) ([]Tag, error)

	// UpsertEdges writes edges in one transaction keyed by
	// (owner, source, target); existing rows get fresh strength and reason.
	UpsertEdges(ctx context.Context, edges []Edge) error
	// Related returns the outgoing edges of noteID with their target notes,
	// strongest first.
	Related(ctx context.Context, noteID string) ([]RelatedNote, error)

	// MatchNotes ranks up to limit other notes of ownerID by descending
	// cosine similarity between their latest embedding and the latest
	// embedding of noteID (same model only).
	MatchNotes(ctx context.Context, noteID, ownerID string, limit int) ([]Neighbor, error)
	// MatchVector ranks up to limit notes of ownerID against vector.
	MatchVector(ctx context.Context, ownerID, model string, vector []float32, limit int) ([]Neighbor, error)

	// Search performs a keyword search over raw text, summary and title.
	Search(ctx context.Context, ownerID, query string, limit int) ([]SearchHit, error)
	// Graph returns the owner's most recent notes and the edges among them.
	Graph(ctx context.Context, ownerID string, limit int) ([]GraphNode, []Edge, error)
	// Stats returns per-owner totals.
	Stats(ctx context.Context, ownerID string) (*Stats, error)

	Ping(ctx context.Context) error
	Close() error
}
