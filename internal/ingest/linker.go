package ingest

import (
	"context"
	"time"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/store"
)

const (
	// DefaultCandidateLimit is how many neighbours are requested per run.
	DefaultCandidateLimit = 20
	// LinkThreshold is the minimum similarity for an edge (inclusive).
	LinkThreshold = 0.45
	// MaxLinks caps the edges written per run.
	MaxLinks = 8
)

// Edge provenance written by the linker.
const (
	LinkedBy   = "ai"
	LinkMethod = "semantic"
)

// Linker turns nearest-neighbour candidates into similarity edges.
type Linker struct {
	store store.Store
	now   func() time.Time
}

// NewLinker returns a Linker backed by s.
func NewLinker(s store.Store) *Linker {
	return &Linker{store: s, now: time.Now}
}

// Link queries up to limit neighbours of noteID, keeps the ranked prefix at
// or above LinkThreshold (at most MaxLinks) and upserts an edge from noteID
// to each. limit <= 0 means DefaultCandidateLimit.
func (l *Linker) Link(ctx context.Context, noteID, ownerID string, limit int) ([]store.Edge, error) {
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	candidates, err := l.store.MatchNotes(ctx, noteID, ownerID, limit)
	if err != nil {
		return nil, apperr.Upstream("match notes", err)
	}

	kept := SelectLinks(candidates)
	if len(kept) == 0 {
		return []store.Edge{}, nil
	}

	reason := store.EdgeReason{By: LinkedBy, Method: LinkMethod, Timestamp: l.now().UTC()}
	edges := make([]store.Edge, len(kept))
	for i, c := range kept {
		edges[i] = store.Edge{
			UserID:       ownerID,
			SourceNoteID: noteID,
			TargetNoteID: c.NoteID,
			Strength:     c.Similarity,
			Reason:       reason,
		}
	}
	if err := l.store.UpsertEdges(ctx, edges); err != nil {
		return nil, apperr.Upstream("upsert edges", err)
	}
	return edges, nil
}

// SelectLinks returns the leading run of candidates whose similarity is at
// least LinkThreshold, capped at MaxLinks. The input order is preserved.
func SelectLinks(candidates []store.Neighbor) []store.Neighbor {
	n := 0
	for n < len(candidates) && n < MaxLinks && candidates[n].Similarity >= LinkThreshold {
		n++
	}
	return candidates[:n]
}
