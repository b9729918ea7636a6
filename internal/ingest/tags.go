package ingest

import (
	"context"
	"strings"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/store"
)

// MaxTags is the number of proposed tag names considered per note.
const MaxTags = 10

// Reconciler resolves proposed tag names to owner-scoped tags and attaches
// them to a note.
type Reconciler struct {
	store store.Store
}

// NewReconciler returns a Reconciler backed by s.
func NewReconciler(s store.Store) *Reconciler {
	return &Reconciler{store: s}
}

// Reconcile keeps the first MaxTags proposed names, normalises them, upserts them
// as tags of ownerID and attaches every resulting tag to noteID. Both writes
// are batched; concurrent runs proposing the same new tag converge through
// the store's unique constraint.
func (r *Reconciler) Reconcile(ctx context.Context, ownerID, noteID string, proposed []string) ([]store.Tag, error) {
	names := NormalizeTags(proposed)
	if len(names) == 0 {
		return []store.Tag{}, nil
	}

	tags, err := r.store.UpsertTags(ctx, ownerID, names)
	if err != nil {
		return nil, apperr.Upstream("upsert tags", err)
	}

	ids := make([]string, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	if err := r.store.UpsertNoteTags(ctx, noteID, ids); err != nil {
		return nil, apperr.Upstream("attach tags", err)
	}
	return tags, nil
}

// NormalizeTags keeps the first MaxTags proposed names, then trims them,
// collapses inner whitespace and drops empties and case-insensitive
// duplicates (first spelling wins), in input order. Names past MaxTags are
// never considered, even when earlier ones are dropped.
func NormalizeTags(proposed []string) []string {
	proposed = proposed[:min(len(proposed), MaxTags)]
	out := make([]string, 0, len(proposed))
	seen := make(map[string]struct{}, len(proposed))
	for _, raw := range proposed {
		name := strings.Join(strings.Fields(raw), " ")
		if name == "" {
			continue
		}
		key := store.TagKey(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}
