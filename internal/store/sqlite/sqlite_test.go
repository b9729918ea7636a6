package sqlite

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/store"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	f, err := os.CreateTemp("", "mnemo-test-*.db")
	require.NoError(t, err)
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	s, err := Open(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Store, owner, title, text string) *store.Note {
	t.Helper()
	n := &store.Note{UserID: owner, Title: title, RawText: text}
	require.NoError(t, s.CreateNote(context.Background(), n))
	return n
}

func TestSchemaCreation(t *testing.T) {
	s := testStore(t)
	for _, table := range []string{"notes", "embeddings", "tags", "note_tags", "edges"} {
		var count int
		err := s.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestCreateAndGetNote(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	n := seed(t, s, "u1", "Hello", "some text")
	require.NotEmpty(t, n.ID)

	got, err := s.GetNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "Hello", got.Title)
	assert.Equal(t, "some text", got.RawText)
	assert.Empty(t, got.Summary)

	_, err = s.GetNote(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateNoteDerived(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	n := seed(t, s, "u1", "", "  text  ")

	at := time.Now().Add(time.Minute).UTC()
	require.NoError(t, s.UpdateNoteDerived(ctx, n.ID, "text", "sum", at))

	got, err := s.GetNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "text", got.CleanedText)
	assert.Equal(t, "sum", got.Summary)
	assert.WithinDuration(t, at, got.UpdatedAt, time.Millisecond)

	assert.ErrorIs(t, s.UpdateNoteDerived(ctx, "missing", "", "", at), apperr.ErrNotFound)
}

func TestListNotesScopedToOwner(t *testing.T) {
	s := testStore(t)
	seed(t, s, "u1", "a", "a")
	seed(t, s, "u1", "b", "b")
	seed(t, s, "u2", "c", "c")

	notes, total, err := s.ListNotes(context.Background(), "u1", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, notes, 1)
	assert.Equal(t, "b", notes[0].Title)
}

func TestUpsertTagsCaseInsensitive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, err := s.UpsertTags(ctx, "u1", []string{"Go", "Databases"})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := s.UpsertTags(ctx, "u1", []string{"go"})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, "Go", second[0].Name, "first-seen spelling is kept")

	other, err := s.UpsertTags(ctx, "u2", []string{"go"})
	require.NoError(t, err)
	assert.NotEqual(t, first[0].ID, other[0].ID, "tags are owner-scoped")
}

func TestUpsertNoteTagsIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	n := seed(t, s, "u1", "", "x")

	tags, err := s.UpsertTags(ctx, "u1", []string{"b", "a"})
	require.NoError(t, err)
	ids := []string{tags[0].ID, tags[1].ID}

	require.NoError(t, s.UpsertNoteTags(ctx, n.ID, ids))
	require.NoError(t, s.UpsertNoteTags(ctx, n.ID, ids))

	got, err := s.NoteTags(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "b", got[1].Name)
}

func TestInsertEmbeddingDimsConflict(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	n := seed(t, s, "u1", "", "x")

	require.NoError(t, s.InsertEmbedding(ctx, &store.Embedding{NoteID: n.ID, Model: "m", Vector: []float32{1, 0}}))
	err := s.InsertEmbedding(ctx, &store.Embedding{NoteID: n.ID, Model: "m", Vector: []float32{1, 0, 0}})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	require.NoError(t, s.InsertEmbedding(ctx, &store.Embedding{NoteID: n.ID, Model: "other", Vector: []float32{1, 0, 0}}))
}

func TestMatchNotesRanksLatestEmbedding(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	src := seed(t, s, "u1", "src", "x")
	near := seed(t, s, "u1", "near", "x")
	far := seed(t, s, "u1", "far", "x")
	foreign := seed(t, s, "u2", "foreign", "x")

	put := func(id string, v ...float32) {
		require.NoError(t, s.InsertEmbedding(ctx, &store.Embedding{NoteID: id, Model: "m", Vector: v}))
	}
	put(src.ID, 1, 0)
	put(near.ID, 0, 1)
	put(near.ID, 1, 0.1) // supersedes the orthogonal vector
	put(far.ID, 0, 1)
	put(foreign.ID, 1, 0)

	got, err := s.MatchNotes(ctx, src.ID, "u1", 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, near.ID, got[0].NoteID)
	assert.InDelta(t, 0.995, got[0].Similarity, 0.001)
	assert.Equal(t, far.ID, got[1].NoteID)
	assert.InDelta(t, 0, got[1].Similarity, 1e-9)

	limited, err := s.MatchNotes(ctx, src.ID, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMatchNotesWithoutEmbedding(t *testing.T) {
	s := testStore(t)
	n := seed(t, s, "u1", "", "x")

	got, err := s.MatchNotes(context.Background(), n.ID, "u1", 20)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpsertEdgesRefreshesStrength(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	a := seed(t, s, "u1", "a", "x")
	b := seed(t, s, "u1", "b", "x")

	edge := store.Edge{
		UserID:       "u1",
		SourceNoteID: a.ID,
		TargetNoteID: b.ID,
		Strength:     0.5,
		Reason:       store.EdgeReason{By: "ai", Method: "semantic", Timestamp: time.Now().UTC()},
	}
	require.NoError(t, s.UpsertEdges(ctx, []store.Edge{edge}))
	edge.Strength = 0.7
	require.NoError(t, s.UpsertEdges(ctx, []store.Edge{edge}))

	related, err := s.Related(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, b.ID, related[0].ID)
	assert.InDelta(t, 0.7, related[0].Strength, 1e-9)

	back, err := s.Related(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, back, "edges are directed")
}

func TestSearchGraphStats(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	a := seed(t, s, "u1", "Postgres tuning", "vacuum settings")
	b := seed(t, s, "u1", "Go channels", "select statements")
	seed(t, s, "u2", "Postgres", "other owner")

	hits, err := s.Search(ctx, "u1", "postgres", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, a.ID, hits[0].ID)

	require.NoError(t, s.UpsertEdges(ctx, []store.Edge{{
		UserID: "u1", SourceNoteID: a.ID, TargetNoteID: b.ID, Strength: 0.5,
		Reason: store.EdgeReason{By: "ai", Method: "semantic", Timestamp: time.Now().UTC()},
	}}))
	_, err = s.UpsertTags(ctx, "u1", []string{"db"})
	require.NoError(t, err)

	nodes, edges, err := s.Graph(ctx, "u1", 200)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
	require.Len(t, edges, 1)
	assert.Equal(t, "semantic", edges[0].Reason.Method)

	st, err := s.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Notes: 2, Connections: 1, Tags: 1}, *st)
}
