// Package testutil provides shared test helpers for setting up stores.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/mnemo/internal/store"
	"github.com/starford/mnemo/internal/store/sqlite"
)

// TestStore creates a temporary SQLite store that is automatically cleaned up.
func TestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "mnemo-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	s, err := sqlite.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedNote inserts a note owned by ownerID and returns it.
func SeedNote(t *testing.T, s store.Store, ownerID, title, text string) *store.Note {
	t.Helper()
	n := &store.Note{UserID: ownerID, Title: title, RawText: text}
	if err := s.CreateNote(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	return n
}

// SeedEmbedding stores vector as the latest embedding of noteID.
func SeedEmbedding(t *testing.T, s store.Store, noteID, model string, vector []float32) {
	t.Helper()
	e := &store.Embedding{NoteID: noteID, Model: model, Vector: vector}
	if err := s.InsertEmbedding(context.Background(), e); err != nil {
		t.Fatal(err)
	}
}
