package store

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRankNeighbors(t *testing.T) {
	in := []Neighbor{
		{NoteID: "c", Similarity: 0.2},
		{NoteID: "a", Similarity: 0.9},
		{NoteID: "d", Similarity: 0.5},
		{NoteID: "b", Similarity: 0.9},
	}
	got := RankNeighbors(in, 3)
	want := []string{"a", "b", "d"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].NoteID != id {
			t.Errorf("rank %d = %s, want %s", i, got[i].NoteID, id)
		}
	}
}
