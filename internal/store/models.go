package store

import (
	"strings"
	"time"
)

// Note is a user-submitted unit of text and its derived fields.
// CleanedText and Summary stay empty until the first ingestion.
type Note struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title,omitempty"`
	RawText     string    `json:"raw_text"`
	CleanedText string    `json:"cleaned_text,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Embedding is one vector computed for a note by a given model.
type Embedding struct {
	ID        string
	NoteID    string
	Model     string
	Vector    []float32
	CreatedAt time.Time
}

// Tag is an owner-scoped label. (UserID, lower(Name)) is unique.
type Tag struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// EdgeReason records the provenance of an edge.
type EdgeReason struct {
	By        string    `json:"by"`
	Method    string    `json:"method"`
	Timestamp time.Time `json:"timestamp"`
}

// Edge is a directed, weighted similarity link between two notes of the same
// owner. (UserID, SourceNoteID, TargetNoteID) is unique.
type Edge struct {
	UserID       string     `json:"user_id"`
	SourceNoteID string     `json:"source_note_id"`
	TargetNoteID string     `json:"target_note_id"`
	Strength     float64    `json:"strength"`
	Reason       EdgeReason `json:"reason"`
}

// Neighbor is one nearest-neighbour candidate.
type Neighbor struct {
	NoteID     string  `json:"note_id"`
	Similarity float64 `json:"similarity"`
}

// RelatedNote is an outgoing edge joined with its target note.
type RelatedNote struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Summary  string  `json:"summary"`
	Strength float64 `json:"strength"`
}

// SearchHit is one keyword search result.
type SearchHit struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Snippet string `json:"snippet"`
}

// GraphNode is a note as shown in the knowledge graph.
type GraphNode struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats holds per-owner totals.
type Stats struct {
	Notes       int `json:"total_notes"`
	Connections int `json:"total_connections"`
	Tags        int `json:"tags_used"`
}

// TagKey is the case-folded form of a tag name used for uniqueness.
func TagKey(name string) string {
	return strings.ToLower(name)
}
