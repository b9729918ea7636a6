package api

import (
	"github.com/starford/mnemo/internal/store"
)

// IngestRequest is the request body of POST /api/ingest.
type IngestRequest struct {
	NoteID string `json:"noteId" example:"6f1c2d0e-..." validate:"required"`
}

// IngestResponse is returned after a successful ingestion run.
type IngestResponse struct {
	OK      bool     `json:"ok" example:"true"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Linked  int      `json:"linked" example:"3"`
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	RawText string `json:"raw_text" example:"The hard problem of consciousness..."`
	Title   string `json:"title,omitempty" example:"Qualia"`
}

// Background ingestion states reported by CreateNote.
const (
	IngestQueued      = "queued"
	IngestRejected    = "rejected"
	IngestUnavailable = "unavailable"
)

// CreateNoteResponse wraps a created note.
type CreateNoteResponse struct {
	Note   *store.Note `json:"note"`
	Ingest string      `json:"ingest,omitempty"`
}

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []store.Note `json:"notes" validate:"required"`
	Total int          `json:"total" example:"42" validate:"required"`
}

// NoteDetail is a note with its tags and outgoing links.
type NoteDetail struct {
	Note    *store.Note         `json:"note"`
	Tags    []store.Tag         `json:"tags"`
	Related []store.RelatedNote `json:"related"`
}

// SearchResult is a single search hit in the API response. Score is set for
// semantic searches only.
type SearchResult struct {
	ID      string   `json:"id" validate:"required"`
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Snippet string   `json:"snippet,omitempty"`
	Score   *float64 `json:"score,omitempty"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Mode    string         `json:"mode" example:"keyword"`
	Results []SearchResult `json:"results" validate:"required"`
}

// GraphLink is an edge in the knowledge graph.
type GraphLink struct {
	Source   string  `json:"source" validate:"required"`
	Target   string  `json:"target" validate:"required"`
	Strength float64 `json:"strength"`
}

// GraphResponse wraps the knowledge graph.
type GraphResponse struct {
	Nodes []store.GraphNode `json:"nodes" validate:"required"`
	Links []GraphLink       `json:"links" validate:"required"`
}
