package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mnemo/internal/ai"
	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/ingest"
	"github.com/starford/mnemo/internal/sse"
	"github.com/starford/mnemo/internal/store"
)

// Event published when a note is created through the API.
const EventNoteCreated = "note.created"

// Handler holds API route handlers.
type Handler struct {
	svc    *ingest.Service
	queue  *ingest.Queue
	store  store.Store
	broker *sse.Broker
	logger *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the base logger. Default is slog.Default().
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a new Handler. queue and broker may be nil.
func NewHandler(st store.Store, svc *ingest.Service, queue *ingest.Queue, broker *sse.Broker, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc, queue: queue, store: st, broker: broker, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "api")
	return h
}

// Ingest handles POST /api/ingest.
//
//	@Summary		Run the ingestion pipeline for one note
//	@Tags			ingest
//	@Accept			json
//	@Produce		json
//	@Param			body	body		IngestRequest	true	"Note to ingest"
//	@Success		200		{object}	IngestResponse
//	@Failure		400		{string}	string	"noteId required"
//	@Failure		401		{string}	string	"Missing Authorization header"
//	@Failure		403		{string}	string	"Forbidden"
//	@Failure		404		{string}	string	"note not found"
//	@Failure		500		{string}	string
//	@Security		BearerAuth
//	@Router			/ingest [post]
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.NoteID) == "" {
		writeText(w, http.StatusBadRequest, "noteId required")
		return
	}

	res, err := h.svc.Ingest(r.Context(), req.NoteID, caller(r))
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeText(w, http.StatusNotFound, "note not found")
		case errors.Is(err, apperr.ErrForbidden):
			writeText(w, http.StatusForbidden, "Forbidden")
		case errors.Is(err, ai.ErrNotConfigured):
			writeText(w, http.StatusInternalServerError, msgMissingAPIKey)
		default:
			h.logger.Error("ingest failed", slog.String("note_id", req.NoteID), slog.String("error", err.Error()))
			writeText(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, IngestResponse{OK: true, Summary: res.Summary, Tags: res.Tags, Linked: res.Linked})
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List the caller's notes, newest first
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	notes, total, err := h.store.ListNotes(r.Context(), caller(r), limit, offset)
	if err != nil {
		h.logger.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if notes == nil {
		notes = []store.Note{}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: total})
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Capture a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			ingest	query		string				false	"Set to async to queue ingestion"
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	CreateNoteResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.RawText) == "" && strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("raw_text or title is required"))
		return
	}

	owner := caller(r)
	note := &store.Note{UserID: owner, Title: strings.TrimSpace(req.Title), RawText: req.RawText}
	if err := h.store.CreateNote(r.Context(), note); err != nil {
		h.logger.Error("create note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if h.broker != nil {
		h.broker.PublishNoteEvent(owner, EventNoteCreated, map[string]string{"noteId": note.ID})
	}

	resp := CreateNoteResponse{Note: note}
	if r.URL.Query().Get("ingest") == "async" {
		resp.Ingest = h.enqueue(r, note.ID, owner)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) enqueue(r *http.Request, noteID, owner string) string {
	if h.queue == nil || !h.svc.Configured() {
		return IngestUnavailable
	}
	if err := h.queue.Enqueue(r.Context(), noteID, owner); err != nil {
		h.logger.Warn("ingest enqueue failed", slog.String("note_id", noteID), slog.String("error", err.Error()))
		return IngestRejected
	}
	return IngestQueued
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a note with its tags and related notes
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note ID"
//	@Success		200	{object}	NoteDetail
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	note, err := h.store.GetNote(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			h.logger.Error("get note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if note.UserID != caller(r) {
		writeJSON(w, http.StatusForbidden, errorBody("forbidden"))
		return
	}

	tags, err := h.store.NoteTags(ctx, id)
	if err != nil {
		h.logger.Error("note tags failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	related, err := h.store.Related(ctx, id)
	if err != nil {
		h.logger.Error("related notes failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NoteDetail{Note: note, Tags: tags, Related: related})
}

// Search handles GET /api/search.
//
//	@Summary		Keyword or semantic search across the caller's notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			mode	query		string	false	"Search mode"	Enums(keyword, semantic)
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	mode := r.URL.Query().Get("mode")

	var (
		results []SearchResult
		err     error
	)
	switch mode {
	case "", "keyword":
		mode = "keyword"
		results, err = h.keywordSearch(r, q, limit)
	case "semantic":
		results, err = h.semanticSearch(r, q, limit)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("mode must be keyword or semantic"))
		return
	}
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			writeJSON(w, http.StatusInternalServerError, errorBody("semantic search requires an AI provider"))
			return
		}
		h.logger.Error("search failed", slog.String("query", q), slog.String("mode", mode), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Mode: mode, Results: results})
}

func (h *Handler) keywordSearch(r *http.Request, q string, limit int) ([]SearchResult, error) {
	hits, err := h.store.Search(r.Context(), caller(r), q, limit)
	if err != nil {
		return nil, err
	}
	out := make([]SearchResult, len(hits))
	for i, hit := range hits {
		out[i] = SearchResult{ID: hit.ID, Title: hit.Title, Summary: hit.Summary, Snippet: hit.Snippet}
	}
	return out, nil
}

func (h *Handler) semanticSearch(r *http.Request, q string, limit int) ([]SearchResult, error) {
	provider := h.svc.Provider()
	if provider == nil {
		return nil, ai.ErrNotConfigured
	}
	ctx := r.Context()
	vec, err := provider.Embed(ctx, q)
	if err != nil {
		return nil, err
	}
	neighbors, err := h.store.MatchVector(ctx, caller(r), provider.EmbeddingModel(), vec, limit)
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, 0, len(neighbors))
	for _, n := range neighbors {
		note, err := h.store.GetNote(ctx, n.NoteID)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		score := n.Similarity
		out = append(out, SearchResult{ID: note.ID, Title: note.Title, Summary: note.Summary, Score: &score})
	}
	return out, nil
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the caller's knowledge graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, edges, err := h.store.Graph(r.Context(), caller(r), 200)
	if err != nil {
		h.logger.Error("graph failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	links := make([]GraphLink, len(edges))
	for i, e := range edges {
		links[i] = GraphLink{Source: e.SourceNoteID, Target: e.TargetNoteID, Strength: e.Strength}
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: links})
}

// Stats handles GET /api/account/stats.
//
//	@Summary		Totals for the caller's account
//	@Tags			account
//	@Produce		json
//	@Success		200	{object}	store.Stats
//	@Security		BearerAuth
//	@Router			/account/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats(r.Context(), caller(r))
	if err != nil {
		h.logger.Error("stats failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Events handles GET /api/events.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	h.broker.Stream(w, r, caller(r))
}
