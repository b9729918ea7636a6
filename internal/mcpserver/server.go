// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes mnemo tools for LLM integration via stdio transport.
// Every tool acts on behalf of a single configured owner.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/ingest"
	"github.com/starford/mnemo/internal/store"
)

// Server wraps the MCP server with mnemo tools.
type Server struct {
	mcp   *server.MCPServer
	store store.Store
	svc   *ingest.Service
	queue *ingest.Queue
	owner string
}

// New creates a new MCP server with all mnemo tools registered. queue may be
// nil, in which case capture_note ingests synchronously.
func New(st store.Store, svc *ingest.Service, queue *ingest.Queue, ownerID string) *Server {
	s := &Server{store: st, svc: svc, queue: queue, owner: ownerID}

	s.mcp = server.NewMCPServer(
		"Mnemo",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("capture_note",
		mcp.WithDescription("Capture a new free-text note. By default the note is also "+
			"summarized, tagged and linked to related notes; see the "+PolicyURI+" resource."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Note text")),
		mcp.WithString("title", mcp.Description("Optional title")),
		mcp.WithBoolean("ingest", mcp.Description("Run ingestion after capture (default true)")),
	), s.captureNote)

	s.mcp.AddTool(mcp.NewTool("ingest_note",
		mcp.WithDescription("Run (or re-run) ingestion for an existing note and return its summary, tags and link count."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("ID of the note")),
	), s.ingestNote)

	s.mcp.AddTool(mcp.NewTool("get_note",
		mcp.WithDescription("Read a note with its tags and related notes."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("ID of the note")),
	), s.getNote)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes by keyword, or semantically by meaning."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("mode", mcp.Description("keyword (default) or semantic"), mcp.Enum("keyword", "semantic")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("related_notes",
		mcp.WithDescription("List notes linked from the given note, strongest first."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("ID of the note")),
	), s.relatedNotes)

	s.mcp.AddResource(
		mcp.NewResource(PolicyURI, "Ingestion Policy",
			mcp.WithResourceDescription("How captured notes are summarized, tagged and linked."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPolicyResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) captureNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note := &store.Note{UserID: s.owner, Title: strings.TrimSpace(req.GetString("title", "")), RawText: text}
	if err := s.store.CreateNote(ctx, note); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !req.GetBool("ingest", true) || !s.svc.Configured() {
		return mcp.NewToolResultText(fmt.Sprintf("captured: %s", note.ID)), nil
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, note.ID, s.owner); err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("captured: %s (ingestion not queued: %v)", note.ID, err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("captured: %s (ingestion queued)", note.ID)), nil
	}
	res, err := s.svc.Ingest(ctx, note.ID, s.owner)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("captured %s but ingestion failed: %v", note.ID, err)), nil
	}
	return jsonResult(res), nil
}

func (s *Server) ingestNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Ingest(ctx, id, s.owner)
	if err != nil {
		return mcp.NewToolResultError(toolError(id, err)), nil
	}
	return jsonResult(res), nil
}

func (s *Server) getNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.ownedNote(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(toolError(id, err)), nil
	}
	tags, err := s.store.NoteTags(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	related, err := s.store.Related(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return jsonResult(map[string]any{
		"note":    note,
		"tags":    names,
		"related": related,
	}), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if req.GetString("mode", "keyword") != "semantic" {
		results, err := s.store.Search(ctx, s.owner, query, 20)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(results), nil
	}

	provider := s.svc.Provider()
	if provider == nil {
		return mcp.NewToolResultError("semantic search requires an AI provider"), nil
	}
	vec, err := provider.Embed(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	neighbors, err := s.store.MatchVector(ctx, s.owner, provider.EmbeddingModel(), vec, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(neighbors), nil
}

func (s *Server) relatedNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.ownedNote(ctx, id); err != nil {
		return mcp.NewToolResultError(toolError(id, err)), nil
	}
	related, err := s.store.Related(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(related) == 0 {
		return mcp.NewToolResultText("no related notes found"), nil
	}
	return jsonResult(related), nil
}

func (s *Server) readPolicyResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      PolicyURI,
			MIMEType: "text/markdown",
			Text:     IngestPolicy,
		},
	}, nil
}

func (s *Server) ownedNote(ctx context.Context, id string) (*store.Note, error) {
	note, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if note.UserID != s.owner {
		return nil, apperr.ErrForbidden
	}
	return note, nil
}

func toolError(id string, err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return fmt.Sprintf("not found: %s", id)
	case errors.Is(err, apperr.ErrForbidden):
		return fmt.Sprintf("forbidden: %s", id)
	default:
		return err.Error()
	}
}
