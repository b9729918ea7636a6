package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/mnemo/internal/auth"
)

// NewRouter creates a chi router with all API routes mounted. Preflight
// requests are answered by the CORS middleware; every other route requires
// a bearer token. The ingestion route checks provider configuration first.
func NewRouter(h *Handler, verifier *auth.Verifier, corsCfg CORSConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(CORSMiddleware(corsCfg))

	authn := AuthMiddleware(verifier)

	// Ingestion entrypoint.
	r.With(h.requireProvider, authn).Post("/ingest", h.Ingest)

	r.Group(func(r chi.Router) {
		r.Use(authn)

		// Notes.
		r.Get("/notes", h.ListNotes)
		r.Post("/notes", h.CreateNote)
		r.Get("/notes/{id}", h.GetNote)

		// Search.
		r.Get("/search", h.Search)

		// Graph and account.
		r.Get("/graph", h.Graph)
		r.Get("/account/stats", h.Stats)

		// SSE stream of the caller's events.
		if h.broker != nil {
			r.Get("/events", h.Events)
		}
	})

	return r
}
