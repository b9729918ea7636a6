// Package api implements the mnemo REST API using chi.
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"

	"github.com/starford/mnemo/internal/auth"
)

// Plain-text bodies of the auth and ingestion errors.
const (
	msgMissingAuth   = "Missing Authorization header"
	msgInvalidToken  = "Invalid or expired token"
	msgMissingAPIKey = "Missing OPENAI_API_KEY"
)

// CORSConfig controls browser access to the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// CORSMiddleware answers preflight requests before authentication runs.
func CORSMiddleware(cfg CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
		MaxAge:         300,
	})
}

// AuthMiddleware returns middleware that validates a Bearer token and stores
// the token subject as the caller identity.
func AuthMiddleware(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeText(w, http.StatusUnauthorized, msgMissingAuth)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeText(w, http.StatusUnauthorized, msgInvalidToken)
				return
			}
			caller, err := v.Verify(strings.TrimSpace(token))
			if err != nil {
				writeText(w, http.StatusUnauthorized, msgInvalidToken)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
		})
	}
}

// requireProvider rejects ingestion when no AI provider is configured.
func (h *Handler) requireProvider(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.svc.Configured() {
			writeText(w, http.StatusInternalServerError, msgMissingAPIKey)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func caller(r *http.Request) string {
	id, _ := auth.CallerFrom(r.Context())
	return id
}
