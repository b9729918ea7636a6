// Package ai defines the AI provider contract used by the ingestion pipeline:
// chat-style completion and text embedding.
package ai

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged chat message.
type Message struct {
	Role    string
	Content string
}

// Provider wraps a text-completion service and an embedding service.
// Implementations keep no per-call state and must be safe for concurrent use.
// Neither method retries; a non-success response is returned as an error
// matching apperr.ErrUpstream and carrying the provider's error payload.
type Provider interface {
	// Complete returns the generated text for messages at the given temperature.
	Complete(ctx context.Context, messages []Message, temperature float64) (string, error)
	// Embed returns the embedding vector of text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbeddingModel identifies the model that produced Embed vectors.
	EmbeddingModel() string
}

// ErrNotConfigured is returned when no API key was supplied.
var ErrNotConfigured = errors.New("ai provider not configured")

// Config holds the provider connection settings, injected at construction.
type Config struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	ChatModel      string `yaml:"chat_model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// DefaultConfig returns the models used by the hosted OpenAI API.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://api.openai.com/v1",
		ChatModel:      "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
	}
}

// Configured reports whether an API key is present.
func (c *Config) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Validate validates the AI configuration. An empty API key is allowed here:
// the server starts without one and reports ErrNotConfigured per request.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.ChatModel, validation.Required),
		validation.Field(&c.EmbeddingModel, validation.Required),
	)
}
