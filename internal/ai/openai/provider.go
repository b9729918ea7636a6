// Package openai implements ai.Provider on top of OpenAI-compatible APIs
// through langchaingo.
package openai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/starford/mnemo/internal/ai"
	"github.com/starford/mnemo/internal/apperr"
)

// Provider implements ai.Provider with a single langchaingo client serving
// both chat completions and embeddings.
type Provider struct {
	llm            *openai.LLM
	embeddingModel string
	logger         *slog.Logger
}

var _ ai.Provider = (*Provider)(nil)

// New creates a provider from cfg. It returns ai.ErrNotConfigured when no API
// key is set.
func New(cfg ai.Config) (*Provider, error) {
	if !cfg.Configured() {
		return nil, ai.ErrNotConfigured
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	llm, err := openai.New(
		openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.ChatModel),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	return &Provider{
		llm:            llm,
		embeddingModel: cfg.EmbeddingModel,
		logger:         slog.Default().With("component", "openai-provider"),
	}, nil
}

// Complete sends one chat completion request.
func (p *Provider) Complete(ctx context.Context, messages []ai.Message, temperature float64) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.MessageContent{
			Role:  chatRole(m.Role),
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}

	resp, err := p.llm.GenerateContent(ctx, content, llms.WithTemperature(temperature))
	if err != nil {
		p.logger.Error("chat completion failed", slog.String("error", err.Error()))
		return "", apperr.Upstream("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}

// Embed sends one embedding request for text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		p.logger.Error("embedding failed", slog.String("error", err.Error()))
		return nil, apperr.Upstream("embedding", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, apperr.Upstream("embedding", errors.New("empty embedding response"))
	}
	return vectors[0], nil
}

// EmbeddingModel returns the configured embedding model identifier.
func (p *Provider) EmbeddingModel() string {
	return p.embeddingModel
}

func chatRole(role string) llms.ChatMessageType {
	switch role {
	case ai.RoleSystem:
		return llms.ChatMessageTypeSystem
	case ai.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
