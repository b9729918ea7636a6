// Package mock provides a scripted ai.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/starford/mnemo/internal/ai"
	"github.com/starford/mnemo/internal/apperr"
)

// Provider is a test double for ai.Provider. Replies are chosen by the
// system instruction of the request, so summary and tag calls can be
// scripted independently. It is safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	Summary   string
	Tags      string
	Vector    []float32
	Model     string
	Summaries map[string]string // optional per-input override, keyed by user text

	SummaryErr error
	TagsErr    error
	EmbedErr   error

	completeCalls int
	embedCalls    int
	embedInputs   []string
	temperatures  []float64
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider returns a provider with a small default script.
func NewProvider() *Provider {
	return &Provider{
		Summary: "A short summary.",
		Tags:    `["General"]`,
		Vector:  []float32{1, 0, 0},
		Model:   "mock-embedding",
	}
}

// Complete returns the scripted summary or tag reply.
func (p *Provider) Complete(_ context.Context, messages []ai.Message, temperature float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completeCalls++
	p.temperatures = append(p.temperatures, temperature)

	var system, user string
	for _, m := range messages {
		switch m.Role {
		case ai.RoleSystem:
			system = m.Content
		case ai.RoleUser:
			user = m.Content
		}
	}

	switch system {
	case ai.TagsInstruction:
		if p.TagsErr != nil {
			return "", apperr.Upstream("chat completion", p.TagsErr)
		}
		return p.Tags, nil
	default:
		if p.SummaryErr != nil {
			return "", apperr.Upstream("chat completion", p.SummaryErr)
		}
		if s, ok := p.Summaries[user]; ok {
			return s, nil
		}
		return p.Summary, nil
	}
}

// Embed returns a copy of the scripted vector.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.embedCalls++
	p.embedInputs = append(p.embedInputs, text)
	if p.EmbedErr != nil {
		return nil, apperr.Upstream("embedding", p.EmbedErr)
	}
	return append([]float32(nil), p.Vector...), nil
}

// EmbeddingModel returns the scripted model identifier.
func (p *Provider) EmbeddingModel() string {
	return p.Model
}

// CompleteCalls returns how many completion requests were made.
func (p *Provider) CompleteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completeCalls
}

// EmbedCalls returns how many embedding requests were made.
func (p *Provider) EmbedCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.embedCalls
}

// EmbedInputs returns the texts passed to Embed, in call order.
func (p *Provider) EmbedInputs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.embedInputs...)
}

// Temperatures returns the temperatures passed to Complete, in call order.
func (p *Provider) Temperatures() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.temperatures...)
}
