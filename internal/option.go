package internal

import (
	"github.com/starford/mnemo/internal/ai"
	"github.com/starford/mnemo/internal/store"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	store    store.Store
	provider ai.Provider
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithStore uses st instead of opening the configured database. The caller
// keeps ownership and closes it.
func WithStore(st store.Store) Option {
	return func(a *application) {
		a.store = st
	}
}

// WithProvider uses p instead of building the configured AI provider.
func WithProvider(p ai.Provider) Option {
	return func(a *application) {
		a.provider = p
	}
}
