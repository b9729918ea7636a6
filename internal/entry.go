// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mnemo/internal/ai/openai"
	"github.com/starford/mnemo/internal/api"
	"github.com/starford/mnemo/internal/auth"
	"github.com/starford/mnemo/internal/ingest"
	"github.com/starford/mnemo/internal/mcpserver"
	"github.com/starford/mnemo/internal/metrics"
	"github.com/starford/mnemo/internal/sse"
	"github.com/starford/mnemo/internal/store"
	"github.com/starford/mnemo/internal/store/postgres"
	"github.com/starford/mnemo/internal/store/sqlite"
)

// components is everything the HTTP and MCP surfaces share.
type components struct {
	store   store.Store
	closeDB func() error
	svc     *ingest.Service
	queue   *ingest.Queue
	broker  *sse.Broker
	metrics *metrics.Metrics
}

func (c *components) close(logger *slog.Logger) {
	if err := c.queue.Close(10 * time.Second); err != nil {
		logger.Warn("ingest queue did not drain", slog.String("error", err.Error()))
	}
	if c.broker != nil {
		c.broker.Close()
	}
	if err := c.closeDB(); err != nil {
		logger.Warn("close store failed", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger installs a structured JSON logger. MCP mode logs to stderr
// because stdout carries the protocol.
func newLogger(cfg *Config, mcpMode bool) *slog.Logger {
	out := os.Stdout
	if mcpMode {
		out = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func openStore(ctx context.Context, cfg DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return postgres.Open(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	default:
		return sqlite.Open(cfg.SQLite.Path)
	}
}

func (a *application) build(ctx context.Context, logger *slog.Logger, withBroker bool) (*components, error) {
	cfg := a.config
	c := &components{metrics: metrics.New(), closeDB: func() error { return nil }}

	c.store = a.store
	if c.store == nil {
		st, err := openStore(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		c.store = st
		c.closeDB = st.Close
	}

	provider := a.provider
	if provider == nil && cfg.AI.Configured() {
		p, err := openai.New(cfg.AI)
		if err != nil {
			_ = c.closeDB()
			return nil, fmt.Errorf("init ai provider: %w", err)
		}
		provider = p
	}
	if provider == nil {
		logger.Warn("no AI provider configured, ingestion requests will fail",
			slog.String("hint", "set ai.api_key"))
	}

	svcOpts := []ingest.Option{ingest.WithLogger(logger), ingest.WithMetrics(c.metrics)}
	if withBroker {
		c.broker = sse.NewBroker(2 * time.Second)
		svcOpts = append(svcOpts, ingest.WithNotifier(c.broker))
	}
	c.svc = ingest.NewService(c.store, provider, svcOpts...)

	q, err := ingest.NewQueue(c.svc, cfg.Ingest.Workers, cfg.Ingest.QueueSize)
	if err != nil {
		_ = c.closeDB()
		return nil, err
	}
	c.queue = q
	return c, nil
}

// newHTTPHandler mounts health, metrics and the API.
func newHTTPHandler(cfg *Config, c *components, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := c.store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", c.metrics.Handler())

	h := api.NewHandler(c.store, c.svc, c.queue, c.broker, api.WithLogger(logger))
	r.Mount("/api", api.NewRouter(h, auth.NewVerifier(cfg.Auth), cfg.CORS))
	return r
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg, false)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("chat_model", cfg.AI.ChatModel),
		slog.String("embedding_model", cfg.AI.EmbeddingModel),
		slog.Int("ingest_workers", cfg.Ingest.Workers),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := app.build(ctx, logger, true)
	if err != nil {
		return err
	}
	defer c.close(logger)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newHTTPHandler(cfg, c, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio until stdin closes.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	if err := cfg.MCP.Validate(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	logger := newLogger(cfg, true)

	c, err := app.build(ctx, logger, false)
	if err != nil {
		return err
	}
	defer c.close(logger)

	logger.Info("MCP server starting", slog.String("owner_id", cfg.MCP.OwnerID))
	return mcpserver.New(c.store, c.svc, c.queue, cfg.MCP.OwnerID).ServeStdio()
}

// IssueToken signs a bearer token for userID with the configured secret.
func IssueToken(cfg *Config, userID string, ttl time.Duration) (string, error) {
	return auth.NewIssuer(cfg.Auth).Sign(userID, ttl)
}
