// Package ingest implements the note ingestion pipeline: summary, tags,
// embedding, tag reconciliation and similarity linking for one note.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/mnemo/internal/ai"
	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/metrics"
	"github.com/starford/mnemo/internal/store"
)

// EventNoteIngested is published after a successful run.
const EventNoteIngested = "note.ingested"

// Notifier receives per-owner notifications about completed runs.
type Notifier interface {
	PublishNoteEvent(ownerID, kind string, data any)
}

// Result describes one completed ingestion run.
type Result struct {
	NoteID  string   `json:"noteId"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Linked  int      `json:"linked"`
	// TagsDegraded is set when the tag reply could not be parsed.
	TagsDegraded bool `json:"-"`
}

// Service runs ingestion against a store and an AI provider.
type Service struct {
	store      store.Store
	provider   ai.Provider
	reconciler *Reconciler
	linker     *Linker
	logger     *slog.Logger
	metrics    *metrics.Metrics
	notifier   Notifier
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records run outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNotifier publishes EventNoteIngested to n after each successful run.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.linker.now = now
	}
}

// NewService creates the pipeline. A nil provider is allowed; every run
// then fails with ai.ErrNotConfigured.
func NewService(st store.Store, provider ai.Provider, opts ...Option) *Service {
	s := &Service{
		store:      st,
		provider:   provider,
		reconciler: NewReconciler(st),
		linker:     NewLinker(st),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "ingest")
	return s
}

// Configured reports whether an AI provider is available.
func (s *Service) Configured() bool {
	return s.provider != nil
}

// Provider returns the AI provider, or nil when not configured.
func (s *Service) Provider() ai.Provider {
	return s.provider
}

// Ingest enriches noteID on behalf of callerID.
//
// The note must exist (apperr.ErrNotFound) and belong to callerID
// (apperr.ErrForbidden); nothing is written otherwise. Provider and store
// failures are returned matching apperr.ErrUpstream. Once the derived
// fields are being persisted the run ignores cancellation of ctx, so a run
// either fails before writing or completes every step it can.
func (s *Service) Ingest(ctx context.Context, noteID, callerID string) (*Result, error) {
	start := s.now()
	res, err := s.ingest(ctx, noteID, callerID)
	s.record(res, err, start)
	return res, err
}

func (s *Service) ingest(ctx context.Context, noteID, callerID string) (*Result, error) {
	if s.provider == nil {
		return nil, ai.ErrNotConfigured
	}

	note, err := s.store.GetNote(ctx, noteID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("note %s: %w", noteID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Upstream("load note", err)
	}
	if note.UserID != callerID {
		return nil, fmt.Errorf("note %s: %w", noteID, apperr.ErrForbidden)
	}

	text := strings.TrimSpace(note.RawText)
	gen, err := s.generate(ctx, text)
	if err != nil {
		return nil, err
	}

	tags, ok := ParseTags(gen.rawTags)
	if !ok {
		s.logger.Warn("tag reply not a JSON string array, continuing without tags",
			slog.String("note_id", note.ID))
	}

	// Committed from here on.
	wctx := context.WithoutCancel(ctx)

	if err := s.store.UpdateNoteDerived(wctx, note.ID, text, gen.summary, s.now().UTC()); err != nil {
		return nil, apperr.Upstream("save note", err)
	}
	if len(gen.vector) > 0 {
		emb := &store.Embedding{NoteID: note.ID, Model: s.provider.EmbeddingModel(), Vector: gen.vector}
		if err := s.store.InsertEmbedding(wctx, emb); err != nil {
			return nil, apperr.Upstream("save embedding", err)
		}
	}

	reconciled, err := s.reconciler.Reconcile(wctx, note.UserID, note.ID, tags)
	if err != nil {
		return nil, err
	}

	var edges []store.Edge
	if len(gen.vector) > 0 {
		edges, err = s.linker.Link(wctx, note.ID, note.UserID, DefaultCandidateLimit)
		if err != nil {
			return nil, err
		}
	}

	names := make([]string, len(reconciled))
	for i, t := range reconciled {
		names[i] = t.Name
	}
	res := &Result{
		NoteID:       note.ID,
		Summary:      gen.summary,
		Tags:         names,
		Linked:       len(edges),
		TagsDegraded: !ok,
	}

	if s.notifier != nil {
		s.notifier.PublishNoteEvent(note.UserID, EventNoteIngested, map[string]any{
			"noteId": note.ID,
			"linked": res.Linked,
		})
	}
	s.logger.Info("note ingested",
		slog.String("note_id", note.ID),
		slog.Int("tags", len(names)),
		slog.Int("linked", res.Linked))
	return res, nil
}

type generated struct {
	summary string
	rawTags string
	vector  []float32
}

// generate issues the summary, tag and embedding requests concurrently. The
// embedding falls back to the summary when text is empty, so it then waits
// for the summary. With neither available no embedding is requested.
func (s *Service) generate(ctx context.Context, text string) (*generated, error) {
	var out generated
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		summary, err := s.provider.Complete(gctx, ai.SummaryMessages(text), ai.SummaryTemperature)
		if err != nil {
			return apperr.Upstream("summary", err)
		}
		out.summary = strings.TrimSpace(summary)
		if text == "" && out.summary != "" {
			vec, err := s.provider.Embed(gctx, out.summary)
			if err != nil {
				return apperr.Upstream("embedding", err)
			}
			out.vector = vec
		}
		return nil
	})

	g.Go(func() error {
		raw, err := s.provider.Complete(gctx, ai.TagsMessages(text), ai.TagsTemperature)
		if err != nil {
			return apperr.Upstream("tags", err)
		}
		out.rawTags = raw
		return nil
	})

	if text != "" {
		g.Go(func() error {
			vec, err := s.provider.Embed(gctx, text)
			if err != nil {
				return apperr.Upstream("embedding", err)
			}
			out.vector = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) record(res *Result, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.IngestRuns.WithLabelValues(metrics.OutcomeOK).Inc()
		s.metrics.IngestDuration.Observe(s.now().Sub(start).Seconds())
		s.metrics.LinksCreated.Add(float64(res.Linked))
		if res.TagsDegraded {
			s.metrics.TagsDegraded.Inc()
		}
	case errors.Is(err, apperr.ErrForbidden):
		s.metrics.IngestRuns.WithLabelValues(metrics.OutcomeForbidden).Inc()
	case errors.Is(err, apperr.ErrNotFound):
		s.metrics.IngestRuns.WithLabelValues(metrics.OutcomeNotFound).Inc()
	default:
		s.metrics.IngestRuns.WithLabelValues(metrics.OutcomeError).Inc()
	}
}
