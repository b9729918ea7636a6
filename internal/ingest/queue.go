package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
)

// ErrQueueFull is returned by Enqueue when the backlog limit is reached.
var ErrQueueFull = errors.New("ingest queue full")

// Queue runs ingestion in the background on a bounded worker pool.
// Submissions block while every worker is busy, and are rejected with
// ErrQueueFull once backlog submissions are already waiting.
type Queue struct {
	svc    *Service
	pool   *ants.Pool
	logger *slog.Logger
}

// NewQueue creates a pool of workers goroutines with room for backlog
// waiting submissions. Non-positive values fall back to 4 and 64.
func NewQueue(svc *Service, workers, backlog int) (*Queue, error) {
	if workers <= 0 {
		workers = 4
	}
	if backlog <= 0 {
		backlog = 64
	}
	pool, err := ants.NewPool(workers, ants.WithMaxBlockingTasks(backlog))
	if err != nil {
		return nil, fmt.Errorf("ingest queue: %w", err)
	}
	return &Queue{svc: svc, pool: pool, logger: svc.logger}, nil
}

// Enqueue schedules ingestion of noteID for callerID. The job does not
// inherit cancellation from ctx.
func (q *Queue) Enqueue(ctx context.Context, noteID, callerID string) error {
	jobCtx := context.WithoutCancel(ctx)
	err := q.pool.Submit(func() {
		if _, err := q.svc.Ingest(jobCtx, noteID, callerID); err != nil {
			q.logger.Error("background ingestion failed",
				slog.String("note_id", noteID),
				slog.String("error", err.Error()))
		}
	})
	if errors.Is(err, ants.ErrPoolOverload) {
		if q.svc.metrics != nil {
			q.svc.metrics.QueueDropped.Inc()
		}
		return ErrQueueFull
	}
	if err != nil {
		return fmt.Errorf("ingest queue: %w", err)
	}
	return nil
}

// Running returns the number of jobs in progress.
func (q *Queue) Running() int {
	return q.pool.Running()
}

// Close waits up to timeout for running jobs and releases the pool.
func (q *Queue) Close(timeout time.Duration) error {
	return q.pool.ReleaseTimeout(timeout)
}
