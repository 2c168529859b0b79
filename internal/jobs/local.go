package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/ManuGH/cinegate/internal/control/vod"
	xglog "github.com/ManuGH/cinegate/internal/log"
)

var (
	// ErrQueueClosed is returned by EnqueuePublish after Stop.
	ErrQueueClosed = errors.New("jobs: queue closed")
	// ErrQueueFull is returned when the backlog is exhausted.
	ErrQueueFull = errors.New("jobs: queue full")
)

// LocalQueue is the in-process driver: a bounded worker pool that retries
// with a fixed delay under the same attempt budget as the asynq driver.
type LocalQueue struct {
	handler *PublishHandler
	cfg     Config
	clock   vod.Clock
	logger  zerolog.Logger

	tasks chan PublishPayload

	mu      sync.Mutex
	pending map[int64]struct{}
	closed  bool
	started bool

	wg sync.WaitGroup
}

// LocalOption customizes a LocalQueue.
type LocalOption func(*LocalQueue)

// WithLocalClock replaces the clock used for retry delays.
func WithLocalClock(c vod.Clock) LocalOption { return func(q *LocalQueue) { q.clock = c } }

// NewLocalQueue creates a stopped pool.
func NewLocalQueue(cfg Config, h *PublishHandler, opts ...LocalOption) *LocalQueue {
	cfg = cfg.withDefaults()
	q := &LocalQueue{
		handler: h,
		cfg:     cfg,
		clock:   vod.RealClock{},
		logger:  xglog.WithComponent("jobs"),
		tasks:   make(chan PublishPayload, cfg.Backlog),
		pending: make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// EnqueuePublish implements Enqueuer.
func (q *LocalQueue) EnqueuePublish(_ context.Context, videoID int64, baseURL string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if _, ok := q.pending[videoID]; ok {
		q.logger.Info().
			Str(xglog.FieldEvent, "publish.already_queued").
			Int64(xglog.FieldVideoID, videoID).
			Msg("publication already pending, skipping")
		return nil
	}
	select {
	case q.tasks <- PublishPayload{VideoID: videoID, BaseURL: baseURL}:
		q.pending[videoID] = struct{}{}
		q.logger.Info().
			Str(xglog.FieldEvent, "publish.enqueued").
			Int64(xglog.FieldVideoID, videoID).
			Msg("publication scheduled")
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the workers. Cancelling ctx aborts running attempts and
// pending retry delays.
func (q *LocalQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	for i := 0; i < q.cfg.Concurrency; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for p := range q.tasks {
				q.process(ctx, p)
			}
		}()
	}
}

// Stop refuses new tasks and waits until queued ones are drained or ctx
// expires.
func (q *LocalQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *LocalQueue) process(ctx context.Context, p PublishPayload) {
	defer func() {
		q.mu.Lock()
		delete(q.pending, p.VideoID)
		q.mu.Unlock()
	}()

	jobID := PublishTaskID(p.VideoID) + ":" + uuid.NewString()
	jobCtx := xglog.ContextWithJobID(ctx, jobID)
	attempts := q.cfg.Attempts()
	for attempt := 1; ; attempt++ {
		err := q.attempt(jobCtx, jobID, attempt, p)
		if err == nil {
			return
		}
		if isFinal(attempt-1, attempts-1, err) {
			if !errors.Is(err, asynq.SkipRetry) {
				reportExhausted(jobCtx, TaskPublish, attempt, err)
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-q.clock.After(q.cfg.RetryDelay):
		}
	}
}

func (q *LocalQueue) attempt(ctx context.Context, jobID string, attempt int, p PublishPayload) error {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.Timeout)
	defer cancel()
	return q.handler.publish(ctx, jobID, attempt, p)
}
