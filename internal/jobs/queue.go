package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/cinegate/internal/log"
)

var queueNames = []string{"critical", "default", "low"}

// RedisConfig addresses the asynq broker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ErrTaskActive is returned when a running attempt still holds the task ID
// of a video after the enqueue wait ran out.
var ErrTaskActive = errors.New("publication task is still running")

const (
	defaultActiveWait = 5 * time.Second
	defaultActivePoll = 200 * time.Millisecond
)

type taskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type taskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
	Close() error
}

// Queue is the asynq driver.
type Queue struct {
	client    taskClient
	server    *asynq.Server
	mux       *asynq.ServeMux
	inspector taskInspector
	cfg       Config
	logger    zerolog.Logger

	// activeWait bounds how long an enqueue waits for a running attempt
	// of the same video to release its task ID.
	activeWait time.Duration
	activePoll time.Duration
}

// NewQueue connects the client, server and inspector to redis and routes
// TaskPublish to h.
func NewQueue(rc RedisConfig, cfg Config, h *PublishHandler) *Queue {
	cfg = cfg.withDefaults()
	redisOpt := asynq.RedisClientOpt{Addr: rc.Addr, Password: rc.Password, DB: rc.DB}
	logger := xglog.WithComponent("jobs")

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
		RetryDelayFunc: fixedDelay(cfg.RetryDelay),
		ErrorHandler:   asynq.ErrorHandlerFunc(handleTaskError),
		Logger:         asynqLogger{logger: logger},
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskPublish, h)

	return &Queue{
		client:     asynq.NewClient(redisOpt),
		server:     server,
		mux:        mux,
		inspector:  asynq.NewInspector(redisOpt),
		cfg:        cfg,
		logger:     logger,
		activeWait: defaultActiveWait,
		activePoll: defaultActivePoll,
	}
}

func fixedDelay(d time.Duration) asynq.RetryDelayFunc {
	return func(int, error, *asynq.Task) time.Duration { return d }
}

func handleTaskError(ctx context.Context, t *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if t.Type() != TaskPublish || errors.Is(err, asynq.SkipRetry) || !isFinal(retried, maxRetry, err) {
		return
	}
	if id, ok := asynq.GetTaskID(ctx); ok {
		ctx = xglog.ContextWithJobID(ctx, id)
	}
	reportExhausted(ctx, t.Type(), retried+1, err)
}

// isTaskConflict checks whether the error indicates a task ID conflict,
// using errors.Is for unwrapped sentinel values and a string fallback.
func isTaskConflict(err error) bool {
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "task ID conflicts") || strings.Contains(msg, "duplicate task")
}

// EnqueuePublish schedules a publication with a deterministic task ID. A
// pending, scheduled or retrying task for the same video is left alone and
// a lingering completed or archived one is deleted first. An active task
// may already be past reading the video, so the enqueue waits for it to
// finish and returns ErrTaskActive if it does not finish in time.
func (q *Queue) EnqueuePublish(ctx context.Context, videoID int64, baseURL string) error {
	id := PublishTaskID(videoID)
	task, err := NewPublishTask(videoID, baseURL,
		asynq.TaskID(id),
		asynq.MaxRetry(q.cfg.MaxRetries),
		asynq.Timeout(q.cfg.Timeout),
		asynq.Queue("default"),
	)
	if err != nil {
		return err
	}
	logger := q.logger.With().Str(xglog.FieldJobID, id).Int64(xglog.FieldVideoID, videoID).Logger()

	deadline := time.Now().Add(q.activeWait)
	for {
		_, err = q.client.EnqueueContext(ctx, task)
		if err == nil {
			logger.Info().Str(xglog.FieldEvent, "publish.enqueued").Msg("publication scheduled")
			return nil
		}
		if !isTaskConflict(err) {
			return fmt.Errorf("enqueue %s: %w", id, err)
		}

		info, queue := q.findTask(id)
		switch {
		case info == nil:
			// released between the enqueue and the lookup
		case info.State == asynq.TaskStateCompleted || info.State == asynq.TaskStateArchived:
			if err := q.inspector.DeleteTask(queue, id); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
				return fmt.Errorf("clear stale %s: %w", id, err)
			}
			logger.Debug().Str("queue", queue).Str("state", info.State.String()).Msg("cleared stale task")
			if time.Now().Before(deadline) {
				continue
			}
			return fmt.Errorf("enqueue %s: %w", id, err)
		case info.State != asynq.TaskStateActive:
			logger.Info().Str(xglog.FieldEvent, "publish.already_queued").
				Str("state", info.State.String()).
				Msg("publication already pending, skipping")
			return nil
		}

		if !time.Now().Before(deadline) {
			logger.Warn().Str(xglog.FieldEvent, "publish.enqueue_blocked").Msg("running attempt still holds the task id")
			return fmt.Errorf("enqueue %s: %w", id, ErrTaskActive)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("enqueue %s: %w", id, ctx.Err())
		case <-time.After(q.activePoll):
		}
	}
}

// findTask looks id up in every queue the server consumes.
func (q *Queue) findTask(id string) (*asynq.TaskInfo, string) {
	for _, name := range queueNames {
		if info, err := q.inspector.GetTaskInfo(name, id); err == nil {
			return info, name
		}
	}
	return nil, ""
}

// Start begins processing in the background.
func (q *Queue) Start() error {
	q.logger.Info().Int("concurrency", q.cfg.Concurrency).Msg("job queue worker starting")
	return q.server.Start(q.mux)
}

// Stop waits for active tasks and closes every redis connection.
func (q *Queue) Stop() {
	q.server.Shutdown()
	if err := q.client.Close(); err != nil {
		q.logger.Warn().Err(err).Msg("close asynq client")
	}
	if err := q.inspector.Close(); err != nil {
		q.logger.Warn().Err(err).Msg("close asynq inspector")
	}
}

// asynqLogger routes asynq's own output through zerolog.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
