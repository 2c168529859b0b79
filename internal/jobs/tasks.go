// Package jobs runs publication attempts in the background with a bounded
// retry budget, either on asynq or on an in-process worker pool.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ManuGH/cinegate/internal/control/vod"
)

// TaskPublish is the task type of a publication attempt.
const TaskPublish = "video:publish"

const (
	defaultConcurrency = 2
	defaultMaxRetries  = 2
	defaultRetryDelay  = 60 * time.Second
	defaultTimeout     = 6 * time.Hour
	defaultBacklog     = 128
)

// PublishPayload is the JSON body of a TaskPublish task.
type PublishPayload struct {
	VideoID int64  `json:"video_id"`
	BaseURL string `json:"base_url"`
}

// Publisher performs one publication attempt. *vod.Pipeline satisfies it.
type Publisher interface {
	Run(ctx context.Context, videoID int64, baseURL string) (vod.Result, error)
}

// Enqueuer schedules publication of a video. Scheduling a video that already
// has a pending or running task is a no-op.
type Enqueuer interface {
	EnqueuePublish(ctx context.Context, videoID int64, baseURL string) error
}

// Config is shared by both drivers.
type Config struct {
	// Concurrency is the number of attempts running at once.
	Concurrency int
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// Backlog caps queued tasks of the local driver.
	Backlog int
}

// DefaultConfig returns two workers, three attempts a minute apart.
func DefaultConfig() Config {
	return Config{
		Concurrency: defaultConcurrency,
		MaxRetries:  defaultMaxRetries,
		RetryDelay:  defaultRetryDelay,
		Timeout:     defaultTimeout,
		Backlog:     defaultBacklog,
	}
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Backlog <= 0 {
		c.Backlog = defaultBacklog
	}
	return c
}

// Attempts is the total attempt budget of one task.
func (c Config) Attempts() int { return c.MaxRetries + 1 }

// PublishTaskID is the deduplication key of a video's publication task.
func PublishTaskID(videoID int64) string {
	return "publish:" + strconv.FormatInt(videoID, 10)
}

// NewPublishTask encodes a publication task.
func NewPublishTask(videoID int64, baseURL string, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(PublishPayload{VideoID: videoID, BaseURL: baseURL})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TaskPublish, data, opts...), nil
}
