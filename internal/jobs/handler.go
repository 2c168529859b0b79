// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/ManuGH/cinegate/internal/control/vod"
	"github.com/ManuGH/cinegate/internal/domain/media"
	xglog "github.com/ManuGH/cinegate/internal/log"
	"github.com/ManuGH/cinegate/internal/metrics"
)

// PublishHandler runs TaskPublish tasks.
type PublishHandler struct {
	publisher Publisher
}

// NewPublishHandler wraps a publisher.
func NewPublishHandler(p Publisher) *PublishHandler {
	if p == nil {
		panic("invariant violation: publisher is nil in NewPublishHandler")
	}
	return &PublishHandler{publisher: p}
}

// ProcessTask implements asynq.Handler.
func (h *PublishHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := decodePublish(t.Payload())
	if err != nil {
		return fmt.Errorf("%s: %w: %w", t.Type(), err, asynq.SkipRetry)
	}
	attempt := 1
	if n, ok := asynq.GetRetryCount(ctx); ok {
		attempt = n + 1
	}
	jobID, _ := asynq.GetTaskID(ctx)
	return h.publish(ctx, jobID, attempt, p)
}

func decodePublish(data []byte) (PublishPayload, error) {
	var p PublishPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	if p.VideoID <= 0 {
		return p, fmt.Errorf("invalid video id %d", p.VideoID)
	}
	return p, nil
}

// publish runs one attempt. A video that no longer exists is not retried.
func (h *PublishHandler) publish(ctx context.Context, jobID string, attempt int, p PublishPayload) error {
	if jobID != "" {
		ctx = xglog.ContextWithJobID(ctx, jobID)
	}
	ctx = xglog.ContextWithVideoID(ctx, p.VideoID)
	logger := xglog.WithComponentFromContext(ctx, "jobs").With().
		Int(xglog.FieldAttempt, attempt).
		Logger()

	res, err := h.publisher.Run(ctx, p.VideoID, p.BaseURL)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) && !isStoreFailure(err) {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "publish.dropped").Msg("video is gone, not retrying")
			return fmt.Errorf("publish video %d: %w: %w", p.VideoID, err, asynq.SkipRetry)
		}
		logger.Warn().Err(err).Str(xglog.FieldEvent, "publish.attempt_failed").Msg("publication attempt failed")
		return fmt.Errorf("publish video %d: %w", p.VideoID, err)
	}
	logger.Info().
		Str(xglog.FieldEvent, "publish.succeeded").
		Str(xglog.FieldBuildID, res.BuildID).
		Int("renditions", res.Renditions).
		Int("audio_tracks", res.AudioTracks).
		Msg("publication attempt succeeded")
	return nil
}

// isStoreFailure separates a missing source object from a missing video.
func isStoreFailure(err error) bool {
	var se *vod.StoreError
	return errors.As(err, &se)
}

// isFinal reports whether err ends the task after retried earlier attempts.
func isFinal(retried, maxRetry int, err error) bool {
	return errors.Is(err, asynq.SkipRetry) || retried >= maxRetry
}

// reportExhausted logs and counts a task that used its whole budget.
func reportExhausted(ctx context.Context, taskType string, attempts int, err error) {
	logger := xglog.WithComponentFromContext(ctx, "jobs")
	logger.Error().
		Err(err).
		Str(xglog.FieldEvent, "publish.exhausted").
		Str("task", taskType).
		Int(xglog.FieldAttempt, attempts).
		Msg("publication failed after final attempt")
	metrics.RecordJobExhausted(taskType)
}
