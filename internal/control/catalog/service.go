// Package catalog implements the staff-facing write operations on videos,
// audio tracks and watch toggles, and schedules publication after commit.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/buildlock"
	"github.com/ManuGH/cinegate/internal/control/authz"
	"github.com/ManuGH/cinegate/internal/control/vod"
	"github.com/ManuGH/cinegate/internal/domain/media"
	"github.com/ManuGH/cinegate/internal/library"
	xglog "github.com/ManuGH/cinegate/internal/log"
)

// ErrForbidden is returned when the caller lacks staff standing.
var ErrForbidden = errors.New("catalog: operation requires staff standing")

// Scheduler queues a publication attempt.
type Scheduler interface {
	EnqueuePublish(ctx context.Context, videoID int64, baseURL string) error
}

// Purger removes published builds from the content store.
type Purger interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// Option customizes a Service.
type Option func(*Service)

// WithLocker serializes rebuild triggers across replicas.
func WithLocker(l buildlock.Locker) Option { return func(s *Service) { s.locker = l } }

// Service is the catalog write path.
type Service struct {
	store     *library.Store
	purger    Purger
	scheduler Scheduler
	locker    buildlock.Locker
	baseURL   string
}

// NewService wires the catalog. baseURL is the public origin the key
// endpoint is reachable at.
func NewService(store *library.Store, purger Purger, scheduler Scheduler, baseURL string, opts ...Option) *Service {
	if store == nil {
		panic("invariant violation: store is nil in catalog.NewService")
	}
	if purger == nil {
		panic("invariant violation: purger is nil in catalog.NewService")
	}
	if scheduler == nil {
		panic("invariant violation: scheduler is nil in catalog.NewService")
	}
	s := &Service{store: store, purger: purger, scheduler: scheduler, baseURL: baseURL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requireStaff(operationID string, p auth.Principal) error {
	if !authz.Permits(operationID, p) {
		return fmt.Errorf("%s: %w", operationID, ErrForbidden)
	}
	return nil
}

func (s *Service) logger(ctx context.Context, p auth.Principal) zerolog.Logger {
	l := xglog.WithComponentFromContext(ctx, "catalog")
	if p.ID != "" {
		l = l.With().Str(xglog.FieldPrincipalID, p.ID).Logger()
	}
	return l
}

// schedule enqueues publication once tx commits. A failed enqueue leaves
// the video failed so staff can trigger a rebuild.
func (s *Service) schedule(ctx context.Context, tx *library.Tx, videoID int64, markFailed bool) {
	ctx = context.WithoutCancel(ctx)
	tx.OnCommit(func() {
		logger := xglog.WithComponentFromContext(xglog.ContextWithVideoID(ctx, videoID), "catalog")
		if err := s.scheduler.EnqueuePublish(ctx, videoID, s.baseURL); err != nil {
			logger.Error().Err(err).Str(xglog.FieldEvent, "publish.enqueue_failed").Msg("could not schedule publication")
			if !markFailed {
				return
			}
			if _, ferr := s.store.TransitionStatus(ctx, videoID, media.StatusFailed); ferr != nil {
				logger.Warn().Err(ferr).Msg("could not mark video failed")
			}
		}
	})
}

// VideoInput describes a new video.
type VideoInput struct {
	Visibility       media.Visibility
	Role             media.Role
	SourceKey        string
	OriginalLanguage string
}

// CreateVideo inserts a video and schedules its first publication.
func (s *Service) CreateVideo(ctx context.Context, p auth.Principal, in VideoInput) (media.VideoAsset, error) {
	if err := requireStaff("CreateVideo", p); err != nil {
		return media.VideoAsset{}, err
	}
	var id int64
	err := s.store.WithTx(ctx, func(tx *library.Tx) error {
		var err error
		id, err = tx.CreateVideo(ctx, media.VideoAsset{
			Visibility:       in.Visibility,
			Role:             in.Role,
			SourceKey:        in.SourceKey,
			OriginalLanguage: in.OriginalLanguage,
		})
		if err != nil {
			return err
		}
		s.schedule(ctx, tx, id, false)
		return nil
	})
	if err != nil {
		return media.VideoAsset{}, err
	}
	logger := s.logger(ctx, p)
	logger.Info().
		Str(xglog.FieldEvent, "video.created").
		Int64(xglog.FieldVideoID, id).
		Msg("video created")
	return s.store.GetVideo(ctx, id)
}

// UpdateVideo applies patch. A role change must match where the video is
// attached. A published video is flagged for rebuild.
func (s *Service) UpdateVideo(ctx context.Context, p auth.Principal, id int64, patch library.VideoPatch) (media.VideoAsset, error) {
	if err := requireStaff("UpdateVideo", p); err != nil {
		return media.VideoAsset{}, err
	}
	err := s.store.WithTx(ctx, func(tx *library.Tx) error {
		v, err := tx.GetVideo(ctx, id)
		if err != nil {
			return err
		}
		if patch.Role != nil {
			b, err := tx.BindingOf(ctx, id)
			if err != nil {
				return err
			}
			if err := media.CheckRole(*patch.Role, b); err != nil {
				return err
			}
		}
		if err := tx.UpdateVideo(ctx, id, patch); err != nil {
			return err
		}
		if v.Published() && !patch.Empty() {
			return tx.MarkRebuildNeeded(ctx, id)
		}
		return nil
	})
	if err != nil {
		return media.VideoAsset{}, err
	}
	return s.store.GetVideo(ctx, id)
}

// DeleteVideo removes the video and, after commit, its published builds.
func (s *Service) DeleteVideo(ctx context.Context, p auth.Principal, id int64) error {
	if err := requireStaff("DeleteVideo", p); err != nil {
		return err
	}
	logger := s.logger(ctx, p)
	purgeCtx := context.WithoutCancel(ctx)
	return s.store.WithTx(ctx, func(tx *library.Tx) error {
		if err := tx.DeleteVideo(ctx, id); err != nil {
			return err
		}
		tx.OnCommit(func() {
			prefix := vod.VideoPrefix(id)
			if err := s.purger.DeletePrefix(purgeCtx, prefix); err != nil {
				logger.Warn().Err(err).
					Str(xglog.FieldEvent, "store.purge_failed").
					Str(xglog.FieldPrefix, prefix).
					Msg("purge of deleted video failed")
				return
			}
			logger.Info().Str(xglog.FieldEvent, "video.deleted").Int64(xglog.FieldVideoID, id).Msg("video deleted")
		})
		return nil
	})
}

// RequestRebuild moves the video to processing and schedules a build.
func (s *Service) RequestRebuild(ctx context.Context, p auth.Principal, id int64) error {
	if err := requireStaff("RequestRebuild", p); err != nil {
		return err
	}
	if s.locker != nil {
		lease, err := s.locker.Acquire(ctx, id)
		if errors.Is(err, buildlock.ErrHeld) {
			return &media.ConflictError{Msg: "a rebuild is already being triggered"}
		}
		if err != nil {
			return fmt.Errorf("acquire rebuild lock: %w", err)
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				logger := s.logger(ctx, p)
				logger.Warn().Err(err).Msg("release rebuild lock")
			}
		}()
	}

	err := s.store.WithTx(ctx, func(tx *library.Tx) error {
		if err := tx.BeginRebuild(ctx, id); err != nil {
			return err
		}
		s.schedule(ctx, tx, id, true)
		return nil
	})
	if err != nil {
		return err
	}
	logger := s.logger(ctx, p)
	logger.Info().
		Str(xglog.FieldEvent, "publish.rebuild_requested").
		Int64(xglog.FieldVideoID, id).
		Str(xglog.FieldNewState, string(media.StatusProcessing)).
		Msg("rebuild requested")
	return nil
}
