// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package delivery answers playback and key requests behind the access
// decision engine.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/control/authz"
	"github.com/ManuGH/cinegate/internal/domain/media"
	xglog "github.com/ManuGH/cinegate/internal/log"
	"github.com/ManuGH/cinegate/internal/metrics"
)

// DefaultKeyExpiry is the lifetime of presigned key URLs.
const DefaultKeyExpiry = 30 * time.Second

// DefaultPlaylistExpiry is the lifetime of presigned master playlist URLs.
const DefaultPlaylistExpiry = 6 * time.Hour

// Catalog is the read slice of the library the delivery path needs.
type Catalog interface {
	GetVideo(ctx context.Context, id int64) (media.VideoAsset, error)
	ResolveBinding(ctx context.Context, videoID int64, role media.Role) (media.Binding, error)
	LoadGrants(ctx context.Context, principalID string) (authz.GrantSet, error)
}

// Presigner issues short-lived object URLs.
type Presigner interface {
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// DeniedError carries the rule that refused access.
type DeniedError struct {
	Op     authz.Operation
	Reason authz.Reason
	// Anonymous is true when the caller presented no identity.
	Anonymous bool
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: %s: %s", e.Op, e.Reason)
}

// IsDenied reports whether err is or wraps a DeniedError.
func IsDenied(err error) bool {
	var d *DeniedError
	return errors.As(err, &d)
}

// Config tunes URL lifetimes.
type Config struct {
	KeyExpiry      time.Duration
	PlaylistExpiry time.Duration
}

// Service evaluates access and hands out presigned locations.
type Service struct {
	catalog Catalog
	store   Presigner
	cfg     Config
}

// NewService wires the delivery path.
func NewService(catalog Catalog, store Presigner, cfg Config) *Service {
	if catalog == nil {
		panic("invariant violation: catalog is nil in delivery.NewService")
	}
	if store == nil {
		panic("invariant violation: presigner is nil in delivery.NewService")
	}
	if cfg.KeyExpiry <= 0 {
		cfg.KeyExpiry = DefaultKeyExpiry
	}
	if cfg.PlaylistExpiry <= 0 {
		cfg.PlaylistExpiry = DefaultPlaylistExpiry
	}
	return &Service{catalog: catalog, store: store, cfg: cfg}
}

// Playback is the answer to a playback request.
type Playback struct {
	VideoID           int64        `json:"video_id"`
	Status            media.Status `json:"status"`
	MasterPlaylistURL string       `json:"master_playlist_url"`
}

// decide loads the video, its binding and the caller's grants, and runs
// the engine for op.
func (s *Service) decide(ctx context.Context, p auth.Principal, id int64, op authz.Operation) (media.VideoAsset, error) {
	v, err := s.catalog.GetVideo(ctx, id)
	if err != nil {
		return media.VideoAsset{}, err
	}
	b, err := s.catalog.ResolveBinding(ctx, id, v.Role)
	if err != nil {
		return media.VideoAsset{}, err
	}

	grants := authz.GrantSet{}
	if p.Authenticated && p.ID != "" && !p.Elevated() {
		if grants, err = s.catalog.LoadGrants(ctx, p.ID); err != nil {
			return media.VideoAsset{}, err
		}
	}
	engine := authz.NewEngine(grants)

	var d authz.Decision
	switch op {
	case authz.OpRetrieveKey:
		d = engine.CanRetrieveKey(p, v, b)
	default:
		d = engine.CanWatch(p, v, b)
	}
	metrics.RecordAccessDecision(string(op), d.Allowed, string(d.Reason))

	logger := xglog.WithComponentFromContext(xglog.ContextWithVideoID(ctx, id), "delivery")
	logger.Debug().
		Str(xglog.FieldPrincipalID, p.ID).
		Str("operation", string(op)).
		Bool("allowed", d.Allowed).
		Str(xglog.FieldDecisionReason, string(d.Reason)).
		Msg("access decision")

	if !d.Allowed {
		return v, &DeniedError{Op: op, Reason: d.Reason, Anonymous: !p.Authenticated}
	}
	return v, nil
}

// Playback returns a presigned master playlist location.
func (s *Service) Playback(ctx context.Context, p auth.Principal, id int64) (Playback, error) {
	v, err := s.decide(ctx, p, id, authz.OpWatch)
	if err != nil {
		return Playback{}, err
	}
	if !v.Published() {
		return Playback{}, fmt.Errorf("video %d: %w", id, media.ErrNoPlaylist)
	}
	url, err := s.store.PresignedGetURL(ctx, v.MasterPlaylistKey, s.cfg.PlaylistExpiry)
	if err != nil {
		return Playback{}, fmt.Errorf("presign master playlist: %w", err)
	}
	return Playback{VideoID: v.ID, Status: v.Status, MasterPlaylistURL: url}, nil
}

// KeyURL returns a short-lived presigned location of the decrypt key.
func (s *Service) KeyURL(ctx context.Context, p auth.Principal, id int64) (string, error) {
	v, err := s.decide(ctx, p, id, authz.OpRetrieveKey)
	var denied *DeniedError
	if errors.As(err, &denied) && denied.Reason == authz.ReasonNotEncrypted {
		return "", fmt.Errorf("video %d: %w", id, media.ErrNotEncrypted)
	}
	if err != nil {
		return "", err
	}
	url, err := s.store.PresignedGetURL(ctx, v.DecryptKeyKey, s.cfg.KeyExpiry)
	if err != nil {
		return "", fmt.Errorf("presign key: %w", err)
	}
	return url, nil
}
