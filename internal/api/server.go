// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the catalog and delivery operations over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/control/catalog"
	"github.com/ManuGH/cinegate/internal/control/delivery"
	"github.com/ManuGH/cinegate/internal/control/middleware"
	"github.com/ManuGH/cinegate/internal/domain/media"
	"github.com/ManuGH/cinegate/internal/library"
)

// CatalogService is the staff write path.
type CatalogService interface {
	CreateVideo(ctx context.Context, p auth.Principal, in catalog.VideoInput) (media.VideoAsset, error)
	UpdateVideo(ctx context.Context, p auth.Principal, id int64, patch library.VideoPatch) (media.VideoAsset, error)
	DeleteVideo(ctx context.Context, p auth.Principal, id int64) error
	RequestRebuild(ctx context.Context, p auth.Principal, id int64) error
	CreateAudioTrack(ctx context.Context, p auth.Principal, videoID int64, in catalog.AudioTrackInput) (media.AudioTrack, error)
	UpdateAudioTrack(ctx context.Context, p auth.Principal, id int64, patch catalog.AudioTrackPatch) (media.AudioTrack, error)
	EnableWatch(ctx context.Context, p auth.Principal, kind library.ToggleKind, id int64) error
	DisableWatch(ctx context.Context, p auth.Principal, kind library.ToggleKind, id int64) error
}

// DeliveryService is the customer read path.
type DeliveryService interface {
	Playback(ctx context.Context, p auth.Principal, id int64) (delivery.Playback, error)
	KeyURL(ctx context.Context, p auth.Principal, id int64) (string, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Config tunes the HTTP surface.
type Config struct {
	// KeyRateLimit is the per-IP budget of key lookups per minute.
	KeyRateLimit   int
	AllowedOrigins []string
	// TracingService enables otelhttp spans under this name.
	TracingService string
}

// Deps are the collaborators of a Server.
type Deps struct {
	Catalog  CatalogService
	Delivery DeliveryService
	Verifier middleware.TokenVerifier
	Health   []HealthChecker
}

// Server routes requests to the catalog and delivery services.
type Server struct {
	cfg      Config
	catalog  CatalogService
	delivery DeliveryService
	verifier middleware.TokenVerifier
	health   []HealthChecker
}

// NewServer validates deps and returns a Server.
func NewServer(cfg Config, deps Deps) *Server {
	if deps.Catalog == nil {
		panic("invariant violation: catalog is nil in api.NewServer")
	}
	if deps.Delivery == nil {
		panic("invariant violation: delivery is nil in api.NewServer")
	}
	if deps.Verifier == nil {
		panic("invariant violation: verifier is nil in api.NewServer")
	}
	return &Server{
		cfg:      cfg,
		catalog:  deps.Catalog,
		delivery: deps.Delivery,
		verifier: deps.Verifier,
		health:   deps.Health,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            len(s.cfg.AllowedOrigins) > 0,
		AllowedOrigins:        s.cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
		Verifier:              s.verifier,
	})

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/videos", s.handleCreateVideo)
		r.Route("/videos/{id}", func(r chi.Router) {
			r.Patch("/", s.handleUpdateVideo)
			r.Delete("/", s.handleDeleteVideo)
			r.Get("/playback", s.handlePlayback)
			r.With(middleware.KeyRateLimit(s.cfg.KeyRateLimit)).Get("/hls.key", s.handleKey)
			r.Post("/rebuild", s.handleRebuild)
			r.Post("/audio-tracks", s.handleCreateAudioTrack)
		})
		r.Patch("/audio-tracks/{id}", s.handleUpdateAudioTrack)
		r.Post("/{kind}/{id}/watch:enable", s.handleWatch(true))
		r.Post("/{kind}/{id}/watch:disable", s.handleWatch(false))
	})
	return r
}
