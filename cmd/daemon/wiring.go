// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/cinegate/internal/api"
	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/buildlock"
	"github.com/ManuGH/cinegate/internal/config"
	"github.com/ManuGH/cinegate/internal/control/catalog"
	"github.com/ManuGH/cinegate/internal/control/delivery"
	"github.com/ManuGH/cinegate/internal/control/vod"
	"github.com/ManuGH/cinegate/internal/daemon"
	"github.com/ManuGH/cinegate/internal/infra/objectstore"
	"github.com/ManuGH/cinegate/internal/jobs"
	"github.com/ManuGH/cinegate/internal/library"
	xglog "github.com/ManuGH/cinegate/internal/log"
	"github.com/ManuGH/cinegate/internal/persistence/postgres"
	"github.com/ManuGH/cinegate/internal/persistence/sqlite"
	"github.com/ManuGH/cinegate/internal/pipeline/exec/ffmpeg"
	"github.com/ManuGH/cinegate/internal/telemetry"
	"github.com/ManuGH/cinegate/internal/version"
)

// drainTimeout bounds how long the local queue may finish running attempts
// after shutdown starts.
const drainTimeout = 30 * time.Second

type namedCloser struct {
	name string
	fn   func(ctx context.Context) error
}

// runtime is the wired object graph of one daemon process.
type runtime struct {
	store   *library.Store
	handler http.Handler
	workers []daemon.Worker
	// hooks run after the HTTP server stopped.
	hooks []namedCloser
	// closers run after every worker returned.
	closers []namedCloser
	logger  zerolog.Logger
}

func (rt *runtime) onClose(name string, fn func(ctx context.Context) error) {
	rt.closers = append(rt.closers, namedCloser{name: name, fn: fn})
}

// Close releases resources in reverse acquisition order.
func (rt *runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		c := rt.closers[i]
		if err := c.fn(ctx); err != nil {
			rt.logger.Warn().Err(err).Str("resource", c.name).Msg("close failed")
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// run wires the runtime and blocks until ctx is cancelled.
func run(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) error {
	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = rt.Close(closeCtx)
	}()

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{Logger: logger, APIHandler: rt.handler})
	if err != nil {
		return err
	}
	for _, h := range rt.hooks {
		mgr.RegisterShutdownHook(h.name, h.fn)
	}
	return daemon.NewApp(logger, mgr, rt.workers...).Run(ctx)
}

// buildRuntime opens every backend named by cfg. On failure everything
// opened so far is closed again.
func buildRuntime(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (_ *runtime, err error) {
	rt := &runtime{logger: logger}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	rt.onClose("telemetry", tp.Shutdown)

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	rt.store = store
	rt.onClose("database", func(context.Context) error { return store.Close() })

	content, err := openContentStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	pipeline := vod.NewPipeline(store, content,
		ffmpeg.NewProber(cfg.Transcoder.FFprobeBin),
		ffmpeg.NewExecutor(cfg.Transcoder.FFmpegBin),
		vod.WithConfig(vod.Config{
			ScratchDir:        cfg.Transcoder.ScratchDir,
			UploadConcurrency: cfg.Transcoder.UploadConcurrency,
		}),
	)
	handler := jobs.NewPublishHandler(pipeline)
	jobsCfg := jobs.Config{
		Concurrency: cfg.Queue.Concurrency,
		MaxRetries:  cfg.Queue.MaxRetries,
		RetryDelay:  cfg.Queue.RetryDelay,
		Timeout:     cfg.Queue.Timeout,
		Backlog:     cfg.Queue.Backlog,
	}

	var scheduler catalog.Scheduler
	switch cfg.Queue.Driver {
	case config.QueueAsynq:
		q := jobs.NewQueue(jobs.RedisConfig{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		}, jobsCfg, handler)
		scheduler = q
		rt.workers = append(rt.workers, asynqWorker(q))
	default:
		q := jobs.NewLocalQueue(jobsCfg, handler)
		scheduler = q
		rt.workers = append(rt.workers, localWorker(q, drainTimeout))
	}

	health := []api.HealthChecker{store}
	var opts []catalog.Option
	if cfg.Lock.RedisAddr != "" {
		locker, err := buildlock.NewRedisLocker(buildlock.RedisConfig{
			Addr:     cfg.Lock.RedisAddr,
			Password: cfg.Lock.RedisPassword,
			DB:       cfg.Lock.RedisDB,
			TTL:      cfg.Lock.TTL,
		}, xglog.WithComponent("buildlock"))
		if err != nil {
			return nil, fmt.Errorf("rebuild lock: %w", err)
		}
		opts = append(opts, catalog.WithLocker(locker))
		health = append(health, pingFunc(locker.HealthCheck))
		rt.hooks = append(rt.hooks, namedCloser{name: "rebuild-lock", fn: func(context.Context) error {
			return locker.Close()
		}})
	}

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = serviceName
	}
	srv := api.NewServer(api.Config{
		KeyRateLimit:   cfg.Server.KeyRateLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TracingService: tracingService,
	}, api.Deps{
		Catalog: catalog.NewService(store, content, scheduler, cfg.Server.BaseURL, opts...),
		Delivery: delivery.NewService(store, content, delivery.Config{
			KeyExpiry:      cfg.Storage.KeyExpiry,
			PlaylistExpiry: cfg.Storage.PlaylistExpiry,
		}),
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Health:   health,
	})
	rt.handler = srv.Handler()
	return rt, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func openStore(ctx context.Context, cfg config.DatabaseConfig) (*library.Store, error) {
	var (
		db      *sql.DB
		dialect library.Dialect
		err     error
	)
	switch cfg.Driver {
	case config.DatabasePostgres:
		pg := postgres.DefaultConfig()
		pg.MaxOpenConns = cfg.MaxOpenConns
		db, err = postgres.Open(ctx, cfg.DSN, pg)
		dialect = library.DialectPostgres
	default:
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		if err := sqlite.Verify(ctx, cfg.Path, sqlite.QuickCheck); err != nil {
			return nil, err
		}
		db, err = sqlite.Open(cfg.Path, sqlite.Config{BusyTimeout: cfg.BusyTimeout, MaxOpenConns: cfg.MaxOpenConns})
		dialect = library.DialectSQLite
	}
	if err != nil {
		return nil, err
	}
	store, err := library.NewStore(db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func openContentStore(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (vod.ContentStore, error) {
	if cfg.Driver == config.StorageMemory {
		logger.Warn().
			Str(xglog.FieldEvent, "storage.memory").
			Msg("content store is in memory; published builds are lost on restart")
		return objectstore.NewMemoryStore(cfg.Bucket), nil
	}
	s, err := objectstore.NewMinioStore(objectstore.MinioConfig{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.Secure,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// localWorker runs the in-process queue. Shutdown stops intake, lets
// running attempts finish within grace, then aborts the rest.
func localWorker(q *jobs.LocalQueue, grace time.Duration) daemon.Worker {
	return daemon.Worker{Name: "publish-local", Run: func(ctx context.Context) error {
		runCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
		defer abort()
		q.Start(runCtx)
		<-ctx.Done()

		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
		defer cancel()
		if err := q.Stop(drainCtx); err == nil {
			return nil
		}
		abort()
		return q.Stop(context.Background())
	}}
}

func asynqWorker(q *jobs.Queue) daemon.Worker {
	return daemon.Worker{Name: "publish-asynq", Run: func(ctx context.Context) error {
		if err := q.Start(); err != nil {
			return err
		}
		<-ctx.Done()
		q.Stop()
		return nil
	}}
}
