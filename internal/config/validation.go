package config

import (
	"strings"
	"time"

	"github.com/ManuGH/cinegate/internal/validate"
)

// MinJWTSecretLength is the shortest accepted HS256 secret.
const MinJWTSecretLength = 32

// Validate reports every invalid setting at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.NotEmpty("server.listen_addr", cfg.Server.ListenAddr)
	v.URL("server.base_url", cfg.Server.BaseURL, []string{"http", "https"})
	v.DurationRange("server.read_timeout", cfg.Server.ReadTimeout, time.Second, time.Hour)
	v.DurationRange("server.write_timeout", cfg.Server.WriteTimeout, time.Second, time.Hour)
	v.DurationRange("server.shutdown_timeout", cfg.Server.ShutdownTimeout, time.Second, 10*time.Minute)
	v.Positive("server.key_rate_limit", cfg.Server.KeyRateLimit)

	v.MinLength("auth.jwt_secret", cfg.Auth.JWTSecret, MinJWTSecretLength)
	v.NotEmpty("auth.issuer", cfg.Auth.Issuer)

	v.OneOf("database.driver", cfg.Database.Driver, []string{DatabaseSQLite, DatabasePostgres})
	switch cfg.Database.Driver {
	case DatabaseSQLite:
		v.NotEmpty("database.path", cfg.Database.Path)
	case DatabasePostgres:
		v.NotEmpty("database.dsn", cfg.Database.DSN)
	}
	v.Positive("database.max_open_conns", cfg.Database.MaxOpenConns)

	v.OneOf("storage.driver", cfg.Storage.Driver, []string{StorageMinio, StorageMemory})
	if cfg.Storage.Driver == StorageMinio {
		v.NotEmpty("storage.endpoint", cfg.Storage.Endpoint)
		v.NotEmpty("storage.bucket", cfg.Storage.Bucket)
		v.NotEmpty("storage.access_key", cfg.Storage.AccessKey)
		if strings.TrimSpace(cfg.Storage.SecretKey) == "" {
			v.AddError("storage.secret_key", "value cannot be empty", nil)
		}
	}
	v.DurationRange("storage.key_expiry", cfg.Storage.KeyExpiry, time.Second, time.Hour)
	v.DurationRange("storage.playlist_expiry", cfg.Storage.PlaylistExpiry, time.Second, 7*24*time.Hour)

	v.OneOf("queue.driver", cfg.Queue.Driver, []string{QueueAsynq, QueueLocal})
	if cfg.Queue.Driver == QueueAsynq {
		v.NotEmpty("queue.redis_addr", cfg.Queue.RedisAddr)
	}
	v.Range("queue.concurrency", cfg.Queue.Concurrency, 1, 64)
	v.Range("queue.max_retries", cfg.Queue.MaxRetries, 1, 10)
	v.DurationRange("queue.retry_delay", cfg.Queue.RetryDelay, 0, 24*time.Hour)
	v.DurationRange("queue.timeout", cfg.Queue.Timeout, time.Minute, 24*time.Hour)
	v.Positive("queue.backlog", cfg.Queue.Backlog)

	if cfg.Lock.RedisAddr != "" {
		v.DurationRange("lock.ttl", cfg.Lock.TTL, time.Second, 10*time.Minute)
	}

	v.NotEmpty("transcoder.ffmpeg_bin", cfg.Transcoder.FFmpegBin)
	v.NotEmpty("transcoder.ffprobe_bin", cfg.Transcoder.FFprobeBin)
	if cfg.Transcoder.ScratchDir != "" {
		v.Directory("transcoder.scratch_dir", cfg.Transcoder.ScratchDir)
	}
	v.Range("transcoder.upload_concurrency", cfg.Transcoder.UploadConcurrency, 1, 64)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{ExporterGRPC, ExporterHTTP})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.Float("telemetry.sampling_rate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	if !validate.LogLevel(cfg.Log.Level).IsValid() {
		v.AddError("log.level", "must be one of debug, info, warn, error", cfg.Log.Level)
	}

	return v.Err()
}
