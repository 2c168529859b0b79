package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath string
	// ConsumedEnvKeys records every environment key the loader read.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader for the YAML file at configPath. An empty path
// skips the file.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath:      configPath,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseString(EnvPrefix+key, defaultVal)
}

func (l *Loader) envStrings(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseStrings(EnvPrefix+key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseBool(EnvPrefix+key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseInt(EnvPrefix+key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseDuration(EnvPrefix+key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseFloat(EnvPrefix+key, defaultVal)
}

// Load applies defaults, the file, then the environment, and validates the
// result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	l.mergeEnv(&cfg)
	resolveTranscoderBins(&cfg.Transcoder)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFile decodes path over cfg. Keys absent from the file keep their
// current value.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	s := &cfg.Server
	s.ListenAddr = l.envString("LISTEN_ADDR", s.ListenAddr)
	s.BaseURL = l.envString("BASE_URL", s.BaseURL)
	s.ReadTimeout = l.envDuration("READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = l.envDuration("WRITE_TIMEOUT", s.WriteTimeout)
	s.ShutdownTimeout = l.envDuration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.KeyRateLimit = l.envInt("KEY_RATE_LIMIT", s.KeyRateLimit)
	s.AllowedOrigins = l.envStrings("ALLOWED_ORIGINS", s.AllowedOrigins)

	cfg.Auth.JWTSecret = l.envString("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.Issuer = l.envString("JWT_ISSUER", cfg.Auth.Issuer)

	db := &cfg.Database
	db.Driver = l.envString("DB_DRIVER", db.Driver)
	db.Path = l.envString("DB_PATH", db.Path)
	db.DSN = l.envString("DB_DSN", db.DSN)
	db.BusyTimeout = l.envDuration("DB_BUSY_TIMEOUT", db.BusyTimeout)
	db.MaxOpenConns = l.envInt("DB_MAX_OPEN_CONNS", db.MaxOpenConns)

	st := &cfg.Storage
	st.Driver = l.envString("STORAGE_DRIVER", st.Driver)
	st.Endpoint = l.envString("STORAGE_ENDPOINT", st.Endpoint)
	st.Bucket = l.envString("STORAGE_BUCKET", st.Bucket)
	st.Region = l.envString("STORAGE_REGION", st.Region)
	st.AccessKey = l.envString("STORAGE_ACCESS_KEY", st.AccessKey)
	st.SecretKey = l.envString("STORAGE_SECRET_KEY", st.SecretKey)
	st.Secure = l.envBool("STORAGE_SECURE", st.Secure)
	st.KeyExpiry = l.envDuration("KEY_EXPIRY", st.KeyExpiry)
	st.PlaylistExpiry = l.envDuration("PLAYLIST_EXPIRY", st.PlaylistExpiry)

	q := &cfg.Queue
	q.Driver = l.envString("QUEUE_DRIVER", q.Driver)
	q.RedisAddr = l.envString("REDIS_ADDR", q.RedisAddr)
	q.RedisPassword = l.envString("REDIS_PASSWORD", q.RedisPassword)
	q.RedisDB = l.envInt("REDIS_DB", q.RedisDB)
	q.Concurrency = l.envInt("WORKER_CONCURRENCY", q.Concurrency)
	q.MaxRetries = l.envInt("MAX_RETRIES", q.MaxRetries)
	q.RetryDelay = l.envDuration("RETRY_DELAY", q.RetryDelay)
	q.Timeout = l.envDuration("JOB_TIMEOUT", q.Timeout)
	q.Backlog = l.envInt("JOB_BACKLOG", q.Backlog)

	lk := &cfg.Lock
	lk.RedisAddr = l.envString("LOCK_REDIS_ADDR", lk.RedisAddr)
	lk.RedisPassword = l.envString("LOCK_REDIS_PASSWORD", lk.RedisPassword)
	lk.RedisDB = l.envInt("LOCK_REDIS_DB", lk.RedisDB)
	lk.TTL = l.envDuration("LOCK_TTL", lk.TTL)

	tc := &cfg.Transcoder
	tc.FFmpegBin = l.envString("FFMPEG_BIN", tc.FFmpegBin)
	tc.FFprobeBin = l.envString("FFPROBE_BIN", tc.FFprobeBin)
	tc.ScratchDir = l.envString("SCRATCH_DIR", tc.ScratchDir)
	tc.UploadConcurrency = l.envInt("UPLOAD_CONCURRENCY", tc.UploadConcurrency)

	tm := &cfg.Telemetry
	tm.Enabled = l.envBool("OTEL_ENABLED", tm.Enabled)
	tm.Exporter = l.envString("OTEL_EXPORTER", tm.Exporter)
	tm.Endpoint = l.envString("OTEL_ENDPOINT", tm.Endpoint)
	tm.Insecure = l.envBool("OTEL_INSECURE", tm.Insecure)
	tm.SamplingRate = l.envFloat("OTEL_SAMPLING_RATE", tm.SamplingRate)
	tm.Environment = l.envString("ENVIRONMENT", tm.Environment)

	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
}
