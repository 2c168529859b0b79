// Package config loads the daemon configuration.
//
// Precedence is environment over file over defaults. The YAML file is
// decoded strictly: unknown keys fail the load.
package config

import "time"

// Driver selectors.
const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"

	StorageMinio  = "minio"
	StorageMemory = "memory"

	QueueAsynq = "asynq"
	QueueLocal = "local"

	ExporterGRPC = "grpc"
	ExporterHTTP = "http"
)

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Queue      QueueConfig      `yaml:"queue"`
	Lock       LockConfig       `yaml:"lock"`
	Transcoder TranscoderConfig `yaml:"transcoder"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// BaseURL is the public origin embedded in published playlists.
	BaseURL         string        `yaml:"base_url"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// KeyRateLimit is the per-IP budget of key lookups per minute.
	KeyRateLimit   int      `yaml:"key_rate_limit"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AuthConfig verifies bearer tokens.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// DatabaseConfig selects the catalog database.
type DatabaseConfig struct {
	Driver       string        `yaml:"driver"`
	Path         string        `yaml:"path"` // sqlite
	DSN          string        `yaml:"dsn"`  // postgres
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
}

// StorageConfig selects the content store.
type StorageConfig struct {
	Driver         string        `yaml:"driver"`
	Endpoint       string        `yaml:"endpoint"`
	Bucket         string        `yaml:"bucket"`
	Region         string        `yaml:"region"`
	AccessKey      string        `yaml:"access_key"`
	SecretKey      string        `yaml:"secret_key"`
	Secure         bool          `yaml:"secure"`
	KeyExpiry      time.Duration `yaml:"key_expiry"`
	PlaylistExpiry time.Duration `yaml:"playlist_expiry"`
}

// QueueConfig selects the publication job driver.
type QueueConfig struct {
	Driver        string        `yaml:"driver"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Concurrency   int           `yaml:"concurrency"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	Timeout       time.Duration `yaml:"timeout"`
	Backlog       int           `yaml:"backlog"` // local driver only
}

// LockConfig enables the cross-replica rebuild lock when RedisAddr is set.
type LockConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// TranscoderConfig locates the transcoder binaries.
type TranscoderConfig struct {
	FFmpegBin         string `yaml:"ffmpeg_bin"`
	FFprobeBin        string `yaml:"ffprobe_bin"`
	ScratchDir        string `yaml:"scratch_dir"`
	UploadConcurrency int    `yaml:"upload_concurrency"`
}

// TelemetryConfig controls OTLP trace export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
}

// LogConfig sets the global log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when neither file nor environment
// set a value.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			KeyRateLimit:    120,
		},
		Auth: AuthConfig{Issuer: "cinegate"},
		Database: DatabaseConfig{
			Driver:       DatabaseSQLite,
			Path:         "data/cinegate.sqlite",
			BusyTimeout:  5 * time.Second,
			MaxOpenConns: 8,
		},
		Storage: StorageConfig{
			Driver:         StorageMinio,
			Bucket:         "cinegate",
			Region:         "us-east-1",
			Secure:         true,
			KeyExpiry:      30 * time.Second,
			PlaylistExpiry: 6 * time.Hour,
		},
		Queue: QueueConfig{
			Driver:      QueueLocal,
			Concurrency: 2,
			MaxRetries:  2,
			RetryDelay:  60 * time.Second,
			Timeout:     6 * time.Hour,
			Backlog:     128,
		},
		Lock: LockConfig{TTL: 30 * time.Second},
		Transcoder: TranscoderConfig{
			FFmpegBin:         "ffmpeg",
			UploadConcurrency: 8,
		},
		Telemetry: TelemetryConfig{
			Exporter:     ExporterGRPC,
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
		Log: LogConfig{Level: "info"},
	}
}

const redactedValue = "***"

func redact(s string) string {
	if s == "" {
		return ""
	}
	return redactedValue
}

// Redacted returns a copy with every credential replaced.
func (c AppConfig) Redacted() AppConfig {
	c.Auth.JWTSecret = redact(c.Auth.JWTSecret)
	c.Database.DSN = redact(c.Database.DSN)
	c.Storage.AccessKey = redact(c.Storage.AccessKey)
	c.Storage.SecretKey = redact(c.Storage.SecretKey)
	c.Queue.RedisPassword = redact(c.Queue.RedisPassword)
	c.Lock.RedisPassword = redact(c.Lock.RedisPassword)
	return c
}
