package buildlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
	TTL      time.Duration
}

// RedisLocker stores leases as SET NX keys with an expiry.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisLocker connects and pings redis.
func NewRedisLocker(cfg RedisConfig, logger zerolog.Logger) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to Redis build lock")
	return newRedisLocker(client, cfg.TTL, logger), nil
}

func newRedisLocker(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

// Acquire implements Locker.
func (r *RedisLocker) Acquire(ctx context.Context, videoID int64) (Lease, error) {
	key := Key(videoID)
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &redisLease{owner: r, key: key, token: token}, nil
}

// Close closes the Redis connection.
func (r *RedisLocker) Close() error {
	return r.client.Close()
}

// HealthCheck checks if Redis is available.
func (r *RedisLocker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type redisLease struct {
	owner *RedisLocker
	key   string
	token string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.owner.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		l.owner.logger.Warn().Err(err).Str("key", l.key).Msg("redis lock release failed")
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
