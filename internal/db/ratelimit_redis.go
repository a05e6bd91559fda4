package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"careervision/internal/config"
	"careervision/internal/core"
	"careervision/internal/types"
)

// RedisRateLimitStore implements core.RateLimitStore over a fixed window
// counter per key. The first increment in a window sets the TTL; every
// caller in the same window shares the counter and its reset instant.
type RedisRateLimitStore struct {
	client *redis.Client
	clock  types.Clock
}

// NewRedisClient builds a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password.Unmask(),
		DB:       cfg.DB,
	})
}

// NewRedisRateLimitStore wraps a Redis client as a rate-limit store.
func NewRedisRateLimitStore(client *redis.Client, clock types.Clock) *RedisRateLimitStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &RedisRateLimitStore{client: client, clock: clock}
}

// IncrementAndCheck counts this request against the key's window and
// reports whether it is allowed.
func (s *RedisRateLimitStore) IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (core.RateLimitResult, error) {
	redisKey := "ratelimit:" + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, window)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return core.RateLimitResult{}, fmt.Errorf("rate limit pipeline: %w", err)
	}

	count := incr.Val()
	resetAt := s.clock.Now().Add(window)
	if d := ttl.Val(); d > 0 {
		resetAt = s.clock.Now().Add(d)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return core.RateLimitResult{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// redisProbe reports Redis connectivity for the health endpoint.
type redisProbe struct {
	client *redis.Client
}

func (p redisProbe) Name() string { return "redis" }

func (p redisProbe) Check(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// NewRedisHealthProbe wraps a client as a health probe named "redis".
func NewRedisHealthProbe(client *redis.Client) core.HealthProbe {
	return redisProbe{client: client}
}
