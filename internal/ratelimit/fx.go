package ratelimit

import (
	"context"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewStore),
	fx.Provide(func(h *config.RateLimitHolder) PolicySource { return h }),
	fx.Provide(NewLimiter),
)

// NewRedisClient returns the shared client, or nil when neither the limiter
// nor the security event store is configured for Redis.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*redis.Client, error) {
	if cfg.RateLimit.Store != StoreRedis && cfg.Security.EventStore != StoreRedis {
		return nil, nil
	}
	if cfg.RateLimit.RedisAddr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RateLimit.RedisAddr,
		Password: cfg.RateLimit.RedisPassword,
		DB:       cfg.RateLimit.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable", zap.String("addr", cfg.RateLimit.RedisAddr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

// NewStore picks the window store. Redis is required once more than one
// instance serves traffic.
func NewStore(cfg config.Config, client *redis.Client, clk clock.Clock) (Store, error) {
	switch cfg.RateLimit.Store {
	case "", StoreMemory:
		return NewMemoryStore(clk), nil
	case StoreRedis:
		if client == nil {
			return nil, errors.New("rate limit redis client is not configured")
		}
		return NewRedisStore(client, clk), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit store %q", cfg.RateLimit.Store)
	}
}
