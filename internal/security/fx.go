package security

import (
	"errors"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fieldops/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("security.service",
	fx.Provide(NewEventStore),
	fx.Provide(NewService),
)

func NewEventStore(cfg config.Config, client *redis.Client) (EventStore, error) {
	if cfg.Security.EventStore == "redis" {
		if client == nil {
			return nil, errors.New("security event store redis client is not configured")
		}
		return NewRedisStore(client, cfg.Security.EventCapacity, cfg.Security.EventPruneSize), nil
	}
	return NewRingBuffer(cfg.Security.EventCapacity, cfg.Security.EventPruneSize), nil
}
