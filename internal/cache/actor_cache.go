package cache

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/clock"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
	"go.uber.org/fx"
)

const defaultActorTTL = 30 * time.Second

// ActorResolver turns an authenticated user id into the actor used by the
// services. Roles change rarely, so lookups are kept for a short while.
type ActorResolver interface {
	Resolve(ctx context.Context, userID snowflake.ID) (userdomain.Actor, error)
	Invalidate(userID snowflake.ID)
}

type actorCache struct {
	users   userdomain.Service
	entries Cache[snowflake.ID, userdomain.Actor]
	ttl     time.Duration
}

func NewActorResolver(users userdomain.Service, clk clock.Clock) ActorResolver {
	return &actorCache{
		users:   users,
		entries: NewTTLCache[snowflake.ID, userdomain.Actor](clk),
		ttl:     defaultActorTTL,
	}
}

func (c *actorCache) Resolve(ctx context.Context, userID snowflake.ID) (userdomain.Actor, error) {
	if actor, ok := c.entries.Get(userID); ok {
		return actor, nil
	}
	user, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return userdomain.Actor{}, err
	}
	actor := user.Actor()
	c.entries.Set(userID, actor, c.ttl)
	return actor, nil
}

func (c *actorCache) Invalidate(userID snowflake.ID) {
	c.entries.Delete(userID)
}

var Module = fx.Module("cache",
	fx.Provide(NewActorResolver),
)
