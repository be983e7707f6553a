package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fieldops/internal/clock"
)

const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end

-- Return: count, ttl (milliseconds)
return {count, ttl}
`

// RedisStore shares windows between instances through Redis.
type RedisStore struct {
	client redis.Scripter
	script *redis.Script
	clock  clock.Clock
	prefix string
}

func NewRedisStore(client redis.Scripter, clk clock.Clock) *RedisStore {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &RedisStore{
		client: client,
		script: redis.NewScript(fixedWindowScript),
		clock:  clk,
		prefix: "fieldops:ratelimit:",
	}
}

func (r *RedisStore) Hit(ctx context.Context, key string, window time.Duration) (Window, error) {
	if r == nil || r.client == nil {
		return Window{}, errors.New("rate limiter not configured")
	}
	if key == "" {
		return Window{}, errors.New("rate limiter key is empty")
	}
	if window <= 0 {
		return Window{}, errors.New("rate limiter window must be positive")
	}

	res, err := r.script.Run(ctx, r.client, []string{r.prefix + key}, window.Milliseconds()).Slice()
	if err != nil {
		return Window{}, err
	}
	if len(res) < 2 {
		return Window{}, errors.New("invalid rate limit script response")
	}

	ttl := time.Duration(castToInt(res[1])) * time.Millisecond
	return Window{
		Count:   castToInt(res[0]),
		ResetAt: r.clock.Now().Add(ttl),
	}, nil
}

func castToInt(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}
