package security

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

const redisEventsKey = "fieldops:security:events"

// appendEventScript pushes an event and drops the oldest batch atomically.
const appendEventScript = `
local length = redis.call("RPUSH", KEYS[1], ARGV[1])
if length > tonumber(ARGV[2]) then
  redis.call("LTRIM", KEYS[1], tonumber(ARGV[3]), -1)
  length = length - tonumber(ARGV[3])
end
return length
`

type eventClient interface {
	redis.Scripter
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// RedisStore keeps the event buffer in a Redis list so every instance sees
// the same recent history. Pruning follows RingBuffer.
type RedisStore struct {
	client    eventClient
	script    *redis.Script
	key       string
	capacity  int64
	pruneSize int64
}

func NewRedisStore(client eventClient, capacity, pruneSize int) *RedisStore {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	if pruneSize <= 0 || pruneSize > capacity {
		pruneSize = min(DefaultEventPruneSize, capacity)
	}
	return &RedisStore{
		client:    client,
		script:    redis.NewScript(appendEventScript),
		key:       redisEventsKey,
		capacity:  int64(capacity),
		pruneSize: int64(pruneSize),
	}
}

func (r *RedisStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.script.Run(ctx, r.client, []string{r.key}, string(payload), r.capacity, r.pruneSize).Err()
}

func (r *RedisStore) List(ctx context.Context) ([]Event, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var event Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("decode security event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}
