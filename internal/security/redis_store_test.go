package security

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedList answers the append script and LRANGE against an in-memory
// list, counting round trips.
type scriptedList struct {
	redis.Scripter
	items []string
	calls int
	keys  []string
}

func (s *scriptedList) EvalSha(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	s.calls++
	s.keys = keys
	cmd := redis.NewCmd(ctx)
	s.items = append(s.items, args[0].(string))
	capacity, prune := args[1].(int64), args[2].(int64)
	if int64(len(s.items)) > capacity {
		s.items = append([]string(nil), s.items[prune:]...)
	}
	cmd.SetVal(int64(len(s.items)))
	return cmd
}

func (s *scriptedList) LRange(ctx context.Context, _ string, start, stop int64) *redis.StringSliceCmd {
	s.calls++
	cmd := redis.NewStringSliceCmd(ctx)
	cmd.SetVal(append([]string(nil), s.items...))
	return cmd
}

func TestRedisStoreAppendsInOneRoundTrip(t *testing.T) {
	client := &scriptedList{}
	store := NewRedisStore(client, 3, 2)
	ctx := context.Background()
	base := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Append(ctx, Event{Timestamp: base.Add(time.Duration(i) * time.Minute), Type: EventAPIAccess}))
	}
	assert.Equal(t, 4, client.calls)
	assert.Equal(t, []string{redisEventsKey}, client.keys)

	events, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].Timestamp.Equal(base.Add(2*time.Minute)))
	assert.True(t, events[1].Timestamp.Equal(base.Add(3*time.Minute)))
}

func TestRedisStoreNormalizesSizes(t *testing.T) {
	store := NewRedisStore(&scriptedList{}, 0, 0)
	assert.Equal(t, int64(DefaultEventCapacity), store.capacity)
	assert.Equal(t, int64(DefaultEventPruneSize), store.pruneSize)
}
