package security

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferPrunesOldestBatch(t *testing.T) {
	buf := NewRingBuffer(DefaultEventCapacity, DefaultEventPruneSize)
	ctx := context.Background()

	for i := 0; i < DefaultEventCapacity; i++ {
		require.NoError(t, buf.Append(ctx, Event{Details: fmt.Sprint(i)}))
	}
	assert.Equal(t, DefaultEventCapacity, buf.Len())

	require.NoError(t, buf.Append(ctx, Event{Details: "overflow"}))
	assert.Equal(t, 9001, buf.Len())

	events, err := buf.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000", events[0].Details)
	assert.Equal(t, "overflow", events[len(events)-1].Details)
}

func TestRingBufferListIsACopy(t *testing.T) {
	buf := NewRingBuffer(4, 2)
	ctx := context.Background()
	require.NoError(t, buf.Append(ctx, Event{Details: "a"}))

	events, err := buf.List(ctx)
	require.NoError(t, err)
	events[0].Details = "mutated"

	again, _ := buf.List(ctx)
	assert.Equal(t, "a", again[0].Details)
}

func TestRingBufferNormalizesSizes(t *testing.T) {
	buf := NewRingBuffer(0, 0)
	assert.Equal(t, DefaultEventCapacity, buf.capacity)
	assert.Equal(t, DefaultEventPruneSize, buf.pruneSize)

	small := NewRingBuffer(10, 50)
	assert.Equal(t, 10, small.pruneSize)
}

func TestParseClient(t *testing.T) {
	assert.Nil(t, ParseClient(""))
	assert.Nil(t, ParseClient("unknown"))

	client := ParseClient("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	require.NotNil(t, client)
	assert.Equal(t, "Chrome", client.Browser)
	assert.False(t, client.Mobile)
	assert.False(t, client.Bot)

	bot := ParseClient("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	require.NotNil(t, bot)
	assert.True(t, bot.Bot)
}

func TestEventTimestampsSurviveJSON(t *testing.T) {
	store := NewRingBuffer(2, 1)
	ts := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(context.Background(), Event{Timestamp: ts, Type: EventAPIAccess}))
	events, _ := store.List(context.Background())
	assert.True(t, events[0].Timestamp.Equal(ts))
}
