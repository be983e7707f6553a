package security

import (
	"context"
	"sync"
)

const (
	DefaultEventCapacity  = 10000
	DefaultEventPruneSize = 1000
)

// EventStore holds recent security events, oldest first.
type EventStore interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context) ([]Event, error)
}

// RingBuffer is a bounded in-process EventStore. Once it holds more than
// capacity events it drops the oldest pruneSize in one step.
type RingBuffer struct {
	mu        sync.RWMutex
	events    []Event
	capacity  int
	pruneSize int
}

func NewRingBuffer(capacity, pruneSize int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	if pruneSize <= 0 || pruneSize > capacity {
		pruneSize = min(DefaultEventPruneSize, capacity)
	}
	return &RingBuffer{
		events:    make([]Event, 0, capacity+1),
		capacity:  capacity,
		pruneSize: pruneSize,
	}
}

func (b *RingBuffer) Append(_ context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)
	if len(b.events) > b.capacity {
		n := copy(b.events, b.events[b.pruneSize:])
		clear(b.events[n:])
		b.events = b.events[:n]
	}
	return nil
}

func (b *RingBuffer) List(context.Context) ([]Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out, nil
}

func (b *RingBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
