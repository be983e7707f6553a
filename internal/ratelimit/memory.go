package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallbiznis/fieldops/internal/clock"
)

const sweepEvery = 1024

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps windows in process memory. Counts are not shared between
// instances.
type MemoryStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	windows map[string]*memoryWindow
	hits    uint64
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &MemoryStore{
		clock:   clk,
		windows: make(map[string]*memoryWindow),
	}
}

func (m *MemoryStore) Hit(_ context.Context, key string, window time.Duration) (Window, error) {
	if key == "" {
		return Window{}, errors.New("rate limiter key is empty")
	}
	if window <= 0 {
		return Window{}, errors.New("rate limiter window must be positive")
	}

	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.hits++
	if m.hits%sweepEvery == 0 {
		m.sweep(now)
	}

	w, ok := m.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		m.windows[key] = w
	}
	w.count++
	return Window{Count: w.count, ResetAt: w.resetAt}, nil
}

// Len reports how many windows are tracked.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func (m *MemoryStore) sweep(now time.Time) {
	for key, w := range m.windows {
		if now.After(w.resetAt) {
			delete(m.windows, key)
		}
	}
}
