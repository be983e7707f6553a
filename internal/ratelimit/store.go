package ratelimit

import (
	"context"
	"time"
)

// Window is the state of one fixed window after a hit.
type Window struct {
	Count   int64
	ResetAt time.Time
}

// Store counts hits in fixed windows. A window opens on the first hit for a
// key and closes window later; the next hit after that opens a fresh one.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration) (Window, error)
}
