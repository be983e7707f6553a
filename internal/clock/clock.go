package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock is the single source of "now" for timestamps written to storage.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)

// DateString renders t as the calendar date used by date-only columns.
func DateString(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
