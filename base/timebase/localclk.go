package timebase

import (
	"time"
)

// LocalClock provides the time base for all packet timestamps. The query
// tool only ever reads the clock, it never steers it.
type LocalClock interface {
	Now() time.Time
	Sleep(duration time.Duration)
}
