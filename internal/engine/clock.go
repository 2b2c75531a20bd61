package engine

import "time"

// Clock supplies wall-clock time to a run.
//
// The engine reads it three times per run: at start, just before the fetch
// (the future checkpoint) and at finish. Tests substitute a fixed clock so
// checkpoints and history rows are reproducible.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
