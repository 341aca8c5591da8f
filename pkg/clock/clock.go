// Package clock provides the monotonic microsecond timebase used to
// timestamp pin-level events. Output timing is scheduled against this
// timebase, so it must never step backwards.
package clock

import "time"

// Timestamp is a point on the monotonic timebase, in microseconds since an
// arbitrary (per-process) epoch. Microsecond resolution is sufficient for
// the step-pulse contracts of the supported driver chips.
type Timestamp int64

// Add returns the timestamp offset by d. Sub-microsecond remainders are
// truncated.
func (t Timestamp) Add(d time.Duration) Timestamp {
	return t + Timestamp(d/time.Microsecond)
}

// Sub returns the duration elapsed from u to t.
func (t Timestamp) Sub(u Timestamp) time.Duration {
	return time.Duration(t-u) * time.Microsecond
}

// Seconds returns the timestamp as seconds since the epoch.
func (t Timestamp) Seconds() float64 {
	return float64(t) / 1e6
}

// Clock is a monotonic timestamp source.
type Clock interface {
	Now() Timestamp
}
