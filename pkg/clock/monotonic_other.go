//go:build !linux

package clock

import "time"

var processStart = time.Now()

// Monotonic is the portable monotonic clock, measured from process start
// using the runtime's monotonic reading of time.Time.
type Monotonic struct{}

// NewMonotonic returns the system monotonic clock.
func NewMonotonic() Monotonic {
	return Monotonic{}
}

// Now returns the current monotonic time.
func (Monotonic) Now() Timestamp {
	return Timestamp(time.Since(processStart) / time.Microsecond)
}
