package clock

import "time"

// Manual is a clock advanced explicitly by the caller. Used in tests to
// exercise timing logic deterministically.
type Manual struct {
	now Timestamp
}

// NewManual returns a manual clock starting at the given timestamp.
func NewManual(start Timestamp) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() Timestamp {
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

// Set moves the clock to an absolute timestamp.
func (m *Manual) Set(t Timestamp) {
	m.now = t
}
