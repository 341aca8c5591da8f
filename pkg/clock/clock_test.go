package clock

import (
	"testing"
	"time"
)

func TestTimestampAdd(t *testing.T) {
	tests := []struct {
		name string
		base Timestamp
		d    time.Duration
		want Timestamp
	}{
		{"zero", 0, 0, 0},
		{"8 microseconds", 1000, 8 * time.Microsecond, 1008},
		{"one second", 5, time.Second, 1000005},
		{"negative offset", 100, -30 * time.Microsecond, 70},
		{"sub-microsecond truncated", 100, 1500 * time.Nanosecond, 101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.base.Add(tt.d); got != tt.want {
				t.Errorf("Add(%v) = %d, want %d", tt.d, got, tt.want)
			}
		})
	}
}

func TestTimestampSub(t *testing.T) {
	a := Timestamp(1008)
	b := Timestamp(1000)
	if got := a.Sub(b); got != 8*time.Microsecond {
		t.Errorf("Sub = %v, want 8µs", got)
	}
	if got := b.Sub(a); got != -8*time.Microsecond {
		t.Errorf("Sub = %v, want -8µs", got)
	}
}

func TestTimestampSeconds(t *testing.T) {
	if got := Timestamp(2500000).Seconds(); got != 2.5 {
		t.Errorf("Seconds = %v, want 2.5", got)
	}
}

func TestMonotonicIncreasing(t *testing.T) {
	c := NewMonotonic()
	t1 := c.Now()
	time.Sleep(2 * time.Millisecond)
	t2 := c.Now()
	if t2 <= t1 {
		t.Errorf("monotonic time not increasing: %d <= %d", t2, t1)
	}
	if elapsed := t2.Sub(t1); elapsed < time.Millisecond || elapsed > 500*time.Millisecond {
		t.Errorf("unexpected elapsed time %v (expected ~2ms)", elapsed)
	}
}

func TestManual(t *testing.T) {
	m := NewManual(100)
	if m.Now() != 100 {
		t.Fatalf("Now = %d, want 100", m.Now())
	}
	m.Advance(50 * time.Microsecond)
	if m.Now() != 150 {
		t.Errorf("after Advance, Now = %d, want 150", m.Now())
	}
	m.Set(1000)
	if m.Now() != 1000 {
		t.Errorf("after Set, Now = %d, want 1000", m.Now())
	}
}
