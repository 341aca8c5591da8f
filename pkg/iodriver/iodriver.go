// Package iodriver turns logical motion events into timed pin-level
// transitions for specific stepper driver chips.
package iodriver

import (
	"printipi-go/pkg/clock"
	"printipi-go/pkg/gpio"
)

// StepDirection selects which way an axis moves.
type StepDirection int

const (
	StepForward StepDirection = iota
	StepBackward
)

func (d StepDirection) String() string {
	if d == StepForward {
		return "forward"
	}
	return "backward"
}

// StepEvent is one logical "take a step" request, produced by the motion
// planner and consumed exactly once by a driver.
type StepEvent struct {
	Time      clock.Timestamp
	Axis      int
	Direction StepDirection
}

// OutputEvent is one pin-level transition at an absolute time. The executor
// applies each event to its pin no earlier than Time, and must preserve the
// order of events within one sequence exactly as produced; reordering or
// splitting a sequence breaks the driver chip's step-detection contract.
type OutputEvent struct {
	Time  clock.Timestamp
	Pin   gpio.PinID
	Level gpio.Level
}

// IODriver sequences step events for one axis. Implementations run on the
// real-time control thread: no blocking, no locks, no unbounded
// allocation.
type IODriver interface {
	// SequenceFor returns the ordered pin transitions realizing one step.
	SequenceFor(ev StepEvent) []OutputEvent

	// LockAxis restores holding current to the motor, immediately.
	LockAxis()

	// UnlockAxis cuts holding current, immediately. Intended for manual
	// and idle-state control outside the timed event stream.
	UnlockAxis()
}
