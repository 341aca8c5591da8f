package iodriver

import (
	"time"

	"printipi-go/pkg/gpio"
)

// StepPulseWidth is the low period inserted before the rising step edge.
// The A4988 datasheet requires at least 1µs low and 1µs high on STEP;
// 8µs leaves margin for executor jitter.
const StepPulseWidth = 8 * time.Microsecond

// A4988 drives the Allegro A4988 current-chopping stepper driver (the chip
// on StepStick and Pololu carrier boards). It is controlled by a level on
// DIR and a low-to-high transition on STEP.
type A4988 struct {
	stepPin   gpio.DigitalPin
	dirPin    gpio.DigitalPin
	enablePin gpio.DigitalPin
	seq       [3]OutputEvent
}

// NewA4988 configures the control pins and enables the driver, so the axis
// holds position as soon as the driver exists. Pins may be gpio.NopPin for
// axes absent from the machine.
func NewA4988(step, dir, enable gpio.DigitalPin) *A4988 {
	step.MakeDigitalOutput(gpio.Low)
	dir.MakeDigitalOutput(gpio.Low)
	enable.MakeDigitalOutput(gpio.High)
	return &A4988{stepPin: step, dirPin: dir, enablePin: enable}
}

// SequenceFor returns the three transitions for one step: direction level
// at T, step low at T, step high at T+8µs. The rising edge is what the
// chip counts as the step.
//
// The returned slice aliases driver-owned storage and is valid until the
// next SequenceFor call; this keeps the real-time path allocation free.
func (d *A4988) SequenceFor(ev StepEvent) []OutputEvent {
	dirLevel := gpio.Low
	if ev.Direction == StepForward {
		dirLevel = gpio.High
	}
	d.seq = [3]OutputEvent{
		{Time: ev.Time, Pin: d.dirPin.ID(), Level: dirLevel},
		{Time: ev.Time, Pin: d.stepPin.ID(), Level: gpio.Low},
		{Time: ev.Time.Add(StepPulseWidth), Pin: d.stepPin.ID(), Level: gpio.High},
	}
	return d.seq[:]
}

// LockAxis drives the enable pin high, restoring holding current.
func (d *A4988) LockAxis() {
	d.enablePin.DigitalWrite(gpio.High)
}

// UnlockAxis drives the enable pin low, cutting holding current.
func (d *A4988) UnlockAxis() {
	d.enablePin.DigitalWrite(gpio.Low)
}
