// Package gpio provides the digital pin capability used by the output
// drivers and timing-based sensors.
//
// A pin is addressed by Broadcom number on the Raspberry Pi. Every pin is
// exclusively owned: components obtain handles through a Registry, which
// refuses to hand the same pin out twice.
package gpio

// Level is a digital pin level.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// PinID identifies a hardware pin (Broadcom numbering on the Pi).
type PinID uint32

// NoPinID is the identifier carried by pins that map to no hardware.
const NoPinID PinID = 0xffffffff

// DigitalPin is an abstract digital I/O pin. Implementations are not safe
// for concurrent use; each pin has exactly one owning component.
type DigitalPin interface {
	// MakeDigitalInput switches the pin to input mode, releasing the line.
	MakeDigitalInput()

	// MakeDigitalOutput switches the pin to output mode driving the given
	// initial level.
	MakeDigitalOutput(initial Level)

	// DigitalRead samples the pin. Meaningful only in input mode.
	DigitalRead() Level

	// DigitalWrite drives the pin. Meaningful only in output mode.
	DigitalWrite(level Level)

	// ID returns the stable identifier usable inside an OutputEvent.
	ID() PinID
}

// Chip opens pins on one piece of GPIO hardware.
type Chip interface {
	Open(id PinID) (DigitalPin, error)
}

// NopPin is the pin used for axes and sensors absent from a machine
// configuration. All operations are no-ops; reads return Low.
type NopPin struct{}

func (NopPin) MakeDigitalInput()       {}
func (NopPin) MakeDigitalOutput(Level) {}
func (NopPin) DigitalRead() Level      { return Low }
func (NopPin) DigitalWrite(Level)      {}
func (NopPin) ID() PinID               { return NoPinID }

// NopChip opens NopPins regardless of id. Used when running without
// hardware attached.
type NopChip struct{}

func (NopChip) Open(PinID) (DigitalPin, error) { return NopPin{}, nil }

// invertedPin wraps a pin so that logical High drives the line Low and vice
// versa. Reads are inverted the same way.
type invertedPin struct {
	pin DigitalPin
}

// Inverted returns a pin with inverted write and read logic, matching the
// "!" prefix in pin configuration.
func Inverted(pin DigitalPin) DigitalPin {
	return invertedPin{pin: pin}
}

func (p invertedPin) MakeDigitalInput()               { p.pin.MakeDigitalInput() }
func (p invertedPin) MakeDigitalOutput(initial Level) { p.pin.MakeDigitalOutput(!initial) }
func (p invertedPin) DigitalRead() Level              { return !p.pin.DigitalRead() }
func (p invertedPin) DigitalWrite(level Level)        { p.pin.DigitalWrite(!level) }
func (p invertedPin) ID() PinID                       { return p.pin.ID() }
