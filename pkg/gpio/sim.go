package gpio

// PinMode is the configured direction of a SimPin.
type PinMode int

const (
	ModeUnset PinMode = iota
	ModeInput
	ModeOutput
)

// SimWrite records one level driven onto a SimPin.
type SimWrite struct {
	Level Level
}

// SimPin is an in-memory pin for tests. Reads pop from a scripted sequence
// of levels; writes and mode changes are recorded.
type SimPin struct {
	id PinID

	Mode   PinMode
	Driven Level // last level written (or initial output level)
	Writes []Level

	reads     []Level
	ReadCount int
}

// NewSimPin returns a simulated pin with the given id.
func NewSimPin(id PinID) *SimPin {
	return &SimPin{id: id}
}

// ScriptReads sets the sequence of levels returned by successive
// DigitalRead calls. When the script is exhausted the last level repeats.
func (p *SimPin) ScriptReads(levels ...Level) {
	p.reads = append([]Level(nil), levels...)
}

func (p *SimPin) MakeDigitalInput() {
	p.Mode = ModeInput
}

func (p *SimPin) MakeDigitalOutput(initial Level) {
	p.Mode = ModeOutput
	p.Driven = initial
	p.Writes = append(p.Writes, initial)
}

func (p *SimPin) DigitalRead() Level {
	p.ReadCount++
	if len(p.reads) == 0 {
		return Low
	}
	level := p.reads[0]
	if len(p.reads) > 1 {
		p.reads = p.reads[1:]
	}
	return level
}

func (p *SimPin) DigitalWrite(level Level) {
	p.Driven = level
	p.Writes = append(p.Writes, level)
}

func (p *SimPin) ID() PinID {
	return p.id
}

// SimChip opens SimPins and remembers them so tests can inspect pins opened
// through a Registry.
type SimChip struct {
	Pins map[PinID]*SimPin
}

// NewSimChip returns an empty simulated chip.
func NewSimChip() *SimChip {
	return &SimChip{Pins: make(map[PinID]*SimPin)}
}

func (c *SimChip) Open(id PinID) (DigitalPin, error) {
	if pin, ok := c.Pins[id]; ok {
		return pin, nil
	}
	pin := NewSimPin(id)
	c.Pins[id] = pin
	return pin, nil
}
