package config

import (
	"fmt"
	"strconv"
	"strings"

	"printipi-go/pkg/gpio"
)

// PinSpec is a parsed pin assignment.
type PinSpec struct {
	ID     gpio.PinID
	Invert bool
	Absent bool
}

// ParsePin parses a pin assignment string: a Broadcom pin number, with an
// optional "!" prefix for inverted logic. The empty string denotes an
// absent pin.
func ParsePin(spec string) (PinSpec, error) {
	s := strings.TrimSpace(spec)
	if s == "" {
		return PinSpec{ID: gpio.NoPinID, Absent: true}, nil
	}

	var p PinSpec
	if strings.HasPrefix(s, "!") {
		p.Invert = true
		s = strings.TrimSpace(s[1:])
	}

	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return PinSpec{}, fmt.Errorf("invalid pin spec %q", spec)
	}
	p.ID = gpio.PinID(n)
	return p, nil
}

// Claim resolves the spec against a registry, applying inversion. Absent
// specs yield a no-op pin without touching the registry.
func (p PinSpec) Claim(reg *gpio.Registry, owner string) (gpio.DigitalPin, error) {
	pin, err := reg.Claim(p.ID, owner)
	if err != nil {
		return nil, err
	}
	if p.Invert {
		pin = gpio.Inverted(pin)
	}
	return pin, nil
}
