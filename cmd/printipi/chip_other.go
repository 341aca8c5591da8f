//go:build !linux

package main

import (
	"errors"

	"printipi-go/pkg/gpio"
)

// Memory-mapped GPIO is only available on Linux.
func openHardwareChip() (gpio.Chip, func() error, error) {
	return nil, nil, errors.New("hardware GPIO requires linux; use -simulate")
}
