//go:build linux

package main

import "printipi-go/pkg/gpio"

// openHardwareChip maps the BCM2835 GPIO register block.
func openHardwareChip() (gpio.Chip, func() error, error) {
	chip, err := gpio.OpenRpiChip()
	if err != nil {
		return nil, nil, err
	}
	return chip, chip.Close, nil
}
