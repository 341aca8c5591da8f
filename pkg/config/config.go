// Package config loads and validates the per-machine TOML configuration.
//
// Validation here is the boundary the hardware-facing core relies on: the
// kinematic and sensing transforms are total functions only over validated
// geometry, so a bad constant must be rejected before anything is
// constructed.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root of a machine configuration file.
type Config struct {
	Printer    PrinterConfig               `toml:"printer"`
	Log        LogConfig                   `toml:"log"`
	Status     StatusConfig                `toml:"status"`
	Steppers   map[string]StepperConfig    `toml:"stepper"`
	Thermistor map[string]ThermistorConfig `toml:"thermistor"`
}

// PrinterConfig holds the delta geometry constants, in millimeters.
type PrinterConfig struct {
	Kinematics         string  `toml:"kinematics"`
	Radius             float64 `toml:"radius"`
	ArmLength          float64 `toml:"arm_length"`
	Height             float64 `toml:"height"`
	BuildRadius        float64 `toml:"build_radius"`
	StepsPerMM         float64 `toml:"steps_per_mm"`
	ExtruderStepsPerMM float64 `toml:"extruder_steps_per_mm"`

	// BedLevel is an optional row-major 3x3 correction matrix.
	BedLevel []float64 `toml:"bed_level"`
}

// LogConfig selects log level and file rotation.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// StatusConfig configures the telemetry server.
type StatusConfig struct {
	Addr string `toml:"addr"`
}

// StepperConfig assigns the control pins of one axis. Pin specs are
// Broadcom numbers with an optional "!" prefix for inverted logic; an
// empty spec means the pin is absent and a no-op pin is used.
type StepperConfig struct {
	StepPin   string `toml:"step_pin"`
	DirPin    string `toml:"dir_pin"`
	EnablePin string `toml:"enable_pin"`
}

// ThermistorConfig holds one RC sensing channel.
type ThermistorConfig struct {
	Pin                string  `toml:"pin"`
	SeriesResistorOhms float64 `toml:"series_resistor_ohms"`
	CapacitancePicoF   float64 `toml:"capacitance_pf"`
	SupplyMillivolts   float64 `toml:"supply_mv"`
	ToggleMillivolts   float64 `toml:"toggle_mv"`
	T0Celsius          float64 `toml:"t0_celsius"`
	R0Ohms             float64 `toml:"r0_ohms"`
	Beta               float64 `toml:"beta"`
	MinResistance      float64 `toml:"min_resistance"`
	MaxResistance      float64 `toml:"max_resistance"`
	ReadTimeoutMS      int     `toml:"read_timeout_ms"`
}

// ReadTimeout returns the watchdog bound as a duration.
func (c ThermistorConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// Load reads and validates a machine configuration file.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every constraint the core depends on.
func (c *Config) Validate() error {
	p := &c.Printer
	if p.Kinematics != "delta" {
		return fmt.Errorf("config: unsupported kinematics %q (only delta)", p.Kinematics)
	}
	if p.Radius < 0 {
		return fmt.Errorf("config: printer radius %.3f must be non-negative", p.Radius)
	}
	if p.ArmLength <= p.Radius {
		return fmt.Errorf("config: arm_length %.3f must exceed radius %.3f", p.ArmLength, p.Radius)
	}
	if p.StepsPerMM <= 0 {
		return fmt.Errorf("config: steps_per_mm %.3f must be positive", p.StepsPerMM)
	}
	if p.ExtruderStepsPerMM <= 0 {
		return fmt.Errorf("config: extruder_steps_per_mm %.3f must be positive", p.ExtruderStepsPerMM)
	}
	if p.BuildRadius < 0 {
		return fmt.Errorf("config: build_radius %.3f must be non-negative", p.BuildRadius)
	}
	if len(p.BedLevel) != 0 && len(p.BedLevel) != 9 {
		return fmt.Errorf("config: bed_level needs 9 entries, got %d", len(p.BedLevel))
	}

	for name, st := range c.Steppers {
		for _, spec := range []string{st.StepPin, st.DirPin, st.EnablePin} {
			if _, err := ParsePin(spec); err != nil {
				return fmt.Errorf("config: stepper.%s: %w", name, err)
			}
		}
	}

	for name, th := range c.Thermistor {
		if _, err := ParsePin(th.Pin); err != nil {
			return fmt.Errorf("config: thermistor.%s: %w", name, err)
		}
		if th.SeriesResistorOhms <= 0 {
			return fmt.Errorf("config: thermistor.%s: series_resistor_ohms must be positive", name)
		}
		if th.CapacitancePicoF <= 0 {
			return fmt.Errorf("config: thermistor.%s: capacitance_pf must be positive", name)
		}
		if th.ToggleMillivolts <= 0 || th.ToggleMillivolts >= th.SupplyMillivolts {
			return fmt.Errorf("config: thermistor.%s: toggle_mv must be between 0 and supply_mv", name)
		}
		if th.R0Ohms <= 0 || th.Beta <= 0 {
			return fmt.Errorf("config: thermistor.%s: r0_ohms and beta must be positive", name)
		}
		if th.ReadTimeoutMS < 0 {
			return fmt.Errorf("config: thermistor.%s: read_timeout_ms must be non-negative", name)
		}
	}

	return nil
}
