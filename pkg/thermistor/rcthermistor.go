// Package thermistor infers temperature from RC discharge timing on a
// single digital pin.
//
// The Raspberry Pi has no ADC. A thermistor in series with a capacitor
// still yields a measurable analog quantity: charge the capacitor, release
// the pin to float, and time how long the line takes to fall below the
// pin's logic threshold. The elapsed time fixes the thermistor resistance,
// and the Beta model turns resistance into temperature.
package thermistor

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"printipi-go/pkg/clock"
	"printipi-go/pkg/gpio"
	"printipi-go/pkg/log"
)

// KelvinToCelsius is the offset from Kelvin to Celsius.
const KelvinToCelsius = -273.15

// resistanceTolerance is the absolute bracket width, in ohms, at which the
// resistance search stops. Adequate for the configured resistance ranges;
// deliberately absolute rather than relative.
const resistanceTolerance = 2.0

// Config holds the circuit and calibration constants of one RC thermistor
// channel. Immutable after construction.
type Config struct {
	// SeriesResistorOhms is the fixed resistor between pin and capacitor.
	// Should be at least ~300Ω to limit pin current, but much above 1kΩ
	// high temperatures become unmeasurable.
	SeriesResistorOhms float64

	// CapacitancePicoF is the timing capacitor. Larger values add
	// precision but slow the measurement cycle at low temperatures.
	CapacitancePicoF float64

	// SupplyMillivolts is the drive voltage charging the capacitor.
	SupplyMillivolts float64

	// ToggleMillivolts is the threshold at which the pin stops reading
	// high while the line falls. Due to hysteresis this is not the same
	// voltage as the low-to-high transition.
	ToggleMillivolts float64

	// T0Celsius, R0Ohms and Beta are the thermistor calibration
	// constants from its datasheet; T0 is commonly 25.
	T0Celsius float64
	R0Ohms    float64
	Beta      float64

	// MinResistance and MaxResistance bracket the search. MaxResistance
	// defaults to 2×R0Ohms when zero.
	MinResistance float64
	MaxResistance float64

	// ReadTimeout is the explicit watchdog bound: a discharge still
	// pending after this long is reported as stuck. Zero disables the
	// check. The recovery policy stays with the caller.
	ReadTimeout time.Duration
}

// readState is the measurement cycle position.
type readState int

const (
	stateIdle readState = iota
	stateDischarging
	stateReadComplete
)

// RCThermistor runs charge/discharge measurement cycles on one pin. Not
// safe for concurrent use: it lives on the single real-time control
// thread, and waiting is expressed as repeated non-blocking IsReady polls
// driven externally.
type RCThermistor struct {
	pin    gpio.DigitalPin
	clk    clock.Clock
	logger *zap.SugaredLogger

	// Derived circuit constants in SI units.
	capacitance float64 // farads
	vcc         float64 // volts
	vToggle     float64 // volts
	seriesR     float64 // ohms
	t0          float64 // kelvin
	r0          float64
	beta        float64
	minR        float64
	maxR        float64
	timeout     time.Duration

	state     readState
	startTime clock.Timestamp
	endTime   clock.Timestamp
}

// New validates the configuration and binds the sensor to its pin. The pin
// is owned exclusively by this sensor for the life of the process.
func New(pin gpio.DigitalPin, clk clock.Clock, cfg Config, logger *zap.SugaredLogger) (*RCThermistor, error) {
	if cfg.SeriesResistorOhms <= 0 {
		return nil, fmt.Errorf("thermistor: series resistor %.1f must be positive", cfg.SeriesResistorOhms)
	}
	if cfg.CapacitancePicoF <= 0 {
		return nil, fmt.Errorf("thermistor: capacitance %.1f must be positive", cfg.CapacitancePicoF)
	}
	if cfg.SupplyMillivolts <= 0 || cfg.ToggleMillivolts <= 0 {
		return nil, fmt.Errorf("thermistor: supply %.1f and toggle %.1f voltages must be positive", cfg.SupplyMillivolts, cfg.ToggleMillivolts)
	}
	if cfg.ToggleMillivolts >= cfg.SupplyMillivolts {
		return nil, fmt.Errorf("thermistor: toggle voltage %.1f must be below supply %.1f", cfg.ToggleMillivolts, cfg.SupplyMillivolts)
	}
	if cfg.R0Ohms <= 0 || cfg.Beta <= 0 {
		return nil, fmt.Errorf("thermistor: R0 %.1f and beta %.1f must be positive", cfg.R0Ohms, cfg.Beta)
	}
	maxR := cfg.MaxResistance
	if maxR == 0 {
		maxR = 2 * cfg.R0Ohms
	}
	if maxR <= cfg.MinResistance {
		return nil, fmt.Errorf("thermistor: max resistance %.1f must exceed min %.1f", maxR, cfg.MinResistance)
	}

	return &RCThermistor{
		pin:         pin,
		clk:         clk,
		logger:      log.OrNop(logger),
		capacitance: cfg.CapacitancePicoF * 1e-12,
		vcc:         cfg.SupplyMillivolts / 1000,
		vToggle:     cfg.ToggleMillivolts / 1000,
		seriesR:     cfg.SeriesResistorOhms,
		t0:          cfg.T0Celsius - KelvinToCelsius,
		r0:          cfg.R0Ohms,
		beta:        cfg.Beta,
		minR:        cfg.MinResistance,
		maxR:        maxR,
		timeout:     cfg.ReadTimeout,
	}, nil
}

// StartRead begins a measurement cycle: the pin is released to input mode
// (letting the capacitor discharge through the thermistor) and the start
// time recorded. Any in-flight cycle is abandoned.
func (s *RCThermistor) StartRead() {
	s.pin.MakeDigitalInput()
	s.startTime = s.clk.Now()
	s.state = stateDischarging
}

// IsReady polls the measurement. While the capacitor is still above the
// logic threshold it returns false. The first low sample latches the end
// time, re-drives the pin high to drain the capacitor for the next cycle,
// and completes the read; later calls return true without re-sampling.
func (s *RCThermistor) IsReady() bool {
	switch s.state {
	case stateReadComplete:
		return true
	case stateDischarging:
		if s.pin.DigitalRead() == gpio.High {
			return false
		}
		s.endTime = s.clk.Now()
		s.pin.MakeDigitalOutput(gpio.High)
		s.state = stateReadComplete
		return true
	default:
		return false
	}
}

// ElapsedSinceStart reports time since StartRead, usable at any point in
// the cycle to detect a read that never completes.
func (s *RCThermistor) ElapsedSinceStart() time.Duration {
	return s.clk.Now().Sub(s.startTime)
}

// Stuck reports whether a discharge has been pending longer than the
// configured ReadTimeout. Always false when the timeout is disabled.
func (s *RCThermistor) Stuck() bool {
	return s.timeout > 0 && s.state == stateDischarging && s.ElapsedSinceStart() > s.timeout
}

// Abort abandons a pending cycle and re-drives the pin high so the
// capacitor recharges. Used by the caller's watchdog policy after Stuck.
func (s *RCThermistor) Abort() {
	s.pin.MakeDigitalOutput(gpio.High)
	s.state = stateIdle
}

// Value converts the last completed measurement into degrees Celsius.
// Valid only after IsReady has returned true for the current cycle.
func (s *RCThermistor) Value() float64 {
	duration := s.endTime.Sub(s.startTime).Seconds()
	resistance := s.resistanceFromTime(duration)
	temp := s.temperatureFromResistance(resistance)
	s.logger.Debugf("discharge %.6fs -> %.1f ohm -> %.2f C", duration, resistance, temp)
	return temp
}

// resistanceFromTime inverts the discharge-time equation
//
//	t = C·Rt·ln(Rt·Vcc / ((Ra+Rt)·Va))
//
// which has no closed-form solution for Rt. Bounded binary search: a
// midpoint whose predicted time falls short of the measurement means the
// true resistance is larger. Implausible measurements converge to a
// bracket edge rather than failing; callers needing strict validation
// bound-check the result themselves.
func (s *RCThermistor) resistanceFromTime(t float64) float64 {
	return s.searchResistance(t, nil)
}

// searchResistance is resistanceFromTime with an iteration hook for tests.
func (s *RCThermistor) searchResistance(t float64, visit func(lower, upper float64)) float64 {
	lower, upper := s.minR, s.maxR
	for upper-lower > resistanceTolerance {
		if visit != nil {
			visit(lower, upper)
		}
		rt := 0.5 * (upper + lower)
		predicted := s.capacitance * rt * math.Log(rt*s.vcc/((s.seriesR+rt)*s.vToggle))
		if predicted < t {
			lower = rt
		} else {
			upper = rt
		}
	}
	return 0.5 * (lower + upper)
}

// temperatureFromResistance applies the Beta thermistor model
// 1/T = 1/T0 + ln(R/R0)/B and converts to Celsius.
func (s *RCThermistor) temperatureFromResistance(r float64) float64 {
	kelvin := 1.0 / (1.0/s.t0 + math.Log(r/s.r0)/s.beta)
	return kelvin + KelvinToCelsius
}
