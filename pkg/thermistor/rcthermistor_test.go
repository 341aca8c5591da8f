package thermistor

import (
	"math"
	"testing"
	"time"

	"printipi-go/pkg/clock"
	"printipi-go/pkg/gpio"
)

func testConfig() Config {
	return Config{
		SeriesResistorOhms: 500,
		CapacitancePicoF:   100000,
		SupplyMillivolts:   3300,
		ToggleMillivolts:   1650,
		T0Celsius:          25,
		R0Ohms:             100000,
		Beta:               3950,
		ReadTimeout:        time.Second,
	}
}

func newTestSensor(t *testing.T) (*RCThermistor, *gpio.SimPin, *clock.Manual) {
	t.Helper()
	pin := gpio.NewSimPin(7)
	clk := clock.NewManual(0)
	s, err := New(pin, clk, testConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s, pin, clk
}

// forwardTime computes the discharge duration the circuit model predicts
// for a known thermistor resistance.
func forwardTime(cfg Config, rt float64) float64 {
	c := cfg.CapacitancePicoF * 1e-12
	vcc := cfg.SupplyMillivolts / 1000
	va := cfg.ToggleMillivolts / 1000
	return c * rt * math.Log(rt*vcc/((cfg.SeriesResistorOhms+rt)*va))
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero series resistor", func(c *Config) { c.SeriesResistorOhms = 0 }},
		{"zero capacitance", func(c *Config) { c.CapacitancePicoF = 0 }},
		{"zero supply", func(c *Config) { c.SupplyMillivolts = 0 }},
		{"toggle above supply", func(c *Config) { c.ToggleMillivolts = 4000 }},
		{"zero beta", func(c *Config) { c.Beta = 0 }},
		{"max below min", func(c *Config) { c.MinResistance = 300000; c.MaxResistance = 200000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := New(gpio.NopPin{}, clock.NewManual(0), cfg, nil); err == nil {
				t.Error("expected a validation error, got nil")
			}
		})
	}
}

func TestMaxResistanceDefault(t *testing.T) {
	cfg := testConfig()
	cfg.MaxResistance = 0
	s, err := New(gpio.NopPin{}, clock.NewManual(0), cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.maxR != 2*cfg.R0Ohms {
		t.Errorf("default max resistance = %v, want %v", s.maxR, 2*cfg.R0Ohms)
	}
}

func TestResistanceRoundTrip(t *testing.T) {
	s, _, _ := newTestSensor(t)
	cfg := testConfig()

	for _, rt := range []float64{1000, 5000, 10000, 50000, 100000, 150000, 199000} {
		recovered := s.resistanceFromTime(forwardTime(cfg, rt))
		if math.Abs(recovered-rt) > resistanceTolerance {
			t.Errorf("Rt=%v recovered as %v (err %v > 2 ohm)", rt, recovered, math.Abs(recovered-rt))
		}
	}
}

func TestSearchBracketInvariant(t *testing.T) {
	s, _, _ := newTestSensor(t)
	cfg := testConfig()

	const rtTrue = 42000.0
	tMeasured := forwardTime(cfg, rtTrue)

	prevWidth := math.Inf(1)
	s.searchResistance(tMeasured, func(lower, upper float64) {
		if lower > rtTrue || upper < rtTrue {
			t.Errorf("bracket [%v, %v] excludes true resistance %v", lower, upper, rtTrue)
		}
		width := upper - lower
		if width >= prevWidth {
			t.Errorf("bracket width %v did not decrease from %v", width, prevWidth)
		}
		prevWidth = width
	})
}

func TestOutOfRangeConvergesToBracketEdge(t *testing.T) {
	s, _, _ := newTestSensor(t)

	// A duration far beyond anything the range predicts degrades to the
	// upper edge rather than failing.
	high := s.resistanceFromTime(1.0)
	if high < s.maxR-2*resistanceTolerance {
		t.Errorf("huge duration gave %v, want near max %v", high, s.maxR)
	}
}

func TestMeasurementCycle(t *testing.T) {
	s, pin, clk := newTestSensor(t)

	// Two high samples, then the threshold crossing.
	pin.ScriptReads(gpio.High, gpio.High, gpio.Low)

	s.StartRead()
	if pin.Mode != gpio.ModeInput {
		t.Errorf("StartRead left pin mode %v, want input", pin.Mode)
	}

	clk.Advance(200 * time.Microsecond)
	if s.IsReady() {
		t.Error("IsReady true while pin reads high")
	}
	clk.Advance(200 * time.Microsecond)
	if s.IsReady() {
		t.Error("IsReady true while pin reads high")
	}

	clk.Advance(244 * time.Microsecond)
	if !s.IsReady() {
		t.Fatal("IsReady false on first low sample")
	}

	// Completion drives the pin back high to drain the capacitor.
	if pin.Mode != gpio.ModeOutput || pin.Driven != gpio.High {
		t.Errorf("after completion pin mode=%v level=%v, want output high", pin.Mode, pin.Driven)
	}

	// Latched: no further sampling.
	reads := pin.ReadCount
	if !s.IsReady() || !s.IsReady() {
		t.Error("IsReady regressed after completion")
	}
	if pin.ReadCount != reads {
		t.Errorf("IsReady re-sampled the pin after completion (%d -> %d reads)", reads, pin.ReadCount)
	}
}

func TestValueFromMeasuredDuration(t *testing.T) {
	s, pin, clk := newTestSensor(t)
	cfg := testConfig()

	// Simulate the discharge duration for a 10kΩ thermistor. With
	// Beta=3950/R0=100k that resistance means roughly 89°C.
	duration := time.Duration(forwardTime(cfg, 10000) * float64(time.Second))

	pin.ScriptReads(gpio.High, gpio.Low)
	s.StartRead()
	if s.IsReady() {
		t.Fatal("ready before discharge")
	}
	clk.Advance(duration)
	if !s.IsReady() {
		t.Fatal("not ready at threshold crossing")
	}

	got := s.Value()
	wantKelvin := 1.0 / (1.0/(25-KelvinToCelsius) + math.Log(10000.0/100000.0)/3950.0)
	want := wantKelvin + KelvinToCelsius
	// The clock quantizes the duration to a microsecond, which moves the
	// recovered resistance a little; a degree of slack covers it.
	if math.Abs(got-want) > 1.0 {
		t.Errorf("Value = %v, want %v ± 1", got, want)
	}
}

func TestElapsedSinceStart(t *testing.T) {
	s, pin, clk := newTestSensor(t)
	pin.ScriptReads(gpio.High)

	s.StartRead()
	clk.Advance(300 * time.Millisecond)
	if got := s.ElapsedSinceStart(); got != 300*time.Millisecond {
		t.Errorf("ElapsedSinceStart = %v, want 300ms", got)
	}
}

func TestStuckDetection(t *testing.T) {
	s, pin, clk := newTestSensor(t)
	pin.ScriptReads(gpio.High)

	s.StartRead()
	if s.Stuck() {
		t.Error("Stuck immediately after StartRead")
	}
	clk.Advance(999 * time.Millisecond)
	s.IsReady()
	if s.Stuck() {
		t.Error("Stuck before ReadTimeout elapsed")
	}
	clk.Advance(2 * time.Millisecond)
	if !s.Stuck() {
		t.Error("not Stuck after ReadTimeout elapsed")
	}

	// Abort recovers the pin and clears the pending cycle.
	s.Abort()
	if pin.Mode != gpio.ModeOutput || pin.Driven != gpio.High {
		t.Errorf("after Abort pin mode=%v level=%v, want output high", pin.Mode, pin.Driven)
	}
	if s.Stuck() {
		t.Error("Stuck after Abort")
	}
}

func TestStuckDisabledWithoutTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ReadTimeout = 0
	pin := gpio.NewSimPin(7)
	clk := clock.NewManual(0)
	s, err := New(pin, clk, cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	pin.ScriptReads(gpio.High)
	s.StartRead()
	clk.Advance(time.Hour)
	if s.Stuck() {
		t.Error("Stuck reported with watchdog disabled")
	}
}
