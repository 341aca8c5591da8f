package sched

import (
	"testing"

	"printipi-go/pkg/clock"
	"printipi-go/pkg/gpio"
	"printipi-go/pkg/iodriver"
)

func TestDispatchDueAppliesInTimeOrder(t *testing.T) {
	clk := clock.NewManual(0)
	e := NewExecutor(clk, nil)

	pin := gpio.NewSimPin(11)
	pin.MakeDigitalOutput(gpio.Low)
	pin.Writes = nil
	e.RegisterPin(pin)

	// Pushed out of time order; must apply in time order.
	e.Push([]iodriver.OutputEvent{
		{Time: 30, Pin: 11, Level: gpio.High},
	})
	e.Push([]iodriver.OutputEvent{
		{Time: 10, Pin: 11, Level: gpio.Low},
		{Time: 20, Pin: 11, Level: gpio.High},
	})

	next, pending := e.DispatchDue(5)
	if !pending || next != 10 {
		t.Fatalf("DispatchDue(5) = %v, %v; want 10, true", next, pending)
	}
	if len(pin.Writes) != 0 {
		t.Fatalf("events applied early: %v", pin.Writes)
	}

	next, pending = e.DispatchDue(20)
	if !pending || next != 30 {
		t.Fatalf("DispatchDue(20) = %v, %v; want 30, true", next, pending)
	}
	if len(pin.Writes) != 2 || pin.Writes[0] != gpio.Low || pin.Writes[1] != gpio.High {
		t.Fatalf("writes after t=20: %v", pin.Writes)
	}

	if _, pending = e.DispatchDue(100); pending {
		t.Fatal("events still pending after final dispatch")
	}
	if pin.Driven != gpio.High {
		t.Errorf("final level = %v, want high", pin.Driven)
	}
	if e.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", e.Pending())
	}
}

func TestDispatchPreservesSequenceOrderAtEqualTimes(t *testing.T) {
	clk := clock.NewManual(0)
	e := NewExecutor(clk, nil)

	dir := gpio.NewSimPin(12)
	step := gpio.NewSimPin(11)
	e.RegisterPin(dir)
	e.RegisterPin(step)

	// A step sequence: dir and step-low share a timestamp. Their
	// relative order is part of the driver chip contract.
	const T = clock.Timestamp(1000)
	e.Push([]iodriver.OutputEvent{
		{Time: T, Pin: 12, Level: gpio.High},
		{Time: T, Pin: 11, Level: gpio.Low},
		{Time: T + 8, Pin: 11, Level: gpio.High},
	})

	e.DispatchDue(T)
	if len(dir.Writes) != 1 || len(step.Writes) != 1 {
		t.Fatalf("writes at T: dir=%v step=%v", dir.Writes, step.Writes)
	}
	if step.Driven != gpio.Low {
		t.Errorf("step level at T = %v, want low", step.Driven)
	}

	e.DispatchDue(T + 8)
	if step.Driven != gpio.High {
		t.Errorf("step level at T+8 = %v, want high", step.Driven)
	}
}

func TestInterleavedAxesKeepPerAxisOrder(t *testing.T) {
	clk := clock.NewManual(0)
	e := NewExecutor(clk, nil)

	a := gpio.NewSimPin(11)
	b := gpio.NewSimPin(21)
	e.RegisterPin(a)
	e.RegisterPin(b)

	// Two axes' sequences interleave in global time; each axis's own
	// events still apply in order.
	e.Push([]iodriver.OutputEvent{
		{Time: 10, Pin: 11, Level: gpio.Low},
		{Time: 18, Pin: 11, Level: gpio.High},
	})
	e.Push([]iodriver.OutputEvent{
		{Time: 14, Pin: 21, Level: gpio.Low},
		{Time: 22, Pin: 21, Level: gpio.High},
	})

	e.DispatchDue(25)
	wantA := []gpio.Level{gpio.Low, gpio.High}
	wantB := []gpio.Level{gpio.Low, gpio.High}
	for i := range wantA {
		if a.Writes[i] != wantA[i] {
			t.Errorf("axis a write %d = %v", i, a.Writes[i])
		}
		if b.Writes[i] != wantB[i] {
			t.Errorf("axis b write %d = %v", i, b.Writes[i])
		}
	}
}

func TestUnregisteredPinEventsDropped(t *testing.T) {
	clk := clock.NewManual(0)
	e := NewExecutor(clk, nil)

	e.Push([]iodriver.OutputEvent{
		{Time: 1, Pin: 99, Level: gpio.High},
		{Time: 1, Pin: gpio.NoPinID, Level: gpio.High},
	})
	if _, pending := e.DispatchDue(10); pending {
		t.Error("dropped events left pending")
	}
}

func TestRegisterPinIgnoresNop(t *testing.T) {
	e := NewExecutor(clock.NewManual(0), nil)
	e.RegisterPin(gpio.NopPin{})
	if len(e.pins) != 0 {
		t.Errorf("NopPin registered: %v", e.pins)
	}
}
