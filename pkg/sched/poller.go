package sched

import (
	"context"
	"time"

	"go.uber.org/zap"

	"printipi-go/pkg/clock"
	"printipi-go/pkg/log"
	"printipi-go/pkg/thermistor"
)

// pollerState tracks where a sensor is in its measure/recharge cycle.
type pollerState int

const (
	pollerIdle pollerState = iota
	pollerReading
	pollerSettling
)

// SensorPoller drives an RCThermistor through repeated measurement cycles
// with non-blocking polls. Between cycles the pin is left driving high for
// a settle period so the capacitor recharges fully.
type SensorPoller struct {
	sensor *thermistor.RCThermistor
	clk    clock.Clock
	logger *zap.SugaredLogger

	// Settle is the recharge period between cycles.
	settle time.Duration

	// OnTemperature receives each completed reading, in Celsius.
	onTemperature func(celsius float64)

	state       pollerState
	settleUntil clock.Timestamp
	stuckReads  int
}

// NewSensorPoller wires a sensor to its temperature consumer.
func NewSensorPoller(sensor *thermistor.RCThermistor, clk clock.Clock, settle time.Duration, onTemperature func(float64), logger *zap.SugaredLogger) *SensorPoller {
	return &SensorPoller{
		sensor:        sensor,
		clk:           clk,
		logger:        log.OrNop(logger),
		settle:        settle,
		onTemperature: onTemperature,
	}
}

// Poll advances the cycle by one non-blocking step. It never waits; the
// caller controls the polling cadence.
func (p *SensorPoller) Poll() {
	now := p.clk.Now()

	switch p.state {
	case pollerIdle:
		p.sensor.StartRead()
		p.state = pollerReading

	case pollerReading:
		if p.sensor.Stuck() {
			// Pin never fell: open thermistor, unplugged sensor, or a
			// threshold misconfiguration. Abandon the cycle; the value
			// callback simply never fires.
			p.stuckReads++
			p.logger.Warnf("sensor read stuck after %v (%d so far)", p.sensor.ElapsedSinceStart(), p.stuckReads)
			p.sensor.Abort()
			p.state = pollerSettling
			p.settleUntil = now.Add(p.settle)
			return
		}
		if p.sensor.IsReady() {
			temp := p.sensor.Value()
			if p.onTemperature != nil {
				p.onTemperature(temp)
			}
			p.state = pollerSettling
			p.settleUntil = now.Add(p.settle)
		}

	case pollerSettling:
		if now >= p.settleUntil {
			p.sensor.StartRead()
			p.state = pollerReading
		}
	}
}

// StuckReads returns how many cycles have been abandoned by the watchdog.
func (p *SensorPoller) StuckReads() int {
	return p.stuckReads
}

// Run polls at the given interval until the context is canceled.
func (p *SensorPoller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}
