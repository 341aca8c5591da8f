// printipi is the hardware-facing control daemon for a linear delta
// 3D printer. It owns the GPIO pins, converts mechanical stepper state
// to cartesian coordinates, drives A4988 stepper sequences with
// microsecond timestamps, and reads RC-discharge thermistors.
//
// Usage:
//
//	printipi -config machine.toml [options]
//
// Options:
//
//	-config string  Machine configuration file (required)
//	-addr string    Telemetry server address (overrides config)
//	-logfile string Log file path (overrides config)
//	-trace          Enable debug tracing
//	-simulate       Use simulated pins instead of hardware GPIO
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"printipi-go/pkg/clock"
	"printipi-go/pkg/config"
	"printipi-go/pkg/gpio"
	"printipi-go/pkg/iodriver"
	"printipi-go/pkg/kinematics"
	"printipi-go/pkg/log"
	"printipi-go/pkg/sched"
	"printipi-go/pkg/status"
	"printipi-go/pkg/thermistor"
)

const (
	sensorPollInterval = 10 * time.Millisecond
	sensorSettleTime   = 100 * time.Millisecond
	broadcastInterval  = 500 * time.Millisecond
)

// machineState is the telemetry view shared between the control loops
// and the status server.
type machineState struct {
	mu    sync.Mutex
	coord *kinematics.LinearDelta
	axes  kinematics.AxisState
	temps map[string]float64
}

func (m *machineState) Position() kinematics.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coord.PositionFromMechanical(m.axes)
}

func (m *machineState) Temperatures() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.temps))
	for name, v := range m.temps {
		out[name] = v
	}
	return out
}

func (m *machineState) setTemperature(name string, celsius float64) {
	m.mu.Lock()
	m.temps[name] = celsius
	m.mu.Unlock()
}

// axisForStepper maps a stepper section name to its axis index.
func axisForStepper(name string) (int, bool) {
	switch name {
	case "a":
		return kinematics.AxisA, true
	case "b":
		return kinematics.AxisB, true
	case "c":
		return kinematics.AxisC, true
	case "e":
		return kinematics.AxisE, true
	}
	return 0, false
}

func claimPin(reg *gpio.Registry, spec, owner string) (gpio.DigitalPin, error) {
	parsed, err := config.ParsePin(spec)
	if err != nil {
		return nil, err
	}
	return parsed.Claim(reg, owner)
}

func main() {
	configFile := flag.String("config", "", "Machine configuration file (required)")
	statusAddr := flag.String("addr", "", "Telemetry server address (overrides config)")
	logFile := flag.String("logfile", "", "Log file path (overrides config)")
	trace := flag.Bool("trace", false, "Enable debug tracing")
	simulate := flag.Bool("simulate", false, "Use simulated pins instead of hardware GPIO")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logCfg := log.DefaultConfig()
	if cfg.Log.Level != "" {
		logCfg.Level = cfg.Log.Level
	}
	if *trace {
		logCfg.Level = "debug"
	}
	logCfg.File = cfg.Log.File
	if *logFile != "" {
		logCfg.File = *logFile
	}
	if cfg.Log.MaxSizeMB > 0 {
		logCfg.MaxSizeMB = cfg.Log.MaxSizeMB
	}
	if cfg.Log.MaxBackups > 0 {
		logCfg.MaxBackups = cfg.Log.MaxBackups
	}
	if cfg.Log.MaxAgeDays > 0 {
		logCfg.MaxAgeDays = cfg.Log.MaxAgeDays
	}
	logger := log.New(logCfg)
	defer logger.Sync()

	logger.Infow("printipi starting", "config", *configFile, "simulate", *simulate)

	var chip gpio.Chip
	if *simulate {
		chip = gpio.NewSimChip()
	} else {
		hw, closeChip, err := openHardwareChip()
		if err != nil {
			logger.Fatalw("open GPIO", "error", err)
		}
		defer closeChip()
		chip = hw
	}
	reg := gpio.NewRegistry(chip)

	var bedLevel kinematics.BedLevel
	if len(cfg.Printer.BedLevel) == 9 {
		var m kinematics.Matrix3x3
		copy(m[:], cfg.Printer.BedLevel)
		bedLevel = m
	} else {
		bedLevel = kinematics.IdentityMatrix()
	}
	coord, err := kinematics.NewLinearDelta(kinematics.DeltaConfig{
		Radius:             cfg.Printer.Radius,
		ArmLength:          cfg.Printer.ArmLength,
		Height:             cfg.Printer.Height,
		BuildRadius:        cfg.Printer.BuildRadius,
		StepsPerMM:         cfg.Printer.StepsPerMM,
		ExtruderStepsPerMM: cfg.Printer.ExtruderStepsPerMM,
		BedLevel:           bedLevel,
	}, logger.Named("kinematics"))
	if err != nil {
		logger.Fatalw("kinematics", "error", err)
	}

	state := &machineState{
		coord: coord,
		axes:  coord.HomePosition(kinematics.AxisState{}),
		temps: make(map[string]float64),
	}

	clk := clock.NewMonotonic()
	executor := sched.NewExecutor(clk, logger.Named("sched"))

	drivers := make(map[int]*iodriver.A4988)
	for name, st := range cfg.Steppers {
		axis, ok := axisForStepper(name)
		if !ok {
			logger.Fatalw("unknown stepper axis", "stepper", name)
		}
		owner := "stepper." + name
		stepPin, err := claimPin(reg, st.StepPin, owner)
		if err != nil {
			logger.Fatalw("claim step pin", "stepper", name, "error", err)
		}
		dirPin, err := claimPin(reg, st.DirPin, owner)
		if err != nil {
			logger.Fatalw("claim dir pin", "stepper", name, "error", err)
		}
		enablePin, err := claimPin(reg, st.EnablePin, owner)
		if err != nil {
			logger.Fatalw("claim enable pin", "stepper", name, "error", err)
		}
		drivers[axis] = iodriver.NewA4988(stepPin, dirPin, enablePin)
		executor.RegisterPin(stepPin)
		executor.RegisterPin(dirPin)
		logger.Infow("stepper configured",
			"stepper", name, "step", st.StepPin, "dir", st.DirPin, "enable", st.EnablePin)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var loops sync.WaitGroup
	loops.Add(1)
	go func() {
		defer loops.Done()
		executor.Run(ctx)
	}()

	for name, th := range cfg.Thermistor {
		pin, err := claimPin(reg, th.Pin, "thermistor."+name)
		if err != nil {
			logger.Fatalw("claim thermistor pin", "thermistor", name, "error", err)
		}
		sensor, err := thermistor.New(pin, clk, thermistor.Config{
			SeriesResistorOhms: th.SeriesResistorOhms,
			CapacitancePicoF:   th.CapacitancePicoF,
			SupplyMillivolts:   th.SupplyMillivolts,
			ToggleMillivolts:   th.ToggleMillivolts,
			T0Celsius:          th.T0Celsius,
			R0Ohms:             th.R0Ohms,
			Beta:               th.Beta,
			MinResistance:      th.MinResistance,
			MaxResistance:      th.MaxResistance,
			ReadTimeout:        th.ReadTimeout(),
		}, logger.Named("thermistor."+name))
		if err != nil {
			logger.Fatalw("thermistor", "thermistor", name, "error", err)
		}

		sensorName := name
		poller := sched.NewSensorPoller(sensor, clk, sensorSettleTime, func(celsius float64) {
			state.setTemperature(sensorName, celsius)
		}, logger.Named("poll."+name))
		loops.Add(1)
		go func() {
			defer loops.Done()
			poller.Run(ctx, sensorPollInterval)
		}()
		logger.Infow("thermistor configured", "thermistor", name, "pin", th.Pin)
	}

	addr := cfg.Status.Addr
	if *statusAddr != "" {
		addr = *statusAddr
	}
	var server *status.Server
	if addr != "" {
		server = status.New(addr, state, logger.Named("status"))
		go func() {
			if err := server.Start(); err != nil {
				logger.Errorw("status server", "error", err)
			}
		}()
		loops.Add(1)
		go func() {
			defer loops.Done()
			ticker := time.NewTicker(broadcastInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					server.Broadcast()
				}
			}
		}()
		logger.Infow("telemetry listening", "addr", addr)
	}

	home := state.Position()
	logger.Infow("ready",
		"steppers", len(drivers), "thermistors", len(cfg.Thermistor),
		"home_x", home.X, "home_y", home.Y, "home_z", home.Z)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
	if server != nil {
		server.Stop()
	}
	for _, drv := range drivers {
		drv.UnlockAxis()
	}
	loops.Wait()
	logger.Info("stopped")
}
