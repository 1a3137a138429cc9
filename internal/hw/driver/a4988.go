package driver

import (
	"fmt"
	"time"

	"github.com/cjeanneret/StepGo/internal/debug"
	"github.com/cjeanneret/StepGo/internal/hw/gpio"
	"github.com/cjeanneret/StepGo/internal/hw/stepper"
)

// a4988Microsteps maps the microstep factor to the MS1..MS3 levels.
var a4988Microsteps = map[int][3]gpio.Level{
	1:  {gpio.Low, gpio.Low, gpio.Low},
	2:  {gpio.High, gpio.Low, gpio.Low},
	4:  {gpio.Low, gpio.High, gpio.Low},
	8:  {gpio.High, gpio.High, gpio.Low},
	16: {gpio.High, gpio.High, gpio.High},
}

// A4988 drives an Allegro A4988 step/dir board: STEP/DIR pulses plus
// the board's capability pins (enable, sleep, reset, microstep select).
type A4988 struct {
	*pulser
	hasMS bool
}

// NewA4988 creates an A4988 front end. MS1..MS3 must be wired all
// together or not at all; without them SetMicrosteps is unavailable.
func NewA4988(g gpio.Driver, cfg Config) (*A4988, error) {
	p, err := newPulser(g, cfg)
	if err != nil {
		return nil, err
	}

	a := &A4988{pulser: p}

	a.hasMS = cfg.MS1Pin > 0 && cfg.MS2Pin > 0 && cfg.MS3Pin > 0
	if !a.hasMS && (cfg.MS1Pin > 0 || cfg.MS2Pin > 0 || cfg.MS3Pin > 0) {
		return nil, fmt.Errorf("%w: wire all of ms1..ms3 or none", stepper.ErrConfig)
	}
	if a.hasMS {
		_ = g.SetupPin(cfg.MS1Pin, gpio.Output)
		_ = g.SetupPin(cfg.MS2Pin, gpio.Output)
		_ = g.SetupPin(cfg.MS3Pin, gpio.Output)
		if err := a.SetMicrosteps(p.microsteps); err != nil {
			return nil, err
		}
	}
	if cfg.SleepPin > 0 {
		_ = g.SetupPin(cfg.SleepPin, gpio.Output)
		_ = g.WritePin(cfg.SleepPin, gpio.High) // awake
	}
	if cfg.ResetPin > 0 {
		_ = g.SetupPin(cfg.ResetPin, gpio.Output)
		_ = g.WritePin(cfg.ResetPin, gpio.High) // not in reset
	}

	return a, nil
}

// SetMicrosteps selects the microstep factor on the MS1..MS3 pins.
// Only 1, 2, 4, 8 and 16 exist on this board.
func (a *A4988) SetMicrosteps(n int) error {
	if !a.hasMS {
		return fmt.Errorf("%w: ms1..ms3 not wired", stepper.ErrConfig)
	}
	levels, ok := a4988Microsteps[n]
	if !ok {
		return fmt.Errorf("%w: microstep factor %d (want 1/2/4/8/16)", stepper.ErrConfig, n)
	}

	if err := a.gpio.WritePin(a.cfg.MS1Pin, levels[0]); err != nil {
		return err
	}
	if err := a.gpio.WritePin(a.cfg.MS2Pin, levels[1]); err != nil {
		return err
	}
	if err := a.gpio.WritePin(a.cfg.MS3Pin, levels[2]); err != nil {
		return err
	}
	a.microsteps = n
	debug.Info("Driver %s: 1/%d microstepping", a.cfg.Name, n)
	return nil
}

// Sleep puts the driver into its low-power state (nSLEEP=LOW).
func (a *A4988) Sleep() error {
	if a.cfg.SleepPin <= 0 {
		return nil
	}
	return a.gpio.WritePin(a.cfg.SleepPin, gpio.Low)
}

// Wake leaves the low-power state. The charge pump needs a moment to
// stabilize before stepping again.
func (a *A4988) Wake() error {
	if a.cfg.SleepPin <= 0 {
		return nil
	}
	if err := a.gpio.WritePin(a.cfg.SleepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(1 * time.Millisecond)
	return nil
}

// Reset pulses nRESET, which re-homes the board's internal translator.
// The tracked position is zeroed to match.
func (a *A4988) Reset() error {
	if a.cfg.ResetPin <= 0 {
		return nil
	}
	if err := a.gpio.WritePin(a.cfg.ResetPin, gpio.Low); err != nil {
		return err
	}
	if err := a.gpio.WritePin(a.cfg.ResetPin, gpio.High); err != nil {
		return err
	}
	a.position = 0
	return nil
}
