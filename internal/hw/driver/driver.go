package driver

import (
	"fmt"
	"time"

	"github.com/cjeanneret/StepGo/internal/debug"
	"github.com/cjeanneret/StepGo/internal/hw/gpio"
	"github.com/cjeanneret/StepGo/internal/hw/stepper"
)

// Config holds the wiring for a step/dir driver board.
type Config struct {
	Name      string
	StepPin   int
	DirPin    int
	EnablePin int // 0 = not used. Active LOW (LOW=enabled).
	SleepPin  int // A4988 nSLEEP. 0 = not used. Active LOW (LOW=asleep... HIGH=awake).
	ResetPin  int // A4988 nRESET. 0 = not used. Active LOW pulse.
	MS1Pin    int // A4988 microstep select. 0 = not used.
	MS2Pin    int
	MS3Pin    int

	StepsPerRev int
	Microsteps  int           // initial microstep factor; 0 defaults to 1
	StepDelay   time.Duration // delay per half-cycle of STEP pulse. Total step = 2*StepDelay.
}

// pulser is the shared step/dir pulse engine behind the A4988 and
// TB6600 front ends. Unlike the coil-phase Motor it has no phase
// table: the board sequences the coils, we only pulse STEP and track
// position in full-step units.
type pulser struct {
	gpio       gpio.Driver
	cfg        Config
	delay      time.Duration // per half-cycle of the STEP pulse
	microsteps int
	position   float64 // cumulative, full-step units
}

func newPulser(g gpio.Driver, cfg Config) (*pulser, error) {
	if cfg.StepPin <= 0 || cfg.DirPin <= 0 {
		return nil, fmt.Errorf("%w: step and dir pins are required", stepper.ErrConfig)
	}
	if cfg.StepsPerRev <= 0 {
		return nil, fmt.Errorf("%w: steps per revolution %d", stepper.ErrConfig, cfg.StepsPerRev)
	}

	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)

	delay := cfg.StepDelay
	if delay <= 0 {
		delay = 1 * time.Millisecond
	}
	microsteps := cfg.Microsteps
	if microsteps <= 0 {
		microsteps = 1
	}

	p := &pulser{
		gpio:       g,
		cfg:        cfg,
		delay:      delay,
		microsteps: microsteps,
	}

	// ENABLE: active LOW. LOW = enabled, HIGH = disabled.
	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = g.WritePin(cfg.EnablePin, gpio.Low) // enable by default
	}

	return p, nil
}

// MoveSteps moves the motor by a number of steps (positive or negative).
func (p *pulser) MoveSteps(steps int) error {
	if steps == 0 {
		return nil
	}

	sign := 1.0
	dirLevel := gpio.High
	if steps < 0 {
		sign = -1
		dirLevel = gpio.Low
		steps = -steps
	}

	debug.Printf("Driver %s: moving %d steps on pin %d", p.cfg.Name, steps, p.cfg.StepPin)

	if err := p.gpio.WritePin(p.cfg.DirPin, dirLevel); err != nil {
		return err
	}

	for i := 0; i < steps; i++ {
		if err := p.stepPulse(); err != nil {
			return err
		}
		p.position += sign / float64(p.microsteps)
	}
	return nil
}

func (p *pulser) stepPulse() error {
	if err := p.gpio.WritePin(p.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(p.delay)
	if err := p.gpio.WritePin(p.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(p.delay)
	return nil
}

// SetRPM derives the pulse delay from a target speed at the current
// microstep factor. Non-positive speeds are rejected.
func (p *pulser) SetRPM(rpm float64) error {
	if rpm <= 0 {
		return fmt.Errorf("%w: %g rpm", stepper.ErrInvalidSpeed, rpm)
	}
	us := 60 * 1_000_000 / (float64(p.cfg.StepsPerRev) * float64(p.microsteps) * rpm)
	p.delay = time.Duration(us*float64(time.Microsecond)) / 2
	debug.Verbose("Driver %s: %g rpm, %v per half-cycle", p.cfg.Name, rpm, p.delay)
	return nil
}

// Microsteps returns the active microstep factor.
func (p *pulser) Microsteps() int { return p.microsteps }

// Position returns the cumulative signed position in full-step units.
// A microstep contributes 1/microsteps.
func (p *pulser) Position() float64 { return p.position }

// Enable turns on the driver (ENABLE=LOW). The motor holds position.
func (p *pulser) Enable() error {
	if p.cfg.EnablePin <= 0 {
		return nil
	}
	return p.gpio.WritePin(p.cfg.EnablePin, gpio.Low)
}

// Disable turns off the driver (ENABLE=HIGH). The motor freewheels,
// no holding torque.
func (p *pulser) Disable() error {
	if p.cfg.EnablePin <= 0 {
		return nil
	}
	return p.gpio.WritePin(p.cfg.EnablePin, gpio.High)
}
