package servo

import (
	"fmt"
	"math"

	"github.com/cjeanneret/StepGo/internal/debug"
	"github.com/cjeanneret/StepGo/internal/hw/gpio"
)

// Config describes a hobby servo on one PWM pin: the pulse-width range
// and the angle range it maps to.
type Config struct {
	Name   string
	Pin    int
	MinUS  float64 // pulse width at MinDeg
	MaxUS  float64 // pulse width at MaxDeg
	MinDeg float64
	MaxDeg float64
	FreqHz uint32 // PWM frame rate, typically 50
}

// SG90Config returns the standard SG90 mapping: 500-2500us over
// 0-180 degrees at 50Hz.
func SG90Config(pin int) Config {
	return Config{
		Name:   "sg90",
		Pin:    pin,
		MinUS:  500,
		MaxUS:  2500,
		MinDeg: 0,
		MaxDeg: 180,
		FreqHz: 50,
	}
}

// Servo is a linear pulse-width mapper over a PWM pin. Unlike the
// stepper core it has no state machine: position is whatever pulse
// width was last written, clamped to the configured range.
type Servo struct {
	pwm       gpio.PWMDriver
	cfg       Config
	cycleLen  uint32  // PWM ticks per frame, 1 tick = 1us
	slope     float64 // us per radian
	offset    float64 // us at 0 rad
	currentUS float64
}

// New configures the PWM pin and returns a servo with the output off.
func New(p gpio.PWMDriver, cfg Config) (*Servo, error) {
	if cfg.FreqHz == 0 {
		return nil, fmt.Errorf("servo %s: frequency must be > 0", cfg.Name)
	}
	if cfg.MaxUS <= cfg.MinUS {
		return nil, fmt.Errorf("servo %s: max_us %g must exceed min_us %g", cfg.Name, cfg.MaxUS, cfg.MinUS)
	}
	if cfg.MaxDeg <= cfg.MinDeg {
		return nil, fmt.Errorf("servo %s: max_deg %g must exceed min_deg %g", cfg.Name, cfg.MaxDeg, cfg.MinDeg)
	}
	period := 1_000_000 / float64(cfg.FreqHz)
	if cfg.MaxUS >= period {
		return nil, fmt.Errorf("servo %s: max_us %g does not fit in a %gus frame", cfg.Name, cfg.MaxUS, period)
	}

	minRad := radians(cfg.MinDeg)
	maxRad := radians(cfg.MaxDeg)
	slope := (cfg.MinUS - cfg.MaxUS) / (minRad - maxRad)

	s := &Servo{
		pwm:      p,
		cfg:      cfg,
		cycleLen: uint32(period),
		slope:    slope,
		offset:   cfg.MinUS - slope*minRad,
	}

	if err := p.SetupPWM(cfg.Pin, cfg.FreqHz, s.cycleLen); err != nil {
		return nil, fmt.Errorf("servo %s: setup pwm: %w", cfg.Name, err)
	}
	if err := s.Off(); err != nil {
		return nil, err
	}

	debug.Info("Servo %s: pin %d, %g-%gus over %g-%gdeg at %dHz",
		cfg.Name, cfg.Pin, cfg.MinUS, cfg.MaxUS, cfg.MinDeg, cfg.MaxDeg, cfg.FreqHz)

	return s, nil
}

// Name returns the configured servo name.
func (s *Servo) Name() string { return s.cfg.Name }

// SetMicroseconds writes a raw pulse width, clamped to the configured
// range.
func (s *Servo) SetMicroseconds(us float64) error {
	if us < s.cfg.MinUS {
		us = s.cfg.MinUS
	} else if us > s.cfg.MaxUS {
		us = s.cfg.MaxUS
	}
	s.currentUS = us
	debug.Verbose("Servo %s: pulse %gus", s.cfg.Name, us)
	return s.pwm.WriteDuty(s.cfg.Pin, uint32(math.Round(us)))
}

// SetRadians moves to an angle in radians.
func (s *Servo) SetRadians(rad float64) error {
	return s.SetMicroseconds(rad*s.slope + s.offset)
}

// SetDegrees moves to an angle in degrees.
func (s *Servo) SetDegrees(deg float64) error {
	return s.SetRadians(radians(deg))
}

// Microseconds returns the current pulse width.
func (s *Servo) Microseconds() float64 { return s.currentUS }

// Radians returns the current angle in radians.
func (s *Servo) Radians() float64 {
	return (s.currentUS - s.offset) / s.slope
}

// Degrees returns the current angle in degrees.
func (s *Servo) Degrees() float64 {
	return degrees(s.Radians())
}

// Off stops driving the signal line. Most servos then stop holding
// torque; the reported position keeps its last value.
func (s *Servo) Off() error {
	debug.Verbose("Servo %s: off", s.cfg.Name)
	return s.pwm.WriteDuty(s.cfg.Pin, 0)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
