package stepper

import (
	"fmt"
	"time"

	"github.com/cjeanneret/StepGo/internal/debug"
)

// SpeedUnit selects how a speed value is interpreted.
type SpeedUnit int

const (
	Microseconds         SpeedUnit = iota // raw delay per full step
	StepsPerSecond                        // full steps per second
	RevolutionsPerMinute                  // revolutions per minute
)

func (u SpeedUnit) String() string {
	switch u {
	case Microseconds:
		return "us"
	case StepsPerSecond:
		return "sps"
	case RevolutionsPerMinute:
		return "rpm"
	default:
		return fmt.Sprintf("SpeedUnit(%d)", int(u))
	}
}

// Minimum safe inter-step delays. Coils cannot follow arbitrarily fast
// switching; requests below the floor are clamped up, never accepted.
const (
	DefaultFloorFull = 10 * time.Millisecond
	DefaultFloorHalf = 1 * time.Millisecond
)

// Timing converts user-facing speed values into a validated inter-step
// delay. The canonical stored value is the delay per full step; the
// half-step delay is derived from it so that switching resolution
// preserves angular speed.
type Timing struct {
	stepsPerRev int
	fullDelay   time.Duration
	floorFull   time.Duration
	floorHalf   time.Duration
}

// NewTiming creates a timing policy. Zero floors select the defaults.
// The initial delay is the full-step floor (slowest safe setting until
// the caller picks a speed).
func NewTiming(stepsPerRev int, floorFull, floorHalf time.Duration) *Timing {
	if floorFull <= 0 {
		floorFull = DefaultFloorFull
	}
	if floorHalf <= 0 {
		floorHalf = DefaultFloorHalf
	}
	return &Timing{
		stepsPerRev: stepsPerRev,
		fullDelay:   floorFull,
		floorFull:   floorFull,
		floorHalf:   floorHalf,
	}
}

// SetSpeed updates the delay from a value in the given unit.
// Non-positive values are rejected with ErrInvalidSpeed and leave the
// previous delay in place. Values faster than the full-step floor are
// clamped to the floor.
func (t *Timing) SetSpeed(value float64, unit SpeedUnit) error {
	if value <= 0 {
		return fmt.Errorf("%w: %g %s", ErrInvalidSpeed, value, unit)
	}

	var us float64
	switch unit {
	case Microseconds:
		us = value
	case StepsPerSecond:
		us = 1_000_000 / value
	case RevolutionsPerMinute:
		us = 60 * 1_000_000 / (float64(t.stepsPerRev) * value)
	default:
		return fmt.Errorf("%w: unknown unit %s", ErrInvalidSpeed, unit)
	}

	d := time.Duration(us * float64(time.Microsecond))
	if d < t.floorFull {
		debug.Verbose("Timing: %g %s (%v) below floor, clamped to %v", value, unit, d, t.floorFull)
		d = t.floorFull
	}
	t.fullDelay = d
	debug.Verbose("Timing: full-step delay set to %v", t.fullDelay)
	return nil
}

// FullStepDelay returns the delay equivalent to one full step,
// regardless of the active mode.
func (t *Timing) FullStepDelay() time.Duration {
	return t.fullDelay
}

// StepDelay returns the delay per micro-step in the given mode: the
// full-step delay as-is, or half of it in half-step mode so the
// angular speed stays the same, clamped to the half-step floor.
func (t *Timing) StepDelay(m Mode) time.Duration {
	if m == Half {
		d := t.fullDelay / 2
		if d < t.floorHalf {
			d = t.floorHalf
		}
		return d
	}
	return t.fullDelay
}

// Floors returns the configured minimum delays (full, half).
func (t *Timing) Floors() (time.Duration, time.Duration) {
	return t.floorFull, t.floorHalf
}
