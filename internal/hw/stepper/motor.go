package stepper

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/StepGo/internal/debug"
	"github.com/cjeanneret/StepGo/internal/hw/gpio"
)

// sleep is the inter-step delay primitive, swapped out in tests.
var sleep = time.Sleep

// Config holds the wiring and motion parameters for one motor.
type Config struct {
	Name        string
	Pins        []int // coil lines in phase order (2, 4 or 5)
	StepsPerRev int

	// Optional custom tables. When nil, the built-in tables for the
	// line count are used; line counts without a built-in table then
	// fail construction.
	Table     *PhaseTable
	HalfTable *PhaseTable

	// Minimum safe inter-step delays. Zero selects the defaults.
	FloorFull time.Duration
	FloorHalf time.Duration
}

// Motor drives one coil-phase stepper through a GPIO driver. It owns
// its pin set exclusively: nothing else may write those lines while
// the motor exists, or step timing is silently corrupted.
//
// All methods are single-threaded by design; Move blocks the caller
// for the whole motion.
type Motor struct {
	gpio     gpio.Driver
	cfg      Config
	seq      *Sequencer
	timing   *Timing
	position float64 // cumulative, full-step units
}

// NewMotor validates the configuration, claims the output lines and
// returns a motor at phase 0, de-energized. Configuration problems
// fail fast with ErrConfig.
func NewMotor(g gpio.Driver, cfg Config) (*Motor, error) {
	if len(cfg.Pins) == 0 {
		return nil, fmt.Errorf("%w: no coil lines", ErrConfig)
	}

	full := cfg.Table
	if full == nil {
		var ok bool
		full, ok = DefaultTable(len(cfg.Pins))
		if !ok {
			return nil, fmt.Errorf("%w: no built-in table for %d lines, supply one", ErrConfig, len(cfg.Pins))
		}
	}
	if full.Width() != len(cfg.Pins) {
		return nil, fmt.Errorf("%w: table width %d, %d lines bound", ErrConfig, full.Width(), len(cfg.Pins))
	}

	half := cfg.HalfTable
	if half == nil {
		half, _ = DefaultHalfTable(len(cfg.Pins))
	}
	if half != nil && half.Width() != len(cfg.Pins) {
		return nil, fmt.Errorf("%w: half table width %d, %d lines bound", ErrConfig, half.Width(), len(cfg.Pins))
	}

	seq, err := NewSequencer(cfg.StepsPerRev, full, half)
	if err != nil {
		return nil, err
	}

	m := &Motor{
		gpio:   g,
		cfg:    cfg,
		seq:    seq,
		timing: NewTiming(cfg.StepsPerRev, cfg.FloorFull, cfg.FloorHalf),
	}

	for _, pin := range cfg.Pins {
		if err := g.SetupPin(pin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup pin %d: %w", pin, err)
		}
		if err := g.WritePin(pin, gpio.Low); err != nil {
			return nil, fmt.Errorf("init pin %d: %w", pin, err)
		}
	}

	debug.Info("Motor %s: %d lines, %d steps/rev, half-step %v",
		cfg.Name, len(cfg.Pins), cfg.StepsPerRev, seq.Supports(Half))

	return m, nil
}

// Name returns the configured motor name.
func (m *Motor) Name() string { return m.cfg.Name }

// StepsPerRev returns the addressable full steps per revolution.
func (m *Motor) StepsPerRev() int { return m.cfg.StepsPerRev }

// Mode returns the active step resolution.
func (m *Motor) Mode() Mode { return m.seq.Mode() }

// SetMode switches step resolution without moving the motor.
func (m *Motor) SetMode(mode Mode) error {
	if err := m.seq.SetMode(mode); err != nil {
		return err
	}
	debug.Info("Motor %s: %s-step mode", m.cfg.Name, mode)
	return nil
}

// SetSpeed updates the inter-step delay from a speed value.
func (m *Motor) SetSpeed(value float64, unit SpeedUnit) error {
	if err := m.timing.SetSpeed(value, unit); err != nil {
		return err
	}
	debug.Info("Motor %s: speed %g %s (%v per full step)",
		m.cfg.Name, value, unit, m.timing.FullStepDelay())
	return nil
}

// StepDelay returns the effective delay per step in the current mode.
func (m *Motor) StepDelay() time.Duration {
	return m.timing.StepDelay(m.seq.Mode())
}

// Position returns the cumulative signed position in full-step units.
// Half steps contribute 0.5.
func (m *Motor) Position() float64 { return m.position }

// PhaseIndex returns the angular position in [0, StepsPerRev).
func (m *Motor) PhaseIndex() int { return m.seq.PhaseIndex() }

// Move rotates by the given signed number of steps in the current mode,
// blocking until done. The context is polled once per step so a long
// move can be cancelled between steps; the motor then stops cleanly
// with the position reflecting the steps already taken.
//
// A line write failure aborts the rest of the move the same way.
func (m *Motor) Move(ctx context.Context, steps int) error {
	if steps == 0 {
		return nil
	}

	dir := Forward
	if steps < 0 {
		dir = Backward
		steps = -steps
	}
	m.seq.SetDirection(dir)

	delay := m.timing.StepDelay(m.seq.Mode())
	frac := m.seq.StepFraction() * float64(dir)
	debug.Move(m.cfg.Name, steps, dir.String())
	debug.Verbose("Motor %s: %v per step, %s mode", m.cfg.Name, delay, m.seq.Mode())

	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		pat := m.seq.Advance()
		if err := m.applyPattern(pat); err != nil {
			m.seq.retreat()
			return fmt.Errorf("write phase pattern: %w", err)
		}
		m.position += frac
		sleep(delay)
	}

	return nil
}

// applyPattern sets every line of the pattern in one go, with no delay
// interleaved between the individual line writes.
func (m *Motor) applyPattern(pat Pattern) error {
	for i, pin := range m.cfg.Pins {
		if err := m.gpio.WritePin(pin, pat.Level(i)); err != nil {
			return err
		}
	}
	return nil
}

// ReturnToOrigin moves back to phase 0 along the shorter of the two
// angular paths, then de-energizes the coils so the motor does not
// heat while idle.
func (m *Motor) ReturnToOrigin(ctx context.Context) error {
	limit := 2 * m.cfg.StepsPerRev
	cur := m.seq.fine

	if cur != 0 {
		unit := m.seq.stepUnit()
		back, fwd := cur, limit-cur

		var steps int
		if back <= fwd {
			steps = -(back / unit)
		} else {
			steps = fwd / unit
		}
		debug.Live("Motor %s: homing %d steps from phase %d", m.cfg.Name, steps, m.seq.PhaseIndex())

		if err := m.Move(ctx, steps); err != nil {
			return err
		}
	}

	return m.Release()
}

// SetOrigin re-declares the current position as phase 0 without moving
// the motor. Used to recalibrate after positioning the load by hand.
func (m *Motor) SetOrigin() {
	m.seq.SetOrigin()
	m.position = 0
	debug.Live("Motor %s: origin set", m.cfg.Name)
}

// Release drives every coil line low. The motor freewheels and stops
// drawing current; the next Move re-energizes it.
func (m *Motor) Release() error {
	debug.Verbose("Motor %s: releasing coils", m.cfg.Name)
	for _, pin := range m.cfg.Pins {
		if err := m.gpio.WritePin(pin, gpio.Low); err != nil {
			return fmt.Errorf("release pin %d: %w", pin, err)
		}
	}
	return nil
}
