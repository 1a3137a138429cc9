package motion

import (
	"context"
	"fmt"

	"github.com/cjeanneret/StepGo/internal/debug"
	"github.com/cjeanneret/StepGo/internal/hw/stepper"
	"github.com/cjeanneret/StepGo/internal/logic/geometry"
)

// Controller orchestrates a set of named stepper motors. It's an
// intermediate layer between business logic (jog commands, move
// programs, the web UI) and low-level (GPIO).
//
// A Controller owns its motors' pin sets through them; create one
// Controller per GPIO driver and let nothing else touch those lines.
type Controller struct {
	motors map[string]*stepper.Motor
	order  []string
}

// NewController registers motors by their configured names.
func NewController(motors ...*stepper.Motor) *Controller {
	c := &Controller{
		motors: make(map[string]*stepper.Motor),
	}
	for _, m := range motors {
		if _, dup := c.motors[m.Name()]; dup {
			continue
		}
		c.motors[m.Name()] = m
		c.order = append(c.order, m.Name())
	}
	return c
}

// Motor looks up a motor by name.
func (c *Controller) Motor(name string) (*stepper.Motor, error) {
	m, ok := c.motors[name]
	if !ok {
		return nil, fmt.Errorf("unknown motor %q", name)
	}
	return m, nil
}

// Names returns the motor names in registration order.
func (c *Controller) Names() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Move rotates a motor by a signed number of steps in its current mode.
func (c *Controller) Move(ctx context.Context, name string, steps int) error {
	m, err := c.Motor(name)
	if err != nil {
		return err
	}
	return m.Move(ctx, steps)
}

// MoveAngle rotates a motor by a signed angle in degrees, converted to
// steps at the motor's current resolution.
func (c *Controller) MoveAngle(ctx context.Context, name string, angleDeg float64) error {
	m, err := c.Motor(name)
	if err != nil {
		return err
	}
	calc := geometry.NewStepsCalculator(m.StepsPerRev(), m.Mode())
	steps := calc.StepsFromAngle(angleDeg)
	debug.Verbose("Motor %s: %g deg = %d steps", name, angleDeg, steps)
	return m.Move(ctx, steps)
}

// Home returns a motor to phase 0 along the shorter path and releases
// its coils.
func (c *Controller) Home(ctx context.Context, name string) error {
	m, err := c.Motor(name)
	if err != nil {
		return err
	}
	return m.ReturnToOrigin(ctx)
}

// SetSpeed updates one motor's speed.
func (c *Controller) SetSpeed(name string, value float64, unit stepper.SpeedUnit) error {
	m, err := c.Motor(name)
	if err != nil {
		return err
	}
	return m.SetSpeed(value, unit)
}

// SetMode updates one motor's step resolution.
func (c *Controller) SetMode(name string, mode stepper.Mode) error {
	m, err := c.Motor(name)
	if err != nil {
		return err
	}
	return m.SetMode(mode)
}

// ReleaseAll de-energizes every motor. Used on shutdown and after
// programs so nothing heats while idle.
func (c *Controller) ReleaseAll() error {
	for _, name := range c.order {
		if err := c.motors[name].Release(); err != nil {
			return err
		}
	}
	return nil
}

// Positions reports every motor's cumulative position in full-step
// units.
func (c *Controller) Positions() map[string]float64 {
	out := make(map[string]float64, len(c.order))
	for name, m := range c.motors {
		out[name] = m.Position()
	}
	return out
}
