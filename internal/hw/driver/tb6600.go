package driver

import (
	"fmt"

	"github.com/cjeanneret/StepGo/internal/debug"
	"github.com/cjeanneret/StepGo/internal/hw/gpio"
	"github.com/cjeanneret/StepGo/internal/hw/stepper"
)

// TB6600 drives a TB6600 step/dir board. Microstepping is set on the
// board's DIP switches, so SetMicrosteps only records the factor for
// position and speed bookkeeping.
type TB6600 struct {
	*pulser
}

// NewTB6600 creates a TB6600 front end.
func NewTB6600(g gpio.Driver, cfg Config) (*TB6600, error) {
	p, err := newPulser(g, cfg)
	if err != nil {
		return nil, err
	}
	if !validTB6600Microsteps(p.microsteps) {
		return nil, fmt.Errorf("%w: microstep factor %d (want power of two <= 32)", stepper.ErrConfig, p.microsteps)
	}
	return &TB6600{pulser: p}, nil
}

func validTB6600Microsteps(n int) bool {
	for f := 1; f <= 32; f *= 2 {
		if n == f {
			return true
		}
	}
	return false
}

// SetMicrosteps records the factor selected on the DIP switches.
func (t *TB6600) SetMicrosteps(n int) error {
	if !validTB6600Microsteps(n) {
		return fmt.Errorf("%w: microstep factor %d (want power of two <= 32)", stepper.ErrConfig, n)
	}
	t.microsteps = n
	debug.Info("Driver %s: 1/%d microstepping (DIP switches)", t.cfg.Name, n)
	return nil
}
