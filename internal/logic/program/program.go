package program

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/StepGo/internal/debug"
	"github.com/cjeanneret/StepGo/internal/hw/stepper"
	"github.com/cjeanneret/StepGo/internal/logic/motion"
)

// Action is one entry of a move program. Exactly one of Steps,
// AngleDeg, PauseMs, Home or Release is set; Mode and RPM optionally
// adjust the motor before a move.
type Action struct {
	Motor    string  `yaml:"motor,omitempty"`
	Steps    int     `yaml:"steps,omitempty"`
	AngleDeg float64 `yaml:"angle_deg,omitempty"`
	Mode     string  `yaml:"mode,omitempty"`
	RPM      float64 `yaml:"rpm,omitempty"`
	PauseMs  int     `yaml:"pause_ms,omitempty"`
	Home     bool    `yaml:"home,omitempty"`
	Release  bool    `yaml:"release,omitempty"`
}

// Program is a named, ordered list of actions, usually loaded from a
// yaml file next to the config.
type Program struct {
	Name    string   `yaml:"name"`
	Actions []Action `yaml:"actions"`
}

// Load reads and validates a yaml program file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program file: %w", err)
	}

	var p Program
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Program) validate() error {
	if len(p.Actions) == 0 {
		return fmt.Errorf("program %q has no actions", p.Name)
	}
	for i, a := range p.Actions {
		moves := 0
		if a.Steps != 0 {
			moves++
		}
		if a.AngleDeg != 0 {
			moves++
		}
		if a.Home {
			moves++
		}
		if a.PauseMs != 0 {
			moves++
		}
		if a.Release {
			moves++
		}
		if moves != 1 {
			return fmt.Errorf("action %d: want exactly one of steps, angle_deg, home, pause_ms or release", i)
		}
		if (a.Steps != 0 || a.AngleDeg != 0 || a.Home || a.Mode != "" || a.RPM != 0) && a.Motor == "" {
			return fmt.Errorf("action %d: motor is required", i)
		}
		if a.PauseMs < 0 {
			return fmt.Errorf("action %d: pause_ms must be >= 0", i)
		}
		if a.RPM < 0 {
			return fmt.Errorf("action %d: rpm must be >= 0", i)
		}
		if a.Mode != "" {
			if _, err := stepper.ParseMode(a.Mode); err != nil {
				return fmt.Errorf("action %d: %w", i, err)
			}
		}
	}
	return nil
}

// Run executes the program against a controller, one action at a
// time. The first failed or cancelled action stops the program; later
// actions do not run.
func (p *Program) Run(ctx context.Context, ctrl *motion.Controller) error {
	debug.Section(fmt.Sprintf("Program %q: %d actions", p.Name, len(p.Actions)))

	for i, a := range p.Actions {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := p.runAction(ctx, ctrl, i, a); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}

	debug.Live("Program %q complete", p.Name)
	return nil
}

func (p *Program) runAction(ctx context.Context, ctrl *motion.Controller, i int, a Action) error {
	if a.Mode != "" {
		mode, err := stepper.ParseMode(a.Mode)
		if err != nil {
			return err
		}
		if err := ctrl.SetMode(a.Motor, mode); err != nil {
			return err
		}
	}
	if a.RPM != 0 {
		if err := ctrl.SetSpeed(a.Motor, a.RPM, stepper.RevolutionsPerMinute); err != nil {
			return err
		}
	}

	switch {
	case a.Release:
		debug.Live("Action %d: release all", i)
		return ctrl.ReleaseAll()

	case a.Home:
		debug.Live("Action %d: home %s", i, a.Motor)
		return ctrl.Home(ctx, a.Motor)

	case a.PauseMs != 0:
		debug.Live("Action %d: pause %dms", i, a.PauseMs)
		select {
		case <-time.After(time.Duration(a.PauseMs) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case a.AngleDeg != 0:
		debug.Live("Action %d: %s by %g deg", i, a.Motor, a.AngleDeg)
		return ctrl.MoveAngle(ctx, a.Motor, a.AngleDeg)

	default:
		debug.Live("Action %d: %s by %d steps", i, a.Motor, a.Steps)
		return ctrl.Move(ctx, a.Motor, a.Steps)
	}
}
