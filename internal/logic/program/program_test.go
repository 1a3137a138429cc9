package program

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cjeanneret/StepGo/internal/hw/gpio"
	"github.com/cjeanneret/StepGo/internal/hw/stepper"
	"github.com/cjeanneret/StepGo/internal/logic/motion"
)

func writeProgram(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestController(t *testing.T) *motion.Controller {
	t.Helper()
	motors := make([]*stepper.Motor, 0, 2)
	for _, name := range []string{"pan", "tilt"} {
		m, err := stepper.NewMotor(&gpio.MockDriver{}, stepper.Config{
			Name:        name,
			Pins:        []int{1, 2, 3, 4},
			StepsPerRev: 2048,
			FloorFull:   1 * time.Microsecond,
			FloorHalf:   1 * time.Microsecond,
		})
		if err != nil {
			t.Fatalf("NewMotor: %v", err)
		}
		motors = append(motors, m)
	}
	return motion.NewController(motors...)
}

func TestLoad(t *testing.T) {
	path := writeProgram(t, `
name: sweep
actions:
  - motor: pan
    steps: 100
  - pause_ms: 50
  - motor: pan
    angle_deg: -90
    mode: half
  - motor: pan
    home: true
  - release: true
`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "sweep" {
		t.Errorf("Name = %q, want sweep", p.Name)
	}
	if len(p.Actions) != 5 {
		t.Fatalf("got %d actions, want 5", len(p.Actions))
	}
	if p.Actions[0].Steps != 100 || p.Actions[0].Motor != "pan" {
		t.Errorf("action 0 = %+v", p.Actions[0])
	}
	if p.Actions[2].Mode != "half" {
		t.Errorf("action 2 mode = %q, want half", p.Actions[2].Mode)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"empty", "name: empty\n"},
		{"no motor", "actions:\n  - steps: 10\n"},
		{"steps and angle", "actions:\n  - motor: pan\n    steps: 10\n    angle_deg: 45\n"},
		{"bad mode", "actions:\n  - motor: pan\n    steps: 10\n    mode: quarter\n"},
		{"negative pause", "actions:\n  - pause_ms: -5\n"},
		{"no action set", "actions:\n  - motor: pan\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Load(writeProgram(t, c.content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/program.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRun(t *testing.T) {
	ctrl := newTestController(t)
	p := &Program{
		Name: "test",
		Actions: []Action{
			{Motor: "pan", Steps: 100},
			{Motor: "tilt", AngleDeg: 90},
			{Motor: "pan", Home: true},
			{Release: true},
		},
	}

	if err := p.Run(context.Background(), ctrl); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pos := ctrl.Positions()
	if pos["tilt"] != 512 {
		t.Errorf("tilt position = %v, want 512", pos["tilt"])
	}
	m, _ := ctrl.Motor("pan")
	if m.PhaseIndex() != 0 {
		t.Errorf("pan phase = %d after home, want 0", m.PhaseIndex())
	}
}

func TestRun_ModeAndSpeedOverride(t *testing.T) {
	ctrl := newTestController(t)
	p := &Program{
		Actions: []Action{
			{Motor: "pan", Steps: 10, Mode: "half", RPM: 15},
		},
	}

	if err := p.Run(context.Background(), ctrl); err != nil {
		t.Fatalf("Run: %v", err)
	}

	m, _ := ctrl.Motor("pan")
	if m.Mode() != stepper.Half {
		t.Errorf("mode = %v, want Half", m.Mode())
	}
	if pos := m.Position(); pos != 5 {
		t.Errorf("position = %v, want 5 (10 half steps)", pos)
	}
}

func TestRun_UnknownMotorStops(t *testing.T) {
	ctrl := newTestController(t)
	p := &Program{
		Actions: []Action{
			{Motor: "yaw", Steps: 10},
			{Motor: "pan", Steps: 10},
		},
	}

	if err := p.Run(context.Background(), ctrl); err == nil {
		t.Fatal("expected error for unknown motor")
	}
	if pos := ctrl.Positions()["pan"]; pos != 0 {
		t.Errorf("pan moved to %v after failed action, want 0", pos)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctrl := newTestController(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &Program{
		Actions: []Action{
			{Motor: "pan", Steps: 10},
		},
	}
	if err := p.Run(ctx, ctrl); err != context.Canceled {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestRun_PauseCancelled(t *testing.T) {
	ctrl := newTestController(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	p := &Program{
		Actions: []Action{
			{PauseMs: 10000},
		},
	}
	start := time.Now()
	if err := p.Run(ctx, ctrl); err == nil {
		t.Error("expected cancellation error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("pause ran %v despite cancellation", elapsed)
	}
}
