package motion

import (
	"context"
	"testing"
	"time"

	"github.com/cjeanneret/StepGo/internal/hw/gpio"
	"github.com/cjeanneret/StepGo/internal/hw/stepper"
)

func newMockMotor(t *testing.T, name string) *stepper.Motor {
	t.Helper()
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
	return m
}

func newTestController(t *testing.T) *Controller {
	t.Helper()
	return NewController(newMockMotor(t, "pan"), newMockMotor(t, "tilt"))
}

func TestController_Move(t *testing.T) {
	ctrl := newTestController(t)

	if err := ctrl.Move(context.Background(), "pan", 100); err != nil {
		t.Errorf("Move: %v", err)
	}
	if pos := ctrl.Positions()["pan"]; pos != 100 {
		t.Errorf("pan position = %v, want 100", pos)
	}
	if pos := ctrl.Positions()["tilt"]; pos != 0 {
		t.Errorf("tilt position = %v, want 0", pos)
	}
}

func TestController_UnknownMotor(t *testing.T) {
	ctrl := newTestController(t)

	if err := ctrl.Move(context.Background(), "yaw", 10); err == nil {
		t.Error("expected error for unknown motor")
	}
	if err := ctrl.Home(context.Background(), "yaw"); err == nil {
		t.Error("expected error for unknown motor")
	}
	if err := ctrl.SetMode("yaw", stepper.Half); err == nil {
		t.Error("expected error for unknown motor")
	}
}

func TestController_MoveAngle(t *testing.T) {
	ctrl := newTestController(t)

	// 90 degrees of a 2048-step motor = 512 steps.
	if err := ctrl.MoveAngle(context.Background(), "tilt", 90); err != nil {
		t.Fatalf("MoveAngle: %v", err)
	}
	if pos := ctrl.Positions()["tilt"]; pos != 512 {
		t.Errorf("tilt position = %v, want 512", pos)
	}
}

func TestController_MoveAngleHalfMode(t *testing.T) {
	ctrl := newTestController(t)

	if err := ctrl.SetMode("tilt", stepper.Half); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := ctrl.MoveAngle(context.Background(), "tilt", 90); err != nil {
		t.Fatalf("MoveAngle: %v", err)
	}
	// 1024 half steps still cover 90 degrees.
	if pos := ctrl.Positions()["tilt"]; pos != 512 {
		t.Errorf("tilt position = %v, want 512", pos)
	}
}

func TestController_Home(t *testing.T) {
	ctrl := newTestController(t)

	if err := ctrl.Move(context.Background(), "pan", 2000); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Home(context.Background(), "pan"); err != nil {
		t.Fatalf("Home: %v", err)
	}
	m, _ := ctrl.Motor("pan")
	if m.PhaseIndex() != 0 {
		t.Errorf("pan phase = %d after Home, want 0", m.PhaseIndex())
	}
}

func TestController_ReleaseAll(t *testing.T) {
	ctrl := newTestController(t)

	if err := ctrl.ReleaseAll(); err != nil {
		t.Errorf("ReleaseAll: %v", err)
	}
}

func TestController_Names(t *testing.T) {
	ctrl := newTestController(t)

	names := ctrl.Names()
	if len(names) != 2 || names[0] != "pan" || names[1] != "tilt" {
		t.Errorf("Names() = %v, want [pan tilt]", names)
	}
}
