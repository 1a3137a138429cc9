package stepper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cjeanneret/StepGo/internal/hw/gpio"
)

// recordingDriver records GPIO calls for verification.
type recordingDriver struct {
	calls     []gpioCall
	failAfter int // fail writes once this many happened; 0 = never
	writes    int
}

type gpioCall struct {
	op    string // "setup", "write"
	pin   int
	level gpio.Level
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error {
	d.calls = append(d.calls, gpioCall{op: "setup", pin: pin})
	return nil
}

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	if d.failAfter > 0 && d.writes >= d.failAfter {
		return fmt.Errorf("simulated line failure on pin %d", pin)
	}
	d.writes++
	d.calls = append(d.calls, gpioCall{op: "write", pin: pin, level: level})
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) {
	return gpio.Low, nil
}

func (d *recordingDriver) Close() error {
	return nil
}

func (d *recordingDriver) writeCalls() []gpioCall {
	var result []gpioCall
	for _, c := range d.calls {
		if c.op == "write" {
			result = append(result, c)
		}
	}
	return result
}

func (d *recordingDriver) reset() {
	d.calls = nil
	d.writes = 0
}

// captureSleeps replaces the inter-step delay with a recorder for the
// duration of a test.
func captureSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	orig := sleep
	sleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { sleep = orig })
	return &slept
}

func newTestMotor(t *testing.T, drv *recordingDriver) *Motor {
	t.Helper()
	m, err := NewMotor(drv, Config{
		Name:        "test",
		Pins:        []int{4, 17, 27, 22},
		StepsPerRev: 2048,
		FloorFull:   100 * time.Microsecond,
		FloorHalf:   50 * time.Microsecond,
	})
	if err != nil {
		t.Fatalf("NewMotor: %v", err)
	}
	drv.reset()
	return m
}

func TestNewMotor_ConfigErrors(t *testing.T) {
	drv := &recordingDriver{}
	table4, _ := DefaultTable(4)

	cases := []struct {
		name string
		cfg  Config
	}{
		{"no pins", Config{StepsPerRev: 200}},
		{"no default table", Config{Pins: []int{1, 2, 3}, StepsPerRev: 200}},
		{"width mismatch", Config{Pins: []int{1, 2}, StepsPerRev: 200, Table: table4}},
		{"half width mismatch", Config{Pins: []int{1, 2}, StepsPerRev: 200, HalfTable: table4}},
		{"zero steps per rev", Config{Pins: []int{1, 2, 3, 4}}},
	}
	for _, c := range cases {
		if _, err := NewMotor(drv, c.cfg); !errors.Is(err, ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", c.name, err)
		}
	}
}

func TestNewMotor_StartsDeEnergized(t *testing.T) {
	drv := &recordingDriver{}
	if _, err := NewMotor(drv, Config{
		Name:        "test",
		Pins:        []int{4, 17, 27, 22},
		StepsPerRev: 2048,
	}); err != nil {
		t.Fatalf("NewMotor: %v", err)
	}

	writes := drv.writeCalls()
	if len(writes) != 4 {
		t.Fatalf("expected 4 init writes, got %d", len(writes))
	}
	for _, w := range writes {
		if w.level != gpio.Low {
			t.Errorf("pin %d initialized %v, want Low", w.pin, w.level)
		}
	}
}

func TestMotor_MoveZero(t *testing.T) {
	drv := &recordingDriver{}
	m := newTestMotor(t, drv)
	slept := captureSleeps(t)

	if err := m.Move(context.Background(), 0); err != nil {
		t.Fatalf("Move(0): %v", err)
	}
	if len(drv.calls) != 0 {
		t.Errorf("Move(0) produced %d GPIO calls, want 0", len(drv.calls))
	}
	if len(*slept) != 0 {
		t.Errorf("Move(0) slept %d times, want 0", len(*slept))
	}
}

func TestMotor_MoveScenario(t *testing.T) {
	// 4-line motor, 2048 steps/rev, 500us per step, move 100 steps.
	drv := &recordingDriver{}
	m := newTestMotor(t, drv)
	slept := captureSleeps(t)

	if err := m.SetSpeed(500, Microseconds); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	if err := m.Move(context.Background(), 100); err != nil {
		t.Fatalf("Move: %v", err)
	}

	writes := drv.writeCalls()
	if len(writes) != 400 {
		t.Errorf("expected 100 pattern writes (400 line writes), got %d", len(writes))
	}
	if len(*slept) != 100 {
		t.Errorf("expected 100 inter-step delays, got %d", len(*slept))
	}
	for i, d := range *slept {
		if d < 500*time.Microsecond {
			t.Fatalf("delay %d = %v, want >= 500us", i, d)
		}
	}
	if pos := m.Position(); pos != 100 {
		t.Errorf("position = %v, want 100", pos)
	}
	if idx := m.PhaseIndex(); idx != 100 {
		t.Errorf("phase index = %d, want 100", idx)
	}
}

func TestMotor_MoveBackwardPosition(t *testing.T) {
	drv := &recordingDriver{}
	m := newTestMotor(t, drv)
	captureSleeps(t)

	if err := m.Move(context.Background(), -10); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if pos := m.Position(); pos != -10 {
		t.Errorf("position = %v, want -10", pos)
	}
	if idx := m.PhaseIndex(); idx != 2048-10 {
		t.Errorf("phase index = %d, want %d", idx, 2048-10)
	}
}

func TestMotor_HalfStepsCountHalf(t *testing.T) {
	drv := &recordingDriver{}
	m := newTestMotor(t, drv)
	captureSleeps(t)

	if err := m.SetMode(Half); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := m.Move(context.Background(), 100); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if pos := m.Position(); pos != 50 {
		t.Errorf("position = %v, want 50 (100 half steps)", pos)
	}
	if idx := m.PhaseIndex(); idx != 50 {
		t.Errorf("phase index = %d, want 50", idx)
	}
}

func TestMotor_ReturnToOriginShortPath(t *testing.T) {
	// At phase 2000 of 2048 the short path is 48 steps forward.
	drv := &recordingDriver{}
	m := newTestMotor(t, drv)
	slept := captureSleeps(t)

	if err := m.Move(context.Background(), 2000); err != nil {
		t.Fatalf("Move: %v", err)
	}
	drv.reset()
	*slept = nil

	if err := m.ReturnToOrigin(context.Background()); err != nil {
		t.Fatalf("ReturnToOrigin: %v", err)
	}

	if len(*slept) != 48 {
		t.Errorf("homing took %d steps, want 48", len(*slept))
	}
	if idx := m.PhaseIndex(); idx != 0 {
		t.Errorf("phase index = %d after homing, want 0", idx)
	}

	// The last four writes de-energize every line.
	writes := drv.writeCalls()
	if len(writes) < 4 {
		t.Fatalf("expected release writes, got %d writes", len(writes))
	}
	for _, w := range writes[len(writes)-4:] {
		if w.level != gpio.Low {
			t.Errorf("release left pin %d at %v", w.pin, w.level)
		}
	}
}

func TestMotor_ReturnToOriginBackwardPath(t *testing.T) {
	drv := &recordingDriver{}
	m := newTestMotor(t, drv)
	slept := captureSleeps(t)

	if err := m.Move(context.Background(), 48); err != nil {
		t.Fatalf("Move: %v", err)
	}
	*slept = nil

	if err := m.ReturnToOrigin(context.Background()); err != nil {
		t.Fatalf("ReturnToOrigin: %v", err)
	}
	if len(*slept) != 48 {
		t.Errorf("homing took %d steps, want 48", len(*slept))
	}
	if idx := m.PhaseIndex(); idx != 0 {
		t.Errorf("phase index = %d, want 0", idx)
	}
}

func TestMotor_ReturnToOriginAtOrigin(t *testing.T) {
	drv := &recordingDriver{}
	m := newTestMotor(t, drv)
	slept := captureSleeps(t)

	if err := m.ReturnToOrigin(context.Background()); err != nil {
		t.Fatalf("ReturnToOrigin: %v", err)
	}
	if len(*slept) != 0 {
		t.Errorf("homing at origin slept %d times, want 0", len(*slept))
	}
	// Still releases the coils.
	if len(drv.writeCalls()) != 4 {
		t.Errorf("expected 4 release writes, got %d", len(drv.writeCalls()))
	}
}

func TestMotor_SetOrigin(t *testing.T) {
	drv := &recordingDriver{}
	m := newTestMotor(t, drv)
	captureSleeps(t)

	if err := m.Move(context.Background(), 123); err != nil {
		t.Fatalf("Move: %v", err)
	}
	writesBefore := len(drv.writeCalls())
	m.SetOrigin()

	if m.PhaseIndex() != 0 || m.Position() != 0 {
		t.Errorf("after SetOrigin: phase=%d position=%v, want 0/0", m.PhaseIndex(), m.Position())
	}
	if len(drv.writeCalls()) != writesBefore {
		t.Error("SetOrigin must not move the motor")
	}
}

func TestMotor_LineWriteFailure(t *testing.T) {
	drv := &recordingDriver{}
	m := newTestMotor(t, drv)
	captureSleeps(t)

	// Allow 10 whole patterns (40 line writes), then fail.
	drv.failAfter = 40
	err := m.Move(context.Background(), 100)
	if err == nil {
		t.Fatal("expected write failure to abort the move")
	}
	if pos := m.Position(); pos != 10 {
		t.Errorf("position = %v, want 10 (steps fully taken)", pos)
	}
	if idx := m.PhaseIndex(); idx != 10 {
		t.Errorf("phase index = %d, want 10", idx)
	}
}

func TestMotor_MoveCancellation(t *testing.T) {
	drv := &recordingDriver{}
	m := newTestMotor(t, drv)

	ctx, cancel := context.WithCancel(context.Background())
	var slept int
	orig := sleep
	sleep = func(d time.Duration) {
		slept++
		if slept == 5 {
			cancel()
		}
	}
	defer func() { sleep = orig }()

	err := m.Move(ctx, 100)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if pos := m.Position(); pos != 5 {
		t.Errorf("position = %v, want 5 (steps before cancellation)", pos)
	}
}

func TestMotor_UnsupportedModeKeepsMode(t *testing.T) {
	drv := &recordingDriver{}
	m, err := NewMotor(drv, Config{
		Name:        "bipolar",
		Pins:        []int{4, 17},
		StepsPerRev: 200,
	})
	if err != nil {
		t.Fatalf("NewMotor: %v", err)
	}

	if err := m.SetMode(Half); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("expected ErrUnsupportedMode, got %v", err)
	}
	if m.Mode() != Full {
		t.Error("mode must stay Full after the rejected switch")
	}
}

func TestPreset(t *testing.T) {
	cfg, ok := Preset("28byj-48")
	if !ok {
		t.Fatal("missing 28byj-48 preset")
	}
	if cfg.StepsPerRev != 2048 {
		t.Errorf("28byj-48 steps/rev = %d, want 2048", cfg.StepsPerRev)
	}

	if _, ok := Preset("unknown-motor"); ok {
		t.Error("unexpected preset for unknown name")
	}
}
