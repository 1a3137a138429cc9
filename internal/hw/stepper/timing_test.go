package stepper

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestTiming_RPMRoundTrip(t *testing.T) {
	const stepsPerRev = 2048
	tm := NewTiming(stepsPerRev, 100*time.Microsecond, 50*time.Microsecond)

	for _, rpm := range []float64{0.5, 1, 5, 12.5} {
		if err := tm.SetSpeed(rpm, RevolutionsPerMinute); err != nil {
			t.Fatalf("SetSpeed(%g rpm): %v", rpm, err)
		}
		us := float64(tm.FullStepDelay()) / float64(time.Microsecond)
		back := 60 * 1_000_000 / (float64(stepsPerRev) * us)
		if math.Abs(back-rpm) > 1e-3 {
			t.Errorf("rpm %g round-trips to %g", rpm, back)
		}
	}
}

func TestTiming_StepsPerSecond(t *testing.T) {
	tm := NewTiming(200, 100*time.Microsecond, 50*time.Microsecond)
	if err := tm.SetSpeed(500, StepsPerSecond); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	if got := tm.FullStepDelay(); got != 2*time.Millisecond {
		t.Errorf("500 sps -> %v, want 2ms", got)
	}
}

func TestTiming_RawMicroseconds(t *testing.T) {
	tm := NewTiming(200, 100*time.Microsecond, 50*time.Microsecond)
	if err := tm.SetSpeed(500, Microseconds); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	if got := tm.FullStepDelay(); got != 500*time.Microsecond {
		t.Errorf("delay = %v, want 500us", got)
	}
}

func TestTiming_InvalidSpeed(t *testing.T) {
	tm := NewTiming(200, 0, 0)
	before := tm.FullStepDelay()

	for _, v := range []float64{0, -1} {
		for _, u := range []SpeedUnit{Microseconds, StepsPerSecond, RevolutionsPerMinute} {
			err := tm.SetSpeed(v, u)
			if !errors.Is(err, ErrInvalidSpeed) {
				t.Errorf("SetSpeed(%g, %s): expected ErrInvalidSpeed, got %v", v, u, err)
			}
		}
	}

	if tm.FullStepDelay() != before {
		t.Error("rejected speed must leave the delay unchanged")
	}
}

func TestTiming_ClampToFloor(t *testing.T) {
	tm := NewTiming(200, 10*time.Millisecond, time.Millisecond)
	if err := tm.SetSpeed(100, Microseconds); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	if got := tm.FullStepDelay(); got != 10*time.Millisecond {
		t.Errorf("delay = %v, want clamped to 10ms floor", got)
	}
}

func TestTiming_HalfStepDelay(t *testing.T) {
	tm := NewTiming(200, 100*time.Microsecond, 50*time.Microsecond)
	if err := tm.SetSpeed(2000, Microseconds); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}

	// Half mode preserves angular speed: half the delay per micro-step.
	if got := tm.StepDelay(Half); got != time.Millisecond {
		t.Errorf("half-step delay = %v, want 1ms", got)
	}
	if got := tm.StepDelay(Full); got != 2*time.Millisecond {
		t.Errorf("full-step delay = %v, want 2ms", got)
	}
}

func TestTiming_HalfStepFloor(t *testing.T) {
	tm := NewTiming(200, 100*time.Microsecond, 80*time.Microsecond)
	if err := tm.SetSpeed(100, Microseconds); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	// Full delay clamps to 100us; the derived 50us half delay clamps
	// to the half floor.
	if got := tm.StepDelay(Half); got != 80*time.Microsecond {
		t.Errorf("half-step delay = %v, want 80us floor", got)
	}
}

func TestTiming_DefaultFloors(t *testing.T) {
	tm := NewTiming(200, 0, 0)
	full, half := tm.Floors()
	if full != DefaultFloorFull || half != DefaultFloorHalf {
		t.Errorf("floors = %v/%v, want %v/%v", full, half, DefaultFloorFull, DefaultFloorHalf)
	}
	if tm.FullStepDelay() < full {
		t.Error("initial delay must not be below the floor")
	}
}
