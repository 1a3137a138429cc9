package stepper

import "fmt"

// Mode is the step resolution.
type Mode int

const (
	Full Mode = iota
	Half
)

func (m Mode) String() string {
	switch m {
	case Full:
		return "full"
	case Half:
		return "half"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a config string ("full", "half") to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "full":
		return Full, nil
	case "half":
		return Half, nil
	default:
		return Full, fmt.Errorf("%w: unknown step mode %q", ErrUnsupportedMode, s)
	}
}

// Direction is a signed unit of rotation.
type Direction int

const (
	Forward  Direction = 1
	Backward Direction = -1
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Sequencer is the stepping state machine. It tracks direction, the
// motor's fine position and the step mode, and advances one step at a
// time, returning the pattern to emit. Advance is the sole position
// mutator.
//
// The position is kept in half-step units so both modes share one
// counter: a full step moves two units, a half step one.
type Sequencer struct {
	stepsPerRev int
	full        *PhaseTable
	half        *PhaseTable // nil when half-step mode is unavailable
	mode        Mode
	dir         Direction
	fine        int // half-step units, always in [0, 2*stepsPerRev)
}

// NewSequencer creates a sequencer at phase 0, forward, full-step mode.
// The full-step table is mandatory; the half-step table may be nil.
func NewSequencer(stepsPerRev int, full, half *PhaseTable) (*Sequencer, error) {
	if stepsPerRev <= 0 {
		return nil, fmt.Errorf("%w: steps per revolution %d", ErrConfig, stepsPerRev)
	}
	if full == nil {
		return nil, fmt.Errorf("%w: missing full-step phase table", ErrConfig)
	}
	return &Sequencer{
		stepsPerRev: stepsPerRev,
		full:        full,
		half:        half,
		mode:        Full,
		dir:         Forward,
	}, nil
}

// SetDirection sets the rotation direction for subsequent Advance calls.
// It does not move the motor.
func (s *Sequencer) SetDirection(d Direction) {
	if d == Backward {
		s.dir = Backward
	} else {
		s.dir = Forward
	}
}

// Direction returns the current direction.
func (s *Sequencer) Direction() Direction { return s.dir }

// Supports reports whether a phase table exists for the mode.
func (s *Sequencer) Supports(m Mode) bool {
	switch m {
	case Full:
		return true
	case Half:
		return s.half != nil
	default:
		return false
	}
}

// SetMode switches the step resolution. It fails with ErrUnsupportedMode
// when no table exists for the mode, leaving the current mode in place.
// The position is never altered by a mode switch.
func (s *Sequencer) SetMode(m Mode) error {
	if !s.Supports(m) {
		return fmt.Errorf("%w: %s", ErrUnsupportedMode, m)
	}
	s.mode = m
	return nil
}

// Mode returns the current step resolution.
func (s *Sequencer) Mode() Mode { return s.mode }

// PhaseIndex returns the position in full-step units, in
// [0, stepsPerRev).
func (s *Sequencer) PhaseIndex() int { return s.fine / 2 }

// StepFraction returns the angular distance of one step in the current
// mode, in full-step units.
func (s *Sequencer) StepFraction() float64 {
	if s.mode == Half {
		return 0.5
	}
	return 1
}

// SetOrigin re-zeroes the position without moving the motor.
func (s *Sequencer) SetOrigin() { s.fine = 0 }

func (s *Sequencer) stepUnit() int {
	if s.mode == Half {
		return 1
	}
	return 2
}

// Advance moves one step in the current direction and mode and returns
// the pattern to emit. The wrap is checked before the increment: a
// plain modulo would misplace the boundary for the fractional counter.
//
// When reversing, the row is emitted with its line order mirrored
// (same row, per-line index reversed), matching the motor wiring the
// forward sequence assumes.
func (s *Sequencer) Advance() Pattern {
	unit := s.stepUnit()
	limit := 2 * s.stepsPerRev

	if s.dir == Forward {
		if s.fine+unit >= limit {
			s.fine = s.fine + unit - limit
		} else {
			s.fine += unit
		}
	} else {
		if s.fine-unit < 0 {
			s.fine = s.fine - unit + limit
		} else {
			s.fine -= unit
		}
	}

	return s.pattern()
}

// retreat undoes the position change of the last Advance. Used when a
// line write fails so the position counts only fully-emitted steps.
func (s *Sequencer) retreat() {
	unit := s.stepUnit()
	limit := 2 * s.stepsPerRev

	if s.dir == Forward {
		if s.fine-unit < 0 {
			s.fine = s.fine - unit + limit
		} else {
			s.fine -= unit
		}
	} else {
		if s.fine+unit >= limit {
			s.fine = s.fine + unit - limit
		} else {
			s.fine += unit
		}
	}
}

func (s *Sequencer) pattern() Pattern {
	var (
		tab *PhaseTable
		row int
	)
	if s.mode == Half {
		tab = s.half
		row = s.fine % tab.Rows()
	} else {
		tab = s.full
		row = (s.fine / 2) % tab.Rows()
	}

	pat := tab.Row(row)
	if s.dir == Backward {
		pat = pat.mirror(tab.Width())
	}
	return pat
}
