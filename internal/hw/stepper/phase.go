package stepper

import (
	"fmt"

	"github.com/cjeanneret/StepGo/internal/hw/gpio"
)

// Pattern is one coil-activation row: bit i drives line i.
type Pattern uint8

// Level returns the state of one line in the pattern.
func (p Pattern) Level(line int) gpio.Level {
	return p&(1<<line) != 0
}

// mirror returns the pattern with the line order reversed
// (line 0 swapped with line width-1, and so on).
func (p Pattern) mirror(width int) Pattern {
	var out Pattern
	for i := 0; i < width; i++ {
		if p&(1<<i) != 0 {
			out |= 1 << (width - 1 - i)
		}
	}
	return out
}

// PhaseTable is an ordered, immutable sequence of coil-activation
// patterns covering one electrical cycle. It is shared by reference
// with the Sequencer and never mutated after construction.
type PhaseTable struct {
	rows  []Pattern
	width int
}

// NewPhaseTable validates and builds a phase table. Width is the number
// of coil lines (2 to 8); every row must fit within that width.
func NewPhaseTable(width int, rows []Pattern) (*PhaseTable, error) {
	if width < 2 || width > 8 {
		return nil, fmt.Errorf("%w: table width %d (want 2-8)", ErrConfig, width)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty phase table", ErrConfig)
	}
	for i, r := range rows {
		if r>>width != 0 {
			return nil, fmt.Errorf("%w: row %d uses lines beyond width %d", ErrConfig, i, width)
		}
	}
	t := &PhaseTable{width: width, rows: make([]Pattern, len(rows))}
	copy(t.rows, rows)
	return t, nil
}

// ParseRows builds a table from bit-string rows such as "1010".
// The leftmost character is line 0. All rows must have the same length.
func ParseRows(rows []string) (*PhaseTable, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty phase table", ErrConfig)
	}
	width := len(rows[0])
	parsed := make([]Pattern, len(rows))
	for i, s := range rows {
		if len(s) != width {
			return nil, fmt.Errorf("%w: row %d has %d lines, row 0 has %d", ErrConfig, i, len(s), width)
		}
		var p Pattern
		for j, c := range s {
			switch c {
			case '1':
				p |= 1 << j
			case '0':
			default:
				return nil, fmt.Errorf("%w: row %d: unexpected character %q", ErrConfig, i, c)
			}
		}
		parsed[i] = p
	}
	return NewPhaseTable(width, parsed)
}

// Row returns the pattern at index mod the row count.
func (t *PhaseTable) Row(i int) Pattern {
	return t.rows[i%len(t.rows)]
}

// Rows returns the number of patterns in the table.
func (t *PhaseTable) Rows() int { return len(t.rows) }

// Width returns the number of coil lines.
func (t *PhaseTable) Width() int { return t.width }

func mustParse(rows []string) *PhaseTable {
	t, err := ParseRows(rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Built-in full-step tables, one electrical cycle each. The 2 and
// 4-line tables are the classic bipolar/unipolar sequences; the 10-row
// table drives 5-phase motors.
var defaultFullTables = map[int]*PhaseTable{
	2: mustParse([]string{
		"01",
		"11",
		"10",
		"00",
	}),
	4: mustParse([]string{
		"1010",
		"0110",
		"0101",
		"1001",
	}),
	5: mustParse([]string{
		"01101",
		"01001",
		"01011",
		"01010",
		"11010",
		"10010",
		"10110",
		"10100",
		"10101",
		"00101",
	}),
}

// Built-in half-step tables. Only the 4-line sequence is standard
// hardware; other line counts need a caller-supplied table.
var defaultHalfTables = map[int]*PhaseTable{
	4: mustParse([]string{
		"1000",
		"1100",
		"0100",
		"0110",
		"0010",
		"0011",
		"0001",
		"1001",
	}),
}

// DefaultTable returns the built-in full-step table for a line count.
func DefaultTable(lines int) (*PhaseTable, bool) {
	t, ok := defaultFullTables[lines]
	return t, ok
}

// DefaultHalfTable returns the built-in half-step table for a line count.
func DefaultHalfTable(lines int) (*PhaseTable, bool) {
	t, ok := defaultHalfTables[lines]
	return t, ok
}
