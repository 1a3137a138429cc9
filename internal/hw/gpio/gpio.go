package gpio

import (
	"fmt"

	"github.com/cjeanneret/StepGo/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// PWMDriver is the optional pulse-width interface used by servos.
// SetupPWM configures a pin for hardware PWM at freqHz with cycleLen
// ticks per period; WriteDuty sets the high time in ticks.
// Real drivers implement it; code that needs PWM asserts for it.
type PWMDriver interface {
	SetupPWM(pin int, freqHz uint32, cycleLen uint32) error
	WriteDuty(pin int, dutyLen uint32) error
}

// NewDriver creates a GPIO driver by name: "mock", "rpio" or "periph".
func NewDriver(name string) (Driver, error) {
	switch name {
	case "", "mock":
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{cycles: make(map[int]uint32)}, nil
	case "rpio":
		return NewRPiRealDriver()
	case "periph":
		return NewPeriphDriver()
	default:
		return nil, fmt.Errorf("unknown gpio driver %q (want mock, rpio or periph)", name)
	}
}

// MockDriver is a test implementation that simply logs actions.
// Used for development on PC or testing.
type MockDriver struct {
	cycles map[int]uint32
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	return Low, nil
}

func (m *MockDriver) SetupPWM(pin int, freqHz uint32, cycleLen uint32) error {
	debug.GPIO("SetupPWM", pin, fmt.Sprintf("%dHz/%d", freqHz, cycleLen))
	if m.cycles == nil {
		m.cycles = make(map[int]uint32)
	}
	m.cycles[pin] = cycleLen
	return nil
}

func (m *MockDriver) WriteDuty(pin int, dutyLen uint32) error {
	debug.GPIO("WriteDuty", pin, dutyLen)
	return nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
