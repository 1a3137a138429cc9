package gpio

import (
	"fmt"

	"github.com/cjeanneret/StepGo/internal/debug"
	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PeriphDriver is an alternative real implementation built on periph.io.
// Unlike go-rpio it goes through the kernel GPIO character device, so it
// also works on boards that are not Raspberry Pis.
type PeriphDriver struct {
	pins map[int]pgpio.PinIO
	pwm  map[int]pwmState
}

type pwmState struct {
	freqHz   uint32
	cycleLen uint32
}

// NewPeriphDriver initializes the periph.io host and returns a driver.
func NewPeriphDriver() (*PeriphDriver, error) {
	debug.Info("Initializing real GPIO driver (periph.io)")

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	return &PeriphDriver{
		pins: make(map[int]pgpio.PinIO),
		pwm:  make(map[int]pwmState),
	}, nil
}

func (d *PeriphDriver) lookup(pin int) (pgpio.PinIO, error) {
	if p, ok := d.pins[pin]; ok {
		return p, nil
	}
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if p == nil {
		return nil, fmt.Errorf("gpio pin GPIO%d not found", pin)
	}
	d.pins[pin] = p
	return p, nil
}

func (d *PeriphDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	p, err := d.lookup(pin)
	if err != nil {
		return err
	}

	switch mode {
	case Input:
		return p.In(pgpio.PullNoChange, pgpio.NoEdge)
	case Output:
		return p.Out(pgpio.Low)
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}
}

func (d *PeriphDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	p, err := d.lookup(pin)
	if err != nil {
		return err
	}
	if level == High {
		return p.Out(pgpio.High)
	}
	return p.Out(pgpio.Low)
}

func (d *PeriphDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)

	p, err := d.lookup(pin)
	if err != nil {
		return Low, err
	}
	if p.Read() == pgpio.High {
		return High, nil
	}
	return Low, nil
}

func (d *PeriphDriver) SetupPWM(pin int, freqHz uint32, cycleLen uint32) error {
	debug.GPIO("SetupPWM", pin, fmt.Sprintf("%dHz/%d", freqHz, cycleLen))

	if cycleLen == 0 {
		return fmt.Errorf("pwm cycle length must be > 0")
	}
	if _, err := d.lookup(pin); err != nil {
		return err
	}
	d.pwm[pin] = pwmState{freqHz: freqHz, cycleLen: cycleLen}
	return d.WriteDuty(pin, 0)
}

func (d *PeriphDriver) WriteDuty(pin int, dutyLen uint32) error {
	debug.GPIO("WriteDuty", pin, dutyLen)

	st, ok := d.pwm[pin]
	if !ok {
		return fmt.Errorf("pin %d not configured for PWM", pin)
	}
	if dutyLen > st.cycleLen {
		dutyLen = st.cycleLen
	}
	p := d.pins[pin]
	duty := pgpio.Duty(uint64(dutyLen) * uint64(pgpio.DutyMax) / uint64(st.cycleLen))
	return p.PWM(duty, physic.Frequency(st.freqHz)*physic.Hertz)
}

func (d *PeriphDriver) Close() error {
	debug.Trace("GPIO Close (periph driver)")

	for pin, p := range d.pins {
		debug.Verbose("Halting pin %d", pin)
		if err := p.Halt(); err != nil {
			debug.Error(err)
		}
	}
	return nil
}
