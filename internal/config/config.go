package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/StepGo/internal/hw/servo"
	"github.com/cjeanneret/StepGo/internal/hw/stepper"
)

// MaxConfigFileBytes is the largest config file Load accepts.
const MaxConfigFileBytes = 1 << 20

// MotorConfig holds the configuration for one phase-driven stepper
// motor (28BYJ-48 and friends, driven line by line through a ULN2003
// or similar).
type MotorConfig struct {
	Name        string   `yaml:"name"`
	Preset      string   `yaml:"preset,omitempty"`        // e.g. "28byj-48", fills steps_per_rev
	Pins        []int    `yaml:"pins"`                    // BCM pins, coil order
	StepsPerRev int      `yaml:"steps_per_rev,omitempty"` // full steps per revolution
	Table       []string `yaml:"table,omitempty"`         // full-step rows as bit strings, e.g. "1010"
	HalfTable   []string `yaml:"half_table,omitempty"`    // half-step rows
	FloorFullUS int      `yaml:"floor_full_us,omitempty"` // minimum full-step delay (us)
	FloorHalfUS int      `yaml:"floor_half_us,omitempty"` // minimum half-step delay (us)
	RPM         float64  `yaml:"rpm,omitempty"`           // initial speed, 0 = slowest
	Mode        string   `yaml:"mode,omitempty"`          // "full" (default) or "half"
}

// ServoConfig holds the configuration for one PWM servo.
type ServoConfig struct {
	Name   string  `yaml:"name"`
	Pin    int     `yaml:"pin"`
	MinUS  float64 `yaml:"min_us,omitempty"`  // pulse width at min_deg (default 500)
	MaxUS  float64 `yaml:"max_us,omitempty"`  // pulse width at max_deg (default 2500)
	MinDeg float64 `yaml:"min_deg,omitempty"` // default 0
	MaxDeg float64 `yaml:"max_deg,omitempty"` // default 180
	FreqHz uint32  `yaml:"freq_hz,omitempty"` // default 50
}

// Config aggregates all application configuration.
type Config struct {
	Driver     string        `yaml:"driver"`      // mock | rpio | periph
	DebugLevel int           `yaml:"debug_level"` // 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	Motors     []MotorConfig `yaml:"motors"`
	Servos     []ServoConfig `yaml:"servos,omitempty"`
}

// ValidateConfigPath checks that a config path is a .yaml file inside a
// configs/ directory, with no traversal escaping it.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension, got %q", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must live in a configs/ directory, got %q", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Driver {
	case "":
		c.Driver = "mock"
	case "mock", "rpio", "periph":
	default:
		return fmt.Errorf("driver must be mock, rpio or periph, got %q", c.Driver)
	}
	if c.DebugLevel < 0 || c.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", c.DebugLevel)
	}
	if len(c.Motors) == 0 {
		return fmt.Errorf("at least one motor is required")
	}

	names := make(map[string]bool)
	for i := range c.Motors {
		m := &c.Motors[i]
		if m.Name == "" {
			return fmt.Errorf("motor %d: name is required", i)
		}
		if names[m.Name] {
			return fmt.Errorf("motor %d: duplicate name %q", i, m.Name)
		}
		names[m.Name] = true

		if m.Preset != "" {
			preset, ok := stepper.Preset(m.Preset)
			if !ok {
				return fmt.Errorf("motor %s: unknown preset %q", m.Name, m.Preset)
			}
			if m.StepsPerRev == 0 {
				m.StepsPerRev = preset.StepsPerRev
			}
		}
		if len(m.Pins) < 2 || len(m.Pins) > 8 {
			return fmt.Errorf("motor %s: need between 2 and 8 pins, got %d", m.Name, len(m.Pins))
		}
		if m.StepsPerRev <= 0 {
			return fmt.Errorf("motor %s: steps_per_rev must be > 0", m.Name)
		}
		if m.RPM < 0 {
			return fmt.Errorf("motor %s: rpm must be >= 0", m.Name)
		}
		if m.FloorFullUS < 0 || m.FloorHalfUS < 0 {
			return fmt.Errorf("motor %s: floor delays must be >= 0", m.Name)
		}
		if _, err := stepper.ParseMode(m.Mode); err != nil {
			return fmt.Errorf("motor %s: %w", m.Name, err)
		}
		if len(m.Table) > 0 {
			if _, err := stepper.ParseRows(m.Table); err != nil {
				return fmt.Errorf("motor %s: table: %w", m.Name, err)
			}
		}
		if len(m.HalfTable) > 0 {
			if _, err := stepper.ParseRows(m.HalfTable); err != nil {
				return fmt.Errorf("motor %s: half_table: %w", m.Name, err)
			}
		}
	}

	for i := range c.Servos {
		s := &c.Servos[i]
		if s.Name == "" {
			return fmt.Errorf("servo %d: name is required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("servo %d: duplicate name %q", i, s.Name)
		}
		names[s.Name] = true
		if s.Pin <= 0 {
			return fmt.Errorf("servo %s: pin is required", s.Name)
		}
		// SG90 defaults
		if s.MinUS == 0 {
			s.MinUS = 500
		}
		if s.MaxUS == 0 {
			s.MaxUS = 2500
		}
		if s.MaxDeg == 0 && s.MinDeg == 0 {
			s.MaxDeg = 180
		}
		if s.FreqHz == 0 {
			s.FreqHz = 50
		}
		if s.MinUS >= s.MaxUS {
			return fmt.Errorf("servo %s: min_us must be < max_us", s.Name)
		}
		if s.MinDeg >= s.MaxDeg {
			return fmt.Errorf("servo %s: min_deg must be < max_deg", s.Name)
		}
	}

	return nil
}

// StepperConfig converts a motor entry into the stepper package's
// configuration form, parsing any custom phase tables.
func (m *MotorConfig) StepperConfig() (stepper.Config, error) {
	cfg := stepper.Config{
		Name:        m.Name,
		Pins:        m.Pins,
		StepsPerRev: m.StepsPerRev,
		FloorFull:   m.FloorFull(),
		FloorHalf:   m.FloorHalf(),
	}
	if len(m.Table) > 0 {
		tab, err := stepper.ParseRows(m.Table)
		if err != nil {
			return stepper.Config{}, fmt.Errorf("motor %s: table: %w", m.Name, err)
		}
		cfg.Table = tab
	}
	if len(m.HalfTable) > 0 {
		tab, err := stepper.ParseRows(m.HalfTable)
		if err != nil {
			return stepper.Config{}, fmt.Errorf("motor %s: half_table: %w", m.Name, err)
		}
		cfg.HalfTable = tab
	}
	return cfg, nil
}

// FloorFull returns the minimum full-step delay, 0 meaning the
// built-in default.
func (m *MotorConfig) FloorFull() time.Duration {
	return time.Duration(m.FloorFullUS) * time.Microsecond
}

// FloorHalf returns the minimum half-step delay, 0 meaning the
// built-in default.
func (m *MotorConfig) FloorHalf() time.Duration {
	return time.Duration(m.FloorHalfUS) * time.Microsecond
}

// ServoConfig converts a servo entry into the servo package's
// configuration form.
func (s *ServoConfig) ServoConfig() servo.Config {
	return servo.Config{
		Name:   s.Name,
		Pin:    s.Pin,
		MinUS:  s.MinUS,
		MaxUS:  s.MaxUS,
		MinDeg: s.MinDeg,
		MaxDeg: s.MaxDeg,
		FreqHz: s.FreqHz,
	}
}
