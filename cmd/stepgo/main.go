package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/cjeanneret/StepGo/internal/config"
	"github.com/cjeanneret/StepGo/internal/debug"
	"github.com/cjeanneret/StepGo/internal/hw/gpio"
	"github.com/cjeanneret/StepGo/internal/hw/servo"
	"github.com/cjeanneret/StepGo/internal/hw/stepper"
	"github.com/cjeanneret/StepGo/internal/logic/motion"
	"github.com/cjeanneret/StepGo/internal/logic/program"
	"github.com/cjeanneret/StepGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	motorName := flag.String("motor", "", "motor to drive (from config)")
	steps := flag.Int("steps", 0, "move by a signed number of steps")
	angle := flag.Float64("angle", 0, "move by a signed angle in degrees")
	rpm := flag.Float64("rpm", 0, "speed override in revolutions per minute")
	mode := flag.String("mode", "", "step mode override: full or half")
	home := flag.Bool("home", false, "return the motor to its origin, then release")
	release := flag.Bool("release", false, "de-energize all motors and exit")
	programPath := flag.String("program", "", "run a yaml move program")
	servoName := flag.String("servo", "", "servo to position (from config)")
	servoDeg := flag.Float64("deg", math.NaN(), "servo target angle in degrees")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	if err := validateAction(*motorName, *steps, *angle, *rpm, *mode, *home, *release, *programPath, *servoName, *servoDeg, webPort.port()); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	// Initialize debug system
	debug.Init(cfg.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.DebugLevel)
	debug.Value("Driver", cfg.Driver)

	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Driver)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	debug.Step(2, "Initializing stepper motors")
	motors, err := buildMotors(gpioDriver, cfg)
	if err != nil {
		log.Fatalf("init motors failed: %v", err)
	}

	debug.Step(3, "Initializing servos")
	servos, err := buildServos(gpioDriver, cfg)
	if err != nil {
		log.Fatalf("init servos failed: %v", err)
	}

	ctrl := motion.NewController(motors...)
	defer func() {
		if err := ctrl.ReleaseAll(); err != nil {
			log.Printf("releasing motors failed: %v", err)
		}
	}()

	// Servo one-shot
	if *servoName != "" {
		s, ok := servos[*servoName]
		if !ok {
			log.Fatalf("unknown servo %q", *servoName)
		}
		if err := s.SetDegrees(*servoDeg); err != nil {
			log.Fatalf("servo move failed: %v", err)
		}
		return
	}

	// Program mode
	if *programPath != "" {
		p, err := program.Load(*programPath)
		if err != nil {
			log.Fatalf("load program failed: %v", err)
		}
		if err := p.Run(ctx, ctrl); err != nil {
			log.Fatalf("program failed: %v", err)
		}
		return
	}

	// Web mode
	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		srv := web.NewServer(webAddr, broadcaster,
			runMoveFunc(ctrl), ctrl.Home, ctrl.ReleaseAll, statusFunc(ctrl))
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	// One-shot move
	if err := runOneShot(ctx, ctrl, *motorName, *steps, *angle, *rpm, *mode, *home, *release); err != nil {
		log.Fatalf("move failed: %v", err)
	}
}

// buildMotors creates every configured motor, applying its initial
// speed and mode.
func buildMotors(g gpio.Driver, cfg *config.Config) ([]*stepper.Motor, error) {
	motors := make([]*stepper.Motor, 0, len(cfg.Motors))
	for i := range cfg.Motors {
		mc := &cfg.Motors[i]
		sc, err := mc.StepperConfig()
		if err != nil {
			return nil, err
		}
		m, err := stepper.NewMotor(g, sc)
		if err != nil {
			return nil, fmt.Errorf("motor %s: %w", mc.Name, err)
		}
		debug.PrintStruct("Motor config", *mc)

		if mc.Mode != "" {
			md, err := stepper.ParseMode(mc.Mode)
			if err != nil {
				return nil, fmt.Errorf("motor %s: %w", mc.Name, err)
			}
			if err := m.SetMode(md); err != nil {
				return nil, fmt.Errorf("motor %s: %w", mc.Name, err)
			}
		}
		if mc.RPM > 0 {
			if err := m.SetSpeed(mc.RPM, stepper.RevolutionsPerMinute); err != nil {
				return nil, fmt.Errorf("motor %s: %w", mc.Name, err)
			}
		}
		motors = append(motors, m)
	}
	return motors, nil
}

// buildServos creates every configured servo. Servos need a PWM
// capable driver; configuring one on a driver without PWM fails fast.
func buildServos(g gpio.Driver, cfg *config.Config) (map[string]*servo.Servo, error) {
	if len(cfg.Servos) == 0 {
		return nil, nil
	}
	pwm, ok := g.(gpio.PWMDriver)
	if !ok {
		return nil, fmt.Errorf("driver %q has no PWM support, required for servos", cfg.Driver)
	}

	servos := make(map[string]*servo.Servo, len(cfg.Servos))
	for i := range cfg.Servos {
		sc := &cfg.Servos[i]
		s, err := servo.New(pwm, sc.ServoConfig())
		if err != nil {
			return nil, fmt.Errorf("servo %s: %w", sc.Name, err)
		}
		debug.PrintStruct("Servo config", *sc)
		servos[sc.Name] = s
	}
	return servos, nil
}

// runMoveFunc adapts the controller to the web handler's move contract.
func runMoveFunc(ctrl *motion.Controller) web.MoveFunc {
	return func(ctx context.Context, req web.MoveRequest) error {
		if req.Mode != "" {
			md, err := stepper.ParseMode(req.Mode)
			if err != nil {
				return err
			}
			if err := ctrl.SetMode(req.Motor, md); err != nil {
				return err
			}
		}
		if req.RPM > 0 {
			if err := ctrl.SetSpeed(req.Motor, req.RPM, stepper.RevolutionsPerMinute); err != nil {
				return err
			}
		}
		if req.AngleDeg != 0 {
			return ctrl.MoveAngle(ctx, req.Motor, req.AngleDeg)
		}
		return ctrl.Move(ctx, req.Motor, req.Steps)
	}
}

// statusFunc adapts the controller to the web handler's status contract.
func statusFunc(ctrl *motion.Controller) web.StatusFunc {
	return func() []web.MotorStatus {
		names := ctrl.Names()
		out := make([]web.MotorStatus, 0, len(names))
		for _, name := range names {
			m, err := ctrl.Motor(name)
			if err != nil {
				continue
			}
			out = append(out, web.MotorStatus{
				Name:       name,
				Position:   m.Position(),
				Mode:       m.Mode().String(),
				PhaseIndex: m.PhaseIndex(),
			})
		}
		return out
	}
}

// runOneShot executes a single CLI-requested motion.
func runOneShot(ctx context.Context, ctrl *motion.Controller, motor string, steps int, angle, rpm float64, mode string, home, release bool) error {
	if release {
		return ctrl.ReleaseAll()
	}

	if mode != "" {
		md, err := stepper.ParseMode(mode)
		if err != nil {
			return err
		}
		if err := ctrl.SetMode(motor, md); err != nil {
			return err
		}
	}
	if rpm > 0 {
		if err := ctrl.SetSpeed(motor, rpm, stepper.RevolutionsPerMinute); err != nil {
			return err
		}
	}

	switch {
	case home:
		return ctrl.Home(ctx, motor)
	case angle != 0:
		return ctrl.MoveAngle(ctx, motor, angle)
	default:
		return ctrl.Move(ctx, motor, steps)
	}
}

// validateAction checks that the CLI flags describe exactly one thing
// to do. Web, program and servo modes exclude the one-shot move flags.
func validateAction(motor string, steps int, angle, rpm float64, mode string, home, release bool, programPath, servoName string, servoDeg float64, webPort int) error {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return fmt.Errorf("angle must be a finite number")
	}
	if math.IsNaN(rpm) || math.IsInf(rpm, 0) || rpm < 0 {
		return fmt.Errorf("rpm must be a finite number >= 0")
	}
	if mode != "" && mode != "full" && mode != "half" {
		return fmt.Errorf("mode must be full or half, got %q", mode)
	}

	moveRequested := steps != 0 || angle != 0 || home
	modes := 0
	if moveRequested || release {
		modes++
	}
	if programPath != "" {
		modes++
	}
	if servoName != "" {
		modes++
	}
	if webPort > 0 {
		modes++
	}
	if modes > 1 {
		return fmt.Errorf("pick one of: move flags, -program, -servo, -web")
	}
	if modes == 0 {
		return fmt.Errorf("nothing to do; use -steps, -angle, -home, -release, -program, -servo or -web")
	}

	if moveRequested && motor == "" {
		return fmt.Errorf("-motor is required for -steps, -angle and -home")
	}
	if steps != 0 && angle != 0 {
		return fmt.Errorf("-steps and -angle are exclusive")
	}
	if home && (steps != 0 || angle != 0) {
		return fmt.Errorf("-home excludes -steps and -angle")
	}
	if servoName != "" && math.IsNaN(servoDeg) {
		return fmt.Errorf("-deg is required with -servo")
	}
	if servoName == "" && !math.IsNaN(servoDeg) {
		return fmt.Errorf("-deg needs -servo")
	}
	return nil
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
