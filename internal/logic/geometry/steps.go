package geometry

import (
	"github.com/cjeanneret/StepGo/internal/hw/stepper"
)

// StepsCalculator converts angles to motor step counts for one motor,
// at one step resolution.
type StepsCalculator struct {
	stepsPerDegree float64
}

// NewStepsCalculator creates a calculator for a motor. Half-step mode
// doubles the addressable positions per degree.
func NewStepsCalculator(stepsPerRev int, mode stepper.Mode) *StepsCalculator {
	perRev := float64(stepsPerRev)
	if mode == stepper.Half {
		perRev *= 2
	}
	return &StepsCalculator{
		stepsPerDegree: perRev / 360.0,
	}
}

// StepsFromAngle converts an angle (in degrees) to motor steps.
func (s *StepsCalculator) StepsFromAngle(angleDegrees float64) int {
	return int(angleDegrees * s.stepsPerDegree)
}

// AngleFromSteps converts motor steps back to an angle in degrees.
func (s *StepsCalculator) AngleFromSteps(steps int) float64 {
	return float64(steps) / s.stepsPerDegree
}
