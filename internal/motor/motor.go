// Package motor drives the fader's DC motor through an H-bridge.
// The real implementation uses Linux GPIO character device lines for direction
// and a periph.io PWM-capable pin for speed.
// The fake implementation allows testing without hardware.
package motor

import (
	"github.com/pkg/errors"

	"github.com/sweeney/motor-fader/internal/logic"
)

// MaxSpeed is the highest duty cycle, in percent.
const MaxSpeed uint8 = 100

// Driver sets the motor direction and duty cycle.
type Driver interface {
	// Forward drives toward higher raw values at speed percent.
	Forward(speed uint8) error

	// Reverse drives toward lower raw values at speed percent.
	Reverse(speed uint8) error

	// Stop releases both direction lines and zeroes the duty cycle.
	Stop() error
}

// ClampSpeed limits speed to MaxSpeed.
func ClampSpeed(speed uint8) uint8 {
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

// Apply issues cmd on d.
func Apply(d Driver, cmd logic.MotorCommand) error {
	switch cmd.Direction {
	case logic.DirectionForward:
		return d.Forward(cmd.Speed)
	case logic.DirectionReverse:
		return d.Reverse(cmd.Speed)
	case logic.DirectionStop:
		return d.Stop()
	}
	return errors.Errorf("motor: unknown direction %q", cmd.Direction)
}
