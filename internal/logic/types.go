// Package logic contains the pure algorithms of the fader controller.
// This package has NO external dependencies (no I2C, GPIO, PWM, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "fmt"

// Raw is a native signed sample from the position sensor.
type Raw int32

// Percent is a fader position in the range 0..100.
type Percent int

// ActionKind identifies the variant of a SliderAction.
type ActionKind string

const (
	ActionRead ActionKind = "READ_SLIDER"
	ActionMove ActionKind = "MOVE_SLIDER"
)

// SliderAction is a command sent into the controller.
type SliderAction struct {
	Kind   ActionKind
	Target Percent // only meaningful for ActionMove
}

// ReadSlider returns an action that re-baselines the fader.
func ReadSlider() SliderAction {
	return SliderAction{Kind: ActionRead}
}

// MoveSlider returns an action that drives the fader to target.
func MoveSlider(target Percent) SliderAction {
	return SliderAction{Kind: ActionMove, Target: target}
}

func (a SliderAction) String() string {
	if a.Kind == ActionMove {
		return fmt.Sprintf("%s(%d)", a.Kind, a.Target)
	}
	return string(a.Kind)
}

// SliderValue is a position-change notification published by the controller.
type SliderValue struct {
	Percent Percent
}

// Direction is the direction component of a MotorCommand.
type Direction string

const (
	DirectionStop    Direction = "STOP"
	DirectionForward Direction = "FORWARD"
	DirectionReverse Direction = "REVERSE"
)

// MotorCommand is issued by the motion loop once per iteration.
type MotorCommand struct {
	Direction Direction
	Speed     uint8 // 0..100, zero for stop
}

// Stop is the command that halts the motor.
var Stop = MotorCommand{Direction: DirectionStop}

// Window is a comparator window. The sensor alerts when a conversion leaves [Low, High].
type Window struct {
	Low  Raw
	High Raw
}

// NewWindow returns the window centred on center with the given half width.
func NewWindow(center, threshold Raw) Window {
	return Window{Low: center - threshold, High: center + threshold}
}

// Contains reports whether r is inside the window (inclusive).
func (w Window) Contains(r Raw) bool {
	return r >= w.Low && r <= w.High
}

// State is the controller's position in its dispatch cycle.
type State string

const (
	StateStarting      State = "STARTING"
	StateListening     State = "LISTENING"
	StateDispatching   State = "DISPATCHING"
	StateRecalibrating State = "RECALIBRATING"
	StateSeeking       State = "SEEKING"
	StateStopped       State = "STOPPED"
)
