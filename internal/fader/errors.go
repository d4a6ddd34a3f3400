package fader

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sweeney/motor-fader/internal/logic"
)

// Fault classes. Match them with errors.Is.
var (
	// ErrConfiguration means the sensor rejected its setup. It is fatal.
	ErrConfiguration = errors.New("sensor configuration rejected")

	// ErrModeTransition means a one-shot/continuous switch kept failing.
	ErrModeTransition = errors.New("sensor mode transition failed")

	// ErrRead means sensor I/O kept failing after retries.
	ErrRead = errors.New("sensor read failed")

	// ErrDirectionReversal means the distance to target grew during a move.
	ErrDirectionReversal = errors.New("distance to target increased")

	// ErrMoveTimeout means a move did not arrive within the watchdog limit.
	ErrMoveTimeout = errors.New("move did not reach target in time")

	// ErrMotor means the motor driver rejected a command.
	ErrMotor = errors.New("motor command failed")

	// ErrMotorStuck means the driver refused to stop the motor. The motor
	// may still be driving, so it is never recovered from.
	ErrMotorStuck = errors.New("motor did not stop")
)

// Fault pairs a fault class with the error that caused it.
type Fault struct {
	Kind error
	Err  error
}

func fault(kind, err error) error {
	return &Fault{Kind: kind, Err: err}
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return f.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Err)
}

// Is reports whether target is the fault class.
func (f *Fault) Is(target error) bool {
	return target == f.Kind
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// ReversalError is returned when the stall guard trips. The motor has
// already been stopped.
type ReversalError struct {
	Target   logic.Raw
	Best     logic.Raw // closest approach during the move
	Current  logic.Raw // distance now
}

func (e *ReversalError) Error() string {
	return fmt.Sprintf("%s: %d -> %d (target %d)", ErrDirectionReversal, e.Best, e.Current, e.Target)
}

// Is matches ErrDirectionReversal.
func (e *ReversalError) Is(target error) bool {
	return target == ErrDirectionReversal
}

// StopError is returned when stopping the motor fails at the end of a move.
// Cause is whatever ended the move, nil if it arrived.
type StopError struct {
	Stop  error
	Cause error
}

func (e *StopError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", ErrMotorStuck, e.Stop)
	}
	return fmt.Sprintf("%s: %s (after %s)", ErrMotorStuck, e.Stop, e.Cause)
}

// Is matches ErrMotorStuck.
func (e *StopError) Is(target error) bool {
	return target == ErrMotorStuck
}

func (e *StopError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Stop}
	}
	return []error{e.Stop, e.Cause}
}

// Recoverable reports whether the controller re-baselines and keeps
// listening after err, rather than returning it.
func Recoverable(err error) bool {
	if errors.Is(err, ErrMotorStuck) {
		return false
	}
	return errors.Is(err, ErrDirectionReversal) ||
		errors.Is(err, ErrMoveTimeout) ||
		errors.Is(err, ErrMotor)
}
