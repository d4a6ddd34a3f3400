package motor

import (
	"sync"

	"github.com/sweeney/motor-fader/internal/logic"
)

// FakeDriver records motor commands for test assertions.
type FakeDriver struct {
	mu sync.Mutex

	// Commands contains every command issued, in order.
	Commands []logic.MotorCommand

	// Error, if set, is returned by Forward and Reverse after recording.
	Error error

	// StopError, if set, is returned by Stop after recording.
	StopError error

	// OnCommand, if set, is called with every recorded command.
	OnCommand func(logic.MotorCommand)
}

// NewFakeDriver creates a FakeDriver for testing.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{}
}

// Forward records a forward command.
func (f *FakeDriver) Forward(speed uint8) error {
	f.record(logic.MotorCommand{Direction: logic.DirectionForward, Speed: ClampSpeed(speed)})
	return f.err(f.Error)
}

// Reverse records a reverse command.
func (f *FakeDriver) Reverse(speed uint8) error {
	f.record(logic.MotorCommand{Direction: logic.DirectionReverse, Speed: ClampSpeed(speed)})
	return f.err(f.Error)
}

// Stop records a stop command.
func (f *FakeDriver) Stop() error {
	f.record(logic.Stop)
	return f.err(f.StopError)
}

func (f *FakeDriver) record(cmd logic.MotorCommand) {
	f.mu.Lock()
	f.Commands = append(f.Commands, cmd)
	hook := f.OnCommand
	f.mu.Unlock()
	if hook != nil {
		hook(cmd)
	}
}

func (f *FakeDriver) err(e error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return e
}

// Set runs fn with the fake locked, for changing injected errors while a
// controller is using it.
func (f *FakeDriver) Set(fn func(f *FakeDriver)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// History returns a copy of the recorded commands.
func (f *FakeDriver) History() []logic.MotorCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logic.MotorCommand(nil), f.Commands...)
}

// Last returns the most recent command, or Stop if none was issued.
func (f *FakeDriver) Last() logic.MotorCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Commands) == 0 {
		return logic.Stop
	}
	return f.Commands[len(f.Commands)-1]
}

// Running reports whether the last command left the motor driving.
func (f *FakeDriver) Running() bool {
	return f.Last().Direction != logic.DirectionStop
}

// Reset clears recorded commands.
func (f *FakeDriver) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = nil
	f.Error = nil
	f.StopError = nil
}
