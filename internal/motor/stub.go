//go:build !linux

package motor

import (
	"errors"

	"periph.io/x/conn/v3/physic"
)

// RealDriver is not available on non-Linux platforms.
type RealDriver struct{}

// NewRealDriver returns an error on non-Linux platforms.
func NewRealDriver(chip string, pinIN1, pinIN2 int, pwmPin string, freq physic.Frequency) (*RealDriver, error) {
	return nil, errors.New("motor: not supported on this platform (requires Linux)")
}

// Forward is not implemented on non-Linux platforms.
func (r *RealDriver) Forward(speed uint8) error {
	return errors.New("motor: not supported")
}

// Reverse is not implemented on non-Linux platforms.
func (r *RealDriver) Reverse(speed uint8) error {
	return errors.New("motor: not supported")
}

// Stop is not implemented on non-Linux platforms.
func (r *RealDriver) Stop() error {
	return errors.New("motor: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealDriver) Close() error {
	return nil
}
