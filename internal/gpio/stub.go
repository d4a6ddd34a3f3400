//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealAlertLine is not available on non-Linux platforms.
type RealAlertLine struct{}

// NewRealAlertLine returns an error on non-Linux platforms.
func NewRealAlertLine(chip string, pin int) (*RealAlertLine, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Alerts returns nil on non-Linux platforms.
func (a *RealAlertLine) Alerts() <-chan time.Time {
	return nil
}

// Close is not implemented on non-Linux platforms.
func (a *RealAlertLine) Close() error {
	return nil
}
