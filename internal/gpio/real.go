//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealAlertLine watches the ALERT pin on actual hardware using the Linux GPIO
// character device.
type RealAlertLine struct {
	line   *gpiocdev.Line
	alerts chan time.Time

	mu     sync.Mutex
	closed bool
}

// NewRealAlertLine requests pin on chip as an input with pull-up (the ALERT
// output is open drain) and falling-edge detection.
func NewRealAlertLine(chip string, pin int) (*RealAlertLine, error) {
	a := &RealAlertLine{alerts: make(chan time.Time, alertChannelSize)}

	line, err := gpiocdev.RequestLine(chip, pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(a.handle))
	if err != nil {
		return nil, fmt.Errorf("request alert pin %d: %w", pin, err)
	}
	a.line = line
	return a, nil
}

func (a *RealAlertLine) handle(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.alerts <- time.Now():
	default:
	}
}

// Alerts returns the falling-edge channel.
func (a *RealAlertLine) Alerts() <-chan time.Time {
	return a.alerts
}

// Close releases the line. The pin is left as an input with pull-up, which
// matches the idle state of the open-drain ALERT output.
func (a *RealAlertLine) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.alerts)
	a.mu.Unlock()

	if err := a.line.Close(); err != nil {
		return fmt.Errorf("close alert pin: %w", err)
	}
	return nil
}
