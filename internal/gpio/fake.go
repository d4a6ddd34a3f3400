package gpio

import (
	"sync"
	"time"
)

// FakeAlertLine is a test double whose edges are triggered by the test.
type FakeAlertLine struct {
	alerts chan time.Time

	mu sync.Mutex

	// Closed tracks if Close was called
	Closed bool

	// Dropped counts edges discarded because the consumer was behind.
	Dropped int
}

// NewFakeAlertLine creates a FakeAlertLine. buffer is the number of edges
// that can be pending; 0 uses the same depth as the real line.
func NewFakeAlertLine(buffer int) *FakeAlertLine {
	if buffer <= 0 {
		buffer = alertChannelSize
	}
	return &FakeAlertLine{alerts: make(chan time.Time, buffer)}
}

// Trigger simulates a falling edge at t. It reports whether the edge was
// delivered.
func (f *FakeAlertLine) Trigger(t time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Closed {
		return false
	}
	select {
	case f.alerts <- t:
		return true
	default:
		f.Dropped++
		return false
	}
}

// Alerts returns the edge channel.
func (f *FakeAlertLine) Alerts() <-chan time.Time {
	return f.alerts
}

// Close marks the line as closed and closes the channel.
func (f *FakeAlertLine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Closed {
		f.Closed = true
		close(f.alerts)
	}
	return nil
}
