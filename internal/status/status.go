// Package status provides a thread-safe status tracker for the fader controller.
// It is read by the metrics exporter and by --print-state.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/motor-fader/internal/logic"
)

// Config contains controller configuration for display.
type Config struct {
	Threshold       int32
	ArrivalEpsilon  int32
	PollIntervalMs  int64
	MaxMoveMs       int64
	DebounceMs      int64
	StallTolerance  int32
	ReadAttempts    int
	TransitionTries int
}

// FaultKind names a runtime fault class.
type FaultKind string

const (
	FaultReversal   FaultKind = "DIRECTION_REVERSAL"
	FaultTimeout    FaultKind = "MOVE_TIMEOUT"
	FaultRead       FaultKind = "READ"
	FaultTransition FaultKind = "MODE_TRANSITION"
	FaultMotor      FaultKind = "MOTOR"
)

// Counts tracks controller activity since startup.
type Counts struct {
	Actions            int
	Recalibrations     int
	Moves              int
	Arrivals           int
	Notifications      int
	Reversals          int
	Timeouts           int
	ReadFailures       int
	TransitionFailures int
	MotorFailures      int
	Restarts           int
}

// Snapshot is a point-in-time view of controller state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State       logic.State
	Raw         logic.Raw
	Percent     logic.Percent
	Baselined   bool
	Calibration logic.Calibration
	Window      logic.Window
	Target      *logic.Percent
	Counts      Counts
	LastFault   string
	LastFaultAt time.Time
	StartTime   time.Time
	Now         time.Time
	Config      Config
}

// Uptime returns the duration since the controller started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable controller state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			State:     logic.StateStarting,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetState records the controller's state machine position.
func (t *Tracker) SetState(s logic.State) {
	t.mu.Lock()
	t.snap.State = s
	t.mu.Unlock()
}

// SetBaseline records the result of a baseline.
func (t *Tracker) SetBaseline(raw logic.Raw, pct logic.Percent, cal logic.Calibration, w logic.Window) {
	t.mu.Lock()
	t.snap.Raw = raw
	t.snap.Percent = pct
	t.snap.Calibration = cal
	t.snap.Window = w
	t.snap.Baselined = true
	t.snap.Counts.Recalibrations++
	t.mu.Unlock()
}

// RecordAction counts an action received from the inbound channel.
func (t *Tracker) RecordAction(a logic.SliderAction) {
	t.mu.Lock()
	t.snap.Counts.Actions++
	if a.Kind == logic.ActionMove {
		target := a.Target
		t.snap.Target = &target
		t.snap.Counts.Moves++
	}
	t.mu.Unlock()
}

// RecordArrival counts a move that reached its target.
func (t *Tracker) RecordArrival() {
	t.mu.Lock()
	t.snap.Counts.Arrivals++
	t.snap.Target = nil
	t.mu.Unlock()
}

// RecordNotification counts a published percent change.
func (t *Tracker) RecordNotification() {
	t.mu.Lock()
	t.snap.Counts.Notifications++
	t.mu.Unlock()
}

// RecordRestart counts a supervisor restart of the controller task.
func (t *Tracker) RecordRestart() {
	t.mu.Lock()
	t.snap.Counts.Restarts++
	t.mu.Unlock()
}

// RecordFault counts a fault of the given kind and remembers its message.
func (t *Tracker) RecordFault(kind FaultKind, err error, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch kind {
	case FaultReversal:
		t.snap.Counts.Reversals++
	case FaultTimeout:
		t.snap.Counts.Timeouts++
	case FaultRead:
		t.snap.Counts.ReadFailures++
	case FaultTransition:
		t.snap.Counts.TransitionFailures++
	case FaultMotor:
		t.snap.Counts.MotorFailures++
	}
	t.snap.Target = nil
	if err != nil {
		t.snap.LastFault = string(kind) + ": " + err.Error()
	} else {
		t.snap.LastFault = string(kind)
	}
	t.snap.LastFaultAt = at
}

// Snapshot returns a point-in-time copy of the controller state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Target != nil {
		target := *s.Target
		s.Target = &target
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
