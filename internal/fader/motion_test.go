package fader

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/motor-fader/internal/adc"
	"github.com/sweeney/motor-fader/internal/event"
	"github.com/sweeney/motor-fader/internal/logic"
	"github.com/sweeney/motor-fader/internal/motor"
	"github.com/sweeney/motor-fader/internal/status"
)

// simFader couples a fake sensor to a fake motor: every sample moves the
// wiper by step in whichever direction the motor was last driven.
type simFader struct {
	mu   sync.Mutex
	pos  logic.Raw
	dir  logic.Direction
	step logic.Raw
}

func newSimFader(pos, step logic.Raw) *simFader {
	return &simFader{pos: pos, dir: logic.DirectionStop, step: step}
}

func (s *simFader) read() logic.Raw {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.dir {
	case logic.DirectionForward:
		s.pos += s.step
	case logic.DirectionReverse:
		s.pos -= s.step
	}
	return s.pos
}

func (s *simFader) command(cmd logic.MotorCommand) {
	s.mu.Lock()
	s.dir = cmd.Direction
	s.mu.Unlock()
}

func (s *simFader) set(pos logic.Raw) {
	s.mu.Lock()
	s.pos = pos
	s.mu.Unlock()
}

func (s *simFader) position() logic.Raw {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func quietLogger() log.FieldLogger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Calibration = logic.NewCalibration(0, 26000)
	cfg.PollInterval = 0
	cfg.ReadPause = 0
	cfg.TransitionPause = 0
	cfg.MaxMoveDuration = time.Second
	return cfg
}

type harness struct {
	adc     *adc.Fake
	motor   *motor.FakeDriver
	actions *event.Signal[logic.SliderAction]
	values  *event.Signal[logic.SliderValue]
	tracker *status.Tracker
	ctrl    *Controller
}

func newHarness(cfg Config, samples ...logic.Raw) *harness {
	h := &harness{
		adc:     adc.NewFake(samples...),
		motor:   motor.NewFakeDriver(),
		actions: event.NewSignal[logic.SliderAction](),
		values:  event.NewSignal[logic.SliderValue](),
		tracker: status.NewTracker(time.Now(), status.Config{}),
	}
	h.ctrl = New(h.adc.OneShot(), h.motor, h.actions, h.values, cfg, h.tracker, quietLogger())
	return h
}

// simulate drives the harness sensor from a simulated fader.
func (h *harness) simulate(sim *simFader) {
	h.adc.Source = sim.read
	h.motor.OnCommand = sim.command
}

func TestMoveToMonotoneApproach(t *testing.T) {
	tests := []struct {
		name  string
		start logic.Raw
		pct   logic.Percent
		want  logic.Direction
	}{
		{"forward", 13000, 75, logic.DirectionForward},
		{"reverse", 20000, 25, logic.DirectionReverse},
		{"long forward", 100, 100, logic.DirectionForward},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(testConfig())
			sim := newSimFader(tt.start, 400)
			h.simulate(sim)

			if err := h.ctrl.MoveTo(context.Background(), tt.pct); err != nil {
				t.Fatalf("MoveTo: %v", err)
			}

			history := h.motor.History()
			if len(history) < 2 {
				t.Fatalf("expected drive and stop commands, got %v", history)
			}
			for i, cmd := range history[:len(history)-1] {
				if cmd.Direction != tt.want {
					t.Fatalf("command %d: got %s, want %s", i, cmd.Direction, tt.want)
				}
			}
			if h.motor.Running() {
				t.Error("motor must be stopped after arrival")
			}

			target := h.ctrl.Calibration().PercentToValue(tt.pct)
			if d := logic.Distance(target, sim.position()); d >= 500 {
				t.Errorf("stopped %d away from target %d", d, target)
			}
			// Bounded: one sample per step plus the arrival sample.
			maxReads := int(logic.Distance(target, tt.start)/400) + 2
			if h.adc.ReadCount() > maxReads {
				t.Errorf("took %d samples, want at most %d", h.adc.ReadCount(), maxReads)
			}
		})
	}
}

func TestMoveToSpeedTiers(t *testing.T) {
	h := newHarness(testConfig())
	sim := newSimFader(0, 1000)
	h.simulate(sim)

	if err := h.ctrl.MoveTo(context.Background(), 100); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}

	history := h.motor.History()
	if history[0].Speed != 90 {
		t.Errorf("first command speed: got %d, want 90", history[0].Speed)
	}
	last := history[len(history)-2]
	if last.Speed != 75 {
		t.Errorf("final approach speed: got %d, want 75", last.Speed)
	}
	for i := 1; i < len(history)-1; i++ {
		if history[i].Speed > history[i-1].Speed {
			t.Errorf("speed rose from %d to %d while approaching", history[i-1].Speed, history[i].Speed)
		}
	}
}

func TestMoveToStallStopsBeforeFault(t *testing.T) {
	// Target for 0% on [0, 26000] is 130. Distances 12000 then 13000.
	h := newHarness(testConfig(), 12130, 13130)

	err := h.ctrl.MoveTo(context.Background(), 0)
	if !errors.Is(err, ErrDirectionReversal) {
		t.Fatalf("expected ErrDirectionReversal, got %v", err)
	}

	var rev *ReversalError
	if !errors.As(err, &rev) {
		t.Fatalf("expected *ReversalError, got %T", err)
	}
	if rev.Best != 12000 || rev.Current != 13000 {
		t.Errorf("distances: got %d -> %d, want 12000 -> 13000", rev.Best, rev.Current)
	}

	history := h.motor.History()
	if len(history) < 2 {
		t.Fatalf("expected drive then stop, got %v", history)
	}
	if history[0].Direction != logic.DirectionReverse || history[0].Speed != 90 {
		t.Errorf("first command: got %+v, want REVERSE 90", history[0])
	}
	for i, cmd := range history[1:] {
		if cmd != logic.Stop {
			t.Errorf("command %d after stall: got %+v, want STOP", i+1, cmd)
		}
	}
	if h.adc.ReadCount() != 2 {
		t.Errorf("reads: got %d, want 2", h.adc.ReadCount())
	}
}

func TestMoveToStallTolerance(t *testing.T) {
	cfg := testConfig()
	cfg.StallTolerance = 50
	// Distance grows by 30 (tolerated), then shrinks to arrival.
	h := newHarness(cfg, 12130, 12160, 8000, 400)

	if err := h.ctrl.MoveTo(context.Background(), 0); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if h.motor.Running() {
		t.Error("motor must be stopped")
	}
}

func TestMoveToStallToleranceDrift(t *testing.T) {
	cfg := testConfig()
	cfg.StallTolerance = 20
	cfg.MaxMoveDuration = 0
	// Distance grows by 15 per sample, each step inside the tolerance.
	h := newHarness(cfg, 12130, 12145, 12160, 12175, 12190)

	err := h.ctrl.MoveTo(context.Background(), 0)
	var rev *ReversalError
	if !errors.As(err, &rev) {
		t.Fatalf("expected *ReversalError, got %v", err)
	}
	if rev.Best != 12000 || rev.Current != 12030 {
		t.Errorf("distances: got %d -> %d, want 12000 -> 12030", rev.Best, rev.Current)
	}
	if h.motor.Running() {
		t.Error("motor must be stopped")
	}
}

func TestMoveToWatchdog(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMoveDuration = 20 * time.Millisecond
	cfg.PollInterval = time.Millisecond
	// The wiper never moves: distance is constant, so the stall guard
	// stays quiet and only the watchdog can end the move.
	h := newHarness(cfg, 0)

	start := time.Now()
	err := h.ctrl.MoveTo(context.Background(), 75)
	if !errors.Is(err, ErrMoveTimeout) {
		t.Fatalf("expected ErrMoveTimeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("watchdog took %v", time.Since(start))
	}
	if h.motor.Running() {
		t.Error("motor must be stopped after timeout")
	}
}

func TestMoveToCancelled(t *testing.T) {
	h := newHarness(testConfig(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.ctrl.MoveTo(ctx, 75)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrMoveTimeout) {
		t.Error("cancellation must not be reported as a timeout")
	}
	if h.motor.Running() {
		t.Error("motor must be stopped")
	}
}

func TestMoveToReadFailureStopsMotor(t *testing.T) {
	cfg := testConfig()
	cfg.ReadAttempts = 2
	h := newHarness(cfg, 0, 1000)
	h.motor.OnCommand = func(cmd logic.MotorCommand) {
		if cmd.Direction == logic.DirectionForward {
			h.adc.FailReads = 5
		}
	}

	err := h.ctrl.MoveTo(context.Background(), 75)
	if !errors.Is(err, ErrRead) {
		t.Fatalf("expected ErrRead, got %v", err)
	}
	if !errors.Is(err, adc.ErrFake) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
	if h.motor.Running() {
		t.Error("motor must be stopped after read failure")
	}
}

func TestMoveToMotorFailure(t *testing.T) {
	h := newHarness(testConfig(), 0)
	h.motor.Error = errors.New("pwm rejected")

	err := h.ctrl.MoveTo(context.Background(), 75)
	if !errors.Is(err, ErrMotor) {
		t.Fatalf("expected ErrMotor, got %v", err)
	}
	if !Recoverable(err) {
		t.Error("motor faults should be recoverable")
	}
	if h.motor.Last() != logic.Stop {
		t.Error("stop must be attempted after a motor fault")
	}
}

func TestMoveToMotorFailureAndStuck(t *testing.T) {
	h := newHarness(testConfig(), 0)
	h.motor.Error = errors.New("pwm bus error")
	h.motor.StopError = errors.New("bridge latched")

	err := h.ctrl.MoveTo(context.Background(), 75)
	if !errors.Is(err, ErrMotorStuck) {
		t.Fatalf("expected ErrMotorStuck, got %v", err)
	}
	if !errors.Is(err, ErrMotor) {
		t.Errorf("the command failure should still match ErrMotor: %v", err)
	}
	if !errors.Is(err, h.motor.StopError) {
		t.Errorf("the stop failure should be wrapped: %v", err)
	}
	if Recoverable(err) {
		t.Error("a motor that did not stop must not be recoverable")
	}
}

func TestMoveToStopFailsAfterArrival(t *testing.T) {
	h := newHarness(testConfig(), 19630)
	h.motor.StopError = errors.New("bridge latched")

	err := h.ctrl.MoveTo(context.Background(), 75)
	if !errors.Is(err, ErrMotorStuck) {
		t.Fatalf("expected ErrMotorStuck, got %v", err)
	}
	if errors.Is(err, ErrMotor) {
		t.Errorf("no command failed, got %v", err)
	}
}

func TestMoveToAlreadyThere(t *testing.T) {
	h := newHarness(testConfig(), 19630)

	if err := h.ctrl.MoveTo(context.Background(), 75); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	history := h.motor.History()
	if len(history) != 1 || history[0] != logic.Stop {
		t.Errorf("expected only a stop, got %v", history)
	}
}
