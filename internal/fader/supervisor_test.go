package fader

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/motor-fader/internal/adc"
	"github.com/sweeney/motor-fader/internal/logic"
	"github.com/sweeney/motor-fader/internal/motor"
)

func TestSuperviseRestartsFromContinuous(t *testing.T) {
	cfg := testConfig()
	cfg.TransitionAttempts = 1
	h := newHarness(cfg, 13000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Supervise(ctx, h.ctrl, 0, 0) }()

	waitFor(t, "listening", h.adc.Continuous)

	// The next exit fails once; the restart must leave continuous mode
	// before it baselines.
	h.adc.Set(func(f *adc.Fake) { f.FailExit = 1 })
	h.actions.Publish(logic.ReadSlider())

	waitFor(t, "restart", func() bool {
		return h.tracker.Snapshot().Counts.Restarts == 1
	})
	waitFor(t, "listening after restart", func() bool {
		return len(h.adc.TransitionLog()) == 3 && h.adc.Continuous()
	})

	want := []string{"continuous", "one-shot", "continuous"}
	for i, tr := range h.adc.TransitionLog() {
		if tr != want[i] {
			t.Errorf("transition %d: got %s, want %s", i, tr, want[i])
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("expected nil on shutdown, got %v", err)
	}
	if len(h.adc.Configs) != 1 {
		t.Errorf("configure calls: got %d, want 1", len(h.adc.Configs))
	}
}

func TestSuperviseGivesUp(t *testing.T) {
	cfg := testConfig()
	cfg.TransitionAttempts = 1
	h := newHarness(cfg, 13000)
	h.adc.FailEnter = 100

	err := Supervise(context.Background(), h.ctrl, 0, 2)
	if !errors.Is(err, ErrModeTransition) {
		t.Fatalf("expected ErrModeTransition, got %v", err)
	}
	if got := h.tracker.Snapshot().Counts.Restarts; got != 2 {
		t.Errorf("restarts: got %d, want 2", got)
	}
	if h.motor.Running() {
		t.Error("motor must be stopped")
	}
}

func TestSuperviseConfigurationIsFatal(t *testing.T) {
	h := newHarness(testConfig(), 13000)
	h.adc.ConfigureErr = errors.New("nack")

	err := Supervise(context.Background(), h.ctrl, time.Hour, 0)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if got := h.tracker.Snapshot().Counts.Restarts; got != 0 {
		t.Errorf("restarts: got %d, want 0", got)
	}
}

func TestSuperviseReadFailureRestarts(t *testing.T) {
	cfg := testConfig()
	cfg.ReadAttempts = 1
	h := newHarness(cfg, 13000)
	h.adc.FailReads = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Supervise(ctx, h.ctrl, 0, 0) }()

	waitForPercent(t, h, 50)
	if got := h.tracker.Snapshot().Counts.Restarts; got != 2 {
		t.Errorf("restarts: got %d, want 2", got)
	}
	if got := h.tracker.Snapshot().Counts.ReadFailures; got != 2 {
		t.Errorf("read failures: got %d, want 2", got)
	}

	cancel()
	<-done
}

func TestSuperviseMotorStuckIsFatal(t *testing.T) {
	h := newHarness(testConfig())
	sim := newSimFader(13000, 400)
	h.simulate(sim)

	done := make(chan error, 1)
	go func() { done <- Supervise(context.Background(), h.ctrl, 0, 0) }()

	waitForPercent(t, h, 50)
	waitFor(t, "listening", h.adc.Continuous)

	h.motor.Set(func(f *motor.FakeDriver) {
		f.Error = errors.New("pwm bus error")
		f.StopError = errors.New("bridge latched")
	})
	h.actions.Publish(logic.MoveSlider(75))

	select {
	case err := <-done:
		if !errors.Is(err, ErrMotorStuck) {
			t.Fatalf("expected ErrMotorStuck, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("controller kept running with a motor that would not stop")
	}

	snap := h.tracker.Snapshot()
	if snap.Counts.Restarts != 0 {
		t.Errorf("restarts: got %d, want 0", snap.Counts.Restarts)
	}
	if snap.Counts.MotorFailures != 1 {
		t.Errorf("motor failures: got %d, want 1", snap.Counts.MotorFailures)
	}
	if !strings.Contains(snap.LastFault, "bridge latched") {
		t.Errorf("last fault should name the stop failure: %q", snap.LastFault)
	}
	if snap.State != logic.StateStopped {
		t.Errorf("state: got %s, want STOPPED", snap.State)
	}
}
