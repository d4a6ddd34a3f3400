// Package fader is the slider controller: it owns the position sensor and the
// motor, waits for actions, and publishes position changes.
//
// Between actions the sensor free-runs in continuous mode with its comparator
// watching a window around the last baseline. When an action arrives the
// controller switches the sensor to one-shot mode, re-baselines or drives the
// motor to a target, then returns to continuous mode.
package fader

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/motor-fader/internal/adc"
	"github.com/sweeney/motor-fader/internal/event"
	"github.com/sweeney/motor-fader/internal/logic"
	"github.com/sweeney/motor-fader/internal/motor"
	"github.com/sweeney/motor-fader/internal/status"
)

// Config holds the controller tuning.
type Config struct {
	Sensor      adc.Config
	Calibration logic.Calibration // initial observed bounds

	Threshold      logic.Raw // half width of the comparator window and motion dead band
	ArrivalEpsilon logic.Raw
	StallTolerance logic.Raw

	PollInterval    time.Duration // pause between motion loop samples
	MaxMoveDuration time.Duration // zero disables the watchdog
	IdlePoll        time.Duration // zero relies on actions alone while listening

	ReadAttempts       int
	ReadPause          time.Duration
	TransitionAttempts int
	TransitionPause    time.Duration
}

// DefaultConfig returns the settings for a 10k slide potentiometer on an
// ADS1115 at 4.096V full scale.
func DefaultConfig() Config {
	return Config{
		Sensor:             adc.DefaultConfig(),
		Calibration:        logic.NewCalibration(350, 25000),
		Threshold:          20,
		ArrivalEpsilon:     logic.DefaultArrivalEpsilon,
		PollInterval:       time.Millisecond,
		MaxMoveDuration:    5 * time.Second,
		ReadAttempts:       3,
		ReadPause:          2 * time.Millisecond,
		TransitionAttempts: 3,
		TransitionPause:    5 * time.Millisecond,
	}
}

// Validate checks the settings that the motion loop depends on.
func (c Config) Validate() error {
	if c.Threshold < 0 {
		return errors.Errorf("threshold must not be negative, got %d", c.Threshold)
	}
	if c.ArrivalEpsilon <= 0 {
		return errors.Errorf("arrival epsilon must be positive, got %d", c.ArrivalEpsilon)
	}
	// Inside the dead band the loop only stops; it must arrive first.
	if c.Threshold >= c.ArrivalEpsilon {
		return errors.Errorf("threshold %d must be below arrival epsilon %d", c.Threshold, c.ArrivalEpsilon)
	}
	if c.ReadAttempts < 1 || c.TransitionAttempts < 1 {
		return errors.New("retry attempts must be at least 1")
	}
	return c.Sensor.Validate()
}

// Controller is the slider state machine. Run must not be called
// concurrently with itself or MoveTo.
type Controller struct {
	cfg Config

	// Exactly one of these is held at any time.
	oneShot    adc.OneShot
	continuous adc.Continuous

	configured bool
	cal        logic.Calibration
	window     logic.Window
	published  *logic.Percent

	motor   motor.Driver
	actions *event.Signal[logic.SliderAction]
	values  *event.Signal[logic.SliderValue]
	tracker *status.Tracker
	log     log.FieldLogger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Controller that takes ownership of sensor and driver.
// A nil tracker or logger is replaced with a private one.
func New(sensor adc.OneShot, driver motor.Driver, actions *event.Signal[logic.SliderAction], values *event.Signal[logic.SliderValue], cfg Config, tracker *status.Tracker, logger log.FieldLogger) *Controller {
	if tracker == nil {
		tracker = status.NewTracker(time.Now(), status.Config{})
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{
		cfg:     cfg,
		oneShot: sensor,
		cal:     cfg.Calibration,
		motor:   driver,
		actions: actions,
		values:  values,
		tracker: tracker,
		log:     logger.WithField("component", "fader"),
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Calibration returns the observed sensor bounds.
func (c *Controller) Calibration() logic.Calibration {
	return c.cal
}

// Window returns the comparator window pushed by the last baseline.
func (c *Controller) Window() logic.Window {
	return c.window
}

// Published returns the last percent sent on the value signal.
func (c *Controller) Published() (logic.Percent, bool) {
	if c.published == nil {
		return 0, false
	}
	return *c.published, true
}

// Continuous reports whether the controller holds the continuous handle.
func (c *Controller) Continuous() bool {
	return c.continuous != nil
}

// Run configures the sensor on first use, baselines, and dispatches actions
// until ctx is done or a fault that needs a restart occurs. Calling Run again
// after it returns resumes from whichever handle is held.
func (c *Controller) Run(ctx context.Context) (err error) {
	defer func() {
		if stopErr := c.motor.Stop(); stopErr != nil {
			c.log.Errorf("failed to stop motor: %s", stopErr)
		}
		c.tracker.SetState(logic.StateStopped)
	}()

	if c.continuous != nil {
		if err := c.exitContinuous(ctx); err != nil {
			return err
		}
	}

	if err := c.Configure(); err != nil {
		return err
	}
	if err := c.Baseline(ctx); err != nil {
		return err
	}

	for {
		if err := c.enterContinuous(ctx); err != nil {
			return err
		}
		c.tracker.SetState(logic.StateListening)

		action, err := c.listen(ctx)
		if err != nil {
			// Leave the chip idle on shutdown. Failure here is not worth
			// reporting over the cancellation.
			if exitErr := c.exitContinuous(ctx); exitErr != nil {
				c.log.Warnf("leaving continuous mode on shutdown: %s", exitErr)
			}
			return err
		}

		c.tracker.SetState(logic.StateDispatching)
		c.tracker.RecordAction(action)
		c.log.Debugf("dispatching %s", action)

		if err := c.exitContinuous(ctx); err != nil {
			return err
		}
		if err := c.dispatch(ctx, action); err != nil {
			return err
		}
	}
}

// Configure applies the sensor configuration once. It must be called while
// the one-shot handle is held.
func (c *Controller) Configure() error {
	if c.configured {
		return nil
	}
	if err := c.cfg.Validate(); err != nil {
		return fault(ErrConfiguration, err)
	}
	if err := c.oneShot.Configure(c.cfg.Sensor); err != nil {
		return fault(ErrConfiguration, err)
	}
	c.configured = true
	c.log.Infof("sensor configured: %s", c.cfg.Sensor)
	return nil
}

// listen waits for the next action. With IdlePoll set it also samples the
// continuous handle and synthesises a ReadSlider when the fader leaves the
// window, for boards whose alert pin is not wired.
func (c *Controller) listen(ctx context.Context) (logic.SliderAction, error) {
	if c.cfg.IdlePoll <= 0 {
		return c.actions.Wait(ctx)
	}
	for {
		waitCtx, cancel := context.WithTimeout(ctx, c.cfg.IdlePoll)
		action, err := c.actions.Wait(waitCtx)
		cancel()
		if err == nil {
			return action, nil
		}
		if ctx.Err() != nil {
			return logic.SliderAction{}, ctx.Err()
		}

		raw, err := c.continuous.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return logic.SliderAction{}, ctx.Err()
			}
			c.log.Warnf("idle sample failed: %s", err)
			continue
		}
		if !c.window.Contains(raw) {
			c.log.Debugf("idle sample %d left window [%d, %d]", raw, c.window.Low, c.window.High)
			return logic.ReadSlider(), nil
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, action logic.SliderAction) error {
	switch action.Kind {
	case logic.ActionRead:
		return c.Baseline(ctx)

	case logic.ActionMove:
		c.tracker.SetState(logic.StateSeeking)
		c.log.Infof("moving to %d%%", action.Target)

		err := c.MoveTo(ctx, action.Target)
		switch {
		case err == nil:
			c.tracker.RecordArrival()
		case errors.Is(err, ErrMotorStuck):
			c.recordFault(err)
			return err
		case Recoverable(err):
			c.recordFault(err)
			c.log.Warnf("move to %d%% abandoned: %s", action.Target, err)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			c.recordFault(err)
			return err
		}
		return c.Baseline(ctx)
	}

	c.log.Warnf("ignoring unknown action %q", action.Kind)
	return nil
}

// Baseline samples the position, widens the calibration, re-centres the
// comparator window and publishes the percent if it changed. It must be
// called while the one-shot handle is held.
func (c *Controller) Baseline(ctx context.Context) error {
	c.tracker.SetState(logic.StateRecalibrating)

	raw, err := adc.ReadWithRetry(ctx, c.oneShot, c.cfg.ReadAttempts, c.cfg.ReadPause, c.log)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fault(ErrRead, err)
		c.recordFault(err)
		return err
	}

	if c.cal.Update(raw) {
		c.log.Debugf("calibration widened to [%d, %d]", c.cal.Min, c.cal.Max)
	}

	w := logic.NewWindow(raw, c.cfg.Threshold)
	if err := c.oneShot.SetWindow(w); err != nil {
		err = fault(ErrRead, errors.Wrap(err, "push threshold window"))
		c.recordFault(err)
		return err
	}
	c.window = w

	pct := c.cal.ValueToPercent(raw)
	c.tracker.SetBaseline(raw, pct, c.cal, w)

	if c.published == nil || *c.published != pct {
		c.published = &pct
		c.values.Publish(logic.SliderValue{Percent: pct})
		c.tracker.RecordNotification()
		c.log.WithField("raw", raw).Infof("fader at %d%%", pct)
	}
	return nil
}

func (c *Controller) enterContinuous(ctx context.Context) error {
	var lastErr error
	for i := 0; i < c.cfg.TransitionAttempts; i++ {
		cont, err := c.oneShot.EnterContinuous()
		if err == nil {
			c.continuous = cont
			c.oneShot = nil
			return nil
		}
		lastErr = err
		c.log.Warnf("entering continuous mode (%d/%d): %s", i+1, c.cfg.TransitionAttempts, err)
		if i+1 < c.cfg.TransitionAttempts {
			if err := c.sleep(ctx, c.cfg.TransitionPause); err != nil {
				return err
			}
		}
	}
	err := fault(ErrModeTransition, errors.Wrap(lastErr, "enter continuous mode"))
	c.recordFault(err)
	return err
}

func (c *Controller) exitContinuous(ctx context.Context) error {
	var lastErr error
	for i := 0; i < c.cfg.TransitionAttempts; i++ {
		one, err := c.continuous.ExitToOneShot()
		if err == nil {
			c.oneShot = one
			c.continuous = nil
			return nil
		}
		lastErr = err
		c.log.Warnf("leaving continuous mode (%d/%d): %s", i+1, c.cfg.TransitionAttempts, err)
		if i+1 < c.cfg.TransitionAttempts {
			if err := c.sleep(ctx, c.cfg.TransitionPause); err != nil {
				return err
			}
		}
	}
	err := fault(ErrModeTransition, errors.Wrap(lastErr, "exit continuous mode"))
	c.recordFault(err)
	return err
}

func (c *Controller) recordFault(err error) {
	var kind status.FaultKind
	switch {
	case errors.Is(err, ErrMotorStuck):
		kind = status.FaultMotor
	case errors.Is(err, ErrDirectionReversal):
		kind = status.FaultReversal
	case errors.Is(err, ErrMoveTimeout):
		kind = status.FaultTimeout
	case errors.Is(err, ErrMotor):
		kind = status.FaultMotor
	case errors.Is(err, ErrModeTransition):
		kind = status.FaultTransition
	default:
		kind = status.FaultRead
	}
	c.tracker.RecordFault(kind, err, time.Now())
}
