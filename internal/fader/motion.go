package fader

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sweeney/motor-fader/internal/adc"
	"github.com/sweeney/motor-fader/internal/logic"
	"github.com/sweeney/motor-fader/internal/motor"
)

// MoveTo drives the fader to target and returns once it is within the
// arrival epsilon. The motor is stopped on every return path. It must be
// called while the one-shot handle is held.
func (c *Controller) MoveTo(ctx context.Context, target logic.Percent) (err error) {
	targetRaw := c.cal.PercentToValue(target)

	parent := ctx
	if c.cfg.MaxMoveDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.MaxMoveDuration)
		defer cancel()
	}

	defer func() {
		if stopErr := c.motor.Stop(); stopErr != nil {
			c.log.WithField("target", target).Errorf("failed to stop motor: %s", stopErr)
			err = &StopError{Stop: stopErr, Cause: err}
		}
	}()

	guard := logic.NewStallGuard(c.cfg.StallTolerance)
	for iteration := 0; ; iteration++ {
		if ctx.Err() != nil {
			if parent.Err() != nil {
				return parent.Err()
			}
			return fault(ErrMoveTimeout, errors.Errorf("gave up after %s and %d samples", c.cfg.MaxMoveDuration, iteration))
		}

		current, err := adc.ReadWithRetry(ctx, c.oneShot, c.cfg.ReadAttempts, c.cfg.ReadPause, c.log)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return fault(ErrRead, err)
		}

		distance := logic.Distance(targetRaw, current)
		if tripped, best := guard.Observe(distance); tripped {
			// Stop before surfacing the fault; the deferred stop repeats it.
			if stopErr := c.motor.Stop(); stopErr != nil {
				c.log.Errorf("failed to stop motor after reversal: %s", stopErr)
			}
			return &ReversalError{Target: targetRaw, Best: best, Current: distance}
		}

		if distance < c.cfg.ArrivalEpsilon {
			c.log.WithField("raw", current).Infof("arrived at %d%% after %d samples", target, iteration+1)
			return nil
		}

		cmd := logic.Arbitrate(targetRaw, current, c.cfg.Threshold)
		if err := motor.Apply(c.motor, cmd); err != nil {
			return fault(ErrMotor, err)
		}

		// Errors here surface at the top of the loop.
		_ = c.sleep(ctx, c.cfg.PollInterval)
	}
}
