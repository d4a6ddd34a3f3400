package fader

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Supervise runs c until ctx is done, restarting it after faults that a
// fresh start can clear. Configuration faults and a motor that will not stop
// are returned immediately.
// maxRestarts of zero means no limit.
func Supervise(ctx context.Context, c *Controller, backoff time.Duration, maxRestarts int) error {
	logger := c.log.WithField("task", "supervisor")
	restarts := 0

	for {
		err := c.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrMotorStuck) {
			return err
		}

		restarts++
		if maxRestarts > 0 && restarts > maxRestarts {
			return errors.Wrapf(err, "giving up after %d restarts", maxRestarts)
		}
		c.tracker.RecordRestart()
		logger.WithFields(log.Fields{
			"restart": restarts,
			"backoff": backoff,
		}).Warnf("controller stopped, restarting: %s", err)

		if err := c.sleep(ctx, backoff); err != nil {
			return nil
		}
	}
}
