package adc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/motor-fader/internal/logic"
)

// ReadWithRetry performs up to attempts one-shot reads, pausing between them.
// It returns the first successful result or the last error wrapped.
// ErrHandleSpent is never retried, and a pause ends early with ctx's error
// when ctx is done.
func ReadWithRetry(ctx context.Context, s OneShot, attempts int, pause time.Duration, logger log.FieldLogger) (logic.Raw, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := s.Read()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrHandleSpent) {
			return 0, err
		}
		lastErr = err
		if i < attempts-1 {
			if logger != nil {
				logger.Warnf("retrying sensor read (%d/%d): %s", i+1, attempts, err)
			}
			if err := pauseContext(ctx, pause); err != nil {
				return 0, err
			}
		}
	}
	return 0, errors.Wrapf(lastErr, "all %d read attempts failed", attempts)
}

func pauseContext(ctx context.Context, d time.Duration) error {
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
