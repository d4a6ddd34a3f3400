// Package monitor turns comparator alerts into ReadSlider actions.
// It never touches the sensor or the motor.
package monitor

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/motor-fader/internal/event"
	"github.com/sweeney/motor-fader/internal/gpio"
	"github.com/sweeney/motor-fader/internal/logic"
)

// Monitor watches an alert line and publishes debounced ReadSlider actions.
type Monitor struct {
	line      gpio.AlertLine
	actions   *event.Signal[logic.SliderAction]
	log       log.FieldLogger

	mu        sync.Mutex
	debouncer *logic.Debouncer
}

// New creates a Monitor. Alerts closer together than debounce collapse
// into one action.
func New(line gpio.AlertLine, actions *event.Signal[logic.SliderAction], debounce time.Duration, logger log.FieldLogger) *Monitor {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Monitor{
		line:      line,
		actions:   actions,
		debouncer: logic.NewDebouncer(debounce),
		log:       logger.WithField("component", "monitor"),
	}
}

// Run forwards alerts until ctx is done or the line is closed.
func (m *Monitor) Run(ctx context.Context) error {
	alerts := m.line.Alerts()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-alerts:
			if !ok {
				m.log.Info("alert line closed")
				return nil
			}
			m.mu.Lock()
			accepted := m.debouncer.Accept(t)
			m.mu.Unlock()
			if !accepted {
				continue
			}
			m.log.Debug("detected fader position change")
			m.actions.Publish(logic.ReadSlider())
		}
	}
}

// Counts returns how many alerts were forwarded and how many were debounced.
func (m *Monitor) Counts() (forwarded, debounced int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debouncer.Counts()
}
