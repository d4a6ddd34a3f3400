// Package metrics exports controller state as Prometheus metrics.
// There is no listener: the registry is flushed to a node_exporter textfile.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/motor-fader/internal/status"
)

const namespace = "fader"

// Exporter reads a status.Tracker on every gather.
type Exporter struct {
	tracker  *status.Tracker
	registry *prometheus.Registry

	Percent        prometheus.GaugeFunc
	Raw            prometheus.GaugeFunc
	Ready          prometheus.GaugeFunc
	CalibrationMin prometheus.GaugeFunc
	CalibrationMax prometheus.GaugeFunc
	WindowLow      prometheus.GaugeFunc
	WindowHigh     prometheus.GaugeFunc
	Uptime         prometheus.GaugeFunc
	Actions        prometheus.CounterFunc
	Moves          prometheus.CounterFunc
	Arrivals       prometheus.CounterFunc
	Notifications  prometheus.CounterFunc
	Recalibrations prometheus.CounterFunc
	Restarts       prometheus.CounterFunc
	faults         *prometheus.GaugeVec
}

// New registers the controller metrics on a private registry.
func New(tracker *status.Tracker) *Exporter {
	e := &Exporter{
		tracker:  tracker,
		registry: prometheus.NewRegistry(),
	}

	e.Percent = e.gauge("position_percent", "Last published fader position (units: percent)",
		func(s status.Snapshot) float64 { return float64(s.Percent) })
	e.Raw = e.gauge("position_raw", "Last baselined sensor reading (units: raw counts)",
		func(s status.Snapshot) float64 { return float64(s.Raw) })
	e.Ready = e.gauge("ready", "1 once the first baseline has completed",
		func(s status.Snapshot) float64 {
			if s.Baselined {
				return 1
			}
			return 0
		})
	e.CalibrationMin = e.gauge("calibration_min", "Lowest sensor reading observed (units: raw counts)",
		func(s status.Snapshot) float64 { return float64(s.Calibration.Min) })
	e.CalibrationMax = e.gauge("calibration_max", "Highest sensor reading observed (units: raw counts)",
		func(s status.Snapshot) float64 { return float64(s.Calibration.Max) })
	e.WindowLow = e.gauge("window_low", "Comparator low threshold (units: raw counts)",
		func(s status.Snapshot) float64 { return float64(s.Window.Low) })
	e.WindowHigh = e.gauge("window_high", "Comparator high threshold (units: raw counts)",
		func(s status.Snapshot) float64 { return float64(s.Window.High) })
	e.Uptime = e.gauge("uptime_seconds", "Seconds since the controller started",
		func(s status.Snapshot) float64 { return s.Uptime().Seconds() })

	e.Actions = e.counter("actions_total", "Actions taken from the inbound channel",
		func(c status.Counts) int { return c.Actions })
	e.Moves = e.counter("moves_total", "Move requests dispatched",
		func(c status.Counts) int { return c.Moves })
	e.Arrivals = e.counter("arrivals_total", "Moves that reached their target",
		func(c status.Counts) int { return c.Arrivals })
	e.Notifications = e.counter("notifications_total", "Position changes published",
		func(c status.Counts) int { return c.Notifications })
	e.Recalibrations = e.counter("baselines_total", "Baselines performed",
		func(c status.Counts) int { return c.Recalibrations })
	e.Restarts = e.counter("restarts_total", "Controller task restarts",
		func(c status.Counts) int { return c.Restarts })

	e.faults = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "faults",
		Help:      "Faults observed since startup, by kind",
	}, []string{"kind"})
	e.registry.MustRegister(e.faults)
	e.registry.MustRegister(prometheus.NewBuildInfoCollector())

	return e
}

func (e *Exporter) gauge(name, help string, f func(status.Snapshot) float64) prometheus.GaugeFunc {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 { return f(e.tracker.Snapshot()) })
	e.registry.MustRegister(g)
	return g
}

func (e *Exporter) counter(name, help string, f func(status.Counts) int) prometheus.CounterFunc {
	c := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(f(e.tracker.Snapshot().Counts)) })
	e.registry.MustRegister(c)
	return c
}

// refreshFaults copies the per-kind fault counts into the labelled gauge.
func (e *Exporter) refreshFaults() {
	c := e.tracker.Snapshot().Counts
	e.faults.WithLabelValues(string(status.FaultReversal)).Set(float64(c.Reversals))
	e.faults.WithLabelValues(string(status.FaultTimeout)).Set(float64(c.Timeouts))
	e.faults.WithLabelValues(string(status.FaultRead)).Set(float64(c.ReadFailures))
	e.faults.WithLabelValues(string(status.FaultTransition)).Set(float64(c.TransitionFailures))
	e.faults.WithLabelValues(string(status.FaultMotor)).Set(float64(c.MotorFailures))
}

// Gatherer returns the registry, with fault gauges refreshed.
func (e *Exporter) Gatherer() prometheus.Gatherer {
	e.refreshFaults()
	return e.registry
}

// Fault returns the fault gauge for kind. Used by tests.
func (e *Exporter) Fault(kind status.FaultKind) prometheus.Gauge {
	return e.faults.WithLabelValues(string(kind))
}

// WriteTextfile atomically writes all metrics to path in the text
// exposition format.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.Gatherer()); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
