package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sweeney/motor-fader/internal/logic"
	"github.com/sweeney/motor-fader/internal/status"
)

func newTestExporter() (*Exporter, *status.Tracker) {
	tr := status.NewTracker(time.Now(), status.Config{})
	return New(tr), tr
}

func TestGaugesFollowTracker(t *testing.T) {
	e, tr := newTestExporter()

	if got := testutil.ToFloat64(e.Ready); got != 0 {
		t.Errorf("ready before baseline: got %v, want 0", got)
	}

	tr.SetBaseline(13000, 50, logic.NewCalibration(0, 26000), logic.NewWindow(13000, 20))

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"percent", testutil.ToFloat64(e.Percent), 50},
		{"raw", testutil.ToFloat64(e.Raw), 13000},
		{"ready", testutil.ToFloat64(e.Ready), 1},
		{"calibration_min", testutil.ToFloat64(e.CalibrationMin), 0},
		{"calibration_max", testutil.ToFloat64(e.CalibrationMax), 26000},
		{"window_low", testutil.ToFloat64(e.WindowLow), 12980},
		{"window_high", testutil.ToFloat64(e.WindowHigh), 13020},
		{"baselines_total", testutil.ToFloat64(e.Recalibrations), 1},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestCountersFollowTracker(t *testing.T) {
	e, tr := newTestExporter()

	tr.RecordAction(logic.MoveSlider(75))
	tr.RecordAction(logic.ReadSlider())
	tr.RecordArrival()
	tr.RecordNotification()
	tr.RecordRestart()

	if got := testutil.ToFloat64(e.Actions); got != 2 {
		t.Errorf("actions: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(e.Moves); got != 1 {
		t.Errorf("moves: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.Arrivals); got != 1 {
		t.Errorf("arrivals: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.Notifications); got != 1 {
		t.Errorf("notifications: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.Restarts); got != 1 {
		t.Errorf("restarts: got %v, want 1", got)
	}
}

func TestFaultGauges(t *testing.T) {
	e, tr := newTestExporter()

	tr.RecordFault(status.FaultReversal, errors.New("grew"), time.Now())
	tr.RecordFault(status.FaultReversal, errors.New("grew"), time.Now())
	tr.RecordFault(status.FaultTimeout, errors.New("slow"), time.Now())

	e.Gatherer()

	if got := testutil.ToFloat64(e.Fault(status.FaultReversal)); got != 2 {
		t.Errorf("reversal faults: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(e.Fault(status.FaultTimeout)); got != 1 {
		t.Errorf("timeout faults: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.Fault(status.FaultMotor)); got != 0 {
		t.Errorf("motor faults: got %v, want 0", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	e, tr := newTestExporter()
	tr.SetBaseline(13000, 50, logic.NewCalibration(0, 26000), logic.NewWindow(13000, 20))

	path := filepath.Join(t.TempDir(), "fader.prom")
	if err := e.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		"fader_position_percent 50",
		"fader_window_high 13020",
		`fader_faults{kind="DIRECTION_REVERSAL"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}

func TestWriteTextfileBadPath(t *testing.T) {
	e, _ := newTestExporter()

	if err := e.WriteTextfile(filepath.Join(t.TempDir(), "missing", "fader.prom")); err == nil {
		t.Error("expected error for missing directory")
	}
}
