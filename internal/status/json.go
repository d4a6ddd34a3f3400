package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	State         string          `json:"state"`
	Ready         bool            `json:"ready"`
	Raw           int32           `json:"raw"`
	Percent       int             `json:"percent"`
	Target        *int            `json:"target,omitempty"`
	Calibration   CalibrationJSON `json:"calibration"`
	Window        WindowJSON      `json:"window"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	Counts        CountsJSON      `json:"counts"`
	LastFault     *FaultJSON      `json:"last_fault,omitempty"`
	Config        ConfigJSON      `json:"config"`
}

// CalibrationJSON reports the observed raw bounds.
type CalibrationJSON struct {
	Min int32 `json:"min"`
	Max int32 `json:"max"`
}

// WindowJSON reports the comparator window.
type WindowJSON struct {
	Low  int32 `json:"low"`
	High int32 `json:"high"`
}

// CountsJSON is the JSON representation of activity counts.
type CountsJSON struct {
	Actions            int `json:"actions"`
	Recalibrations     int `json:"recalibrations"`
	Moves              int `json:"moves"`
	Arrivals           int `json:"arrivals"`
	Notifications      int `json:"notifications"`
	Reversals          int `json:"reversals"`
	Timeouts           int `json:"timeouts"`
	ReadFailures       int `json:"read_failures"`
	TransitionFailures int `json:"transition_failures"`
	MotorFailures      int `json:"motor_failures"`
	Restarts           int `json:"restarts"`
}

// FaultJSON describes the most recent fault.
type FaultJSON struct {
	Message string `json:"message"`
	At      string `json:"at"`
}

// ConfigJSON is the JSON representation of controller config.
type ConfigJSON struct {
	Threshold       int32 `json:"threshold"`
	ArrivalEpsilon  int32 `json:"arrival_epsilon"`
	PollIntervalMs  int64 `json:"poll_interval_ms"`
	MaxMoveMs       int64 `json:"max_move_ms"`
	DebounceMs      int64 `json:"debounce_ms"`
	StallTolerance  int32 `json:"stall_tolerance"`
	ReadAttempts    int   `json:"read_attempts"`
	TransitionTries int   `json:"transition_attempts"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State:         state,
		Ready:         snap.Baselined,
		Raw:           int32(snap.Raw),
		Percent:       int(snap.Percent),
		Calibration:   CalibrationJSON{Min: int32(snap.Calibration.Min), Max: int32(snap.Calibration.Max)},
		Window:        WindowJSON{Low: int32(snap.Window.Low), High: int32(snap.Window.High)},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Counts: CountsJSON{
			Actions:            snap.Counts.Actions,
			Recalibrations:     snap.Counts.Recalibrations,
			Moves:              snap.Counts.Moves,
			Arrivals:           snap.Counts.Arrivals,
			Notifications:      snap.Counts.Notifications,
			Reversals:          snap.Counts.Reversals,
			Timeouts:           snap.Counts.Timeouts,
			ReadFailures:       snap.Counts.ReadFailures,
			TransitionFailures: snap.Counts.TransitionFailures,
			MotorFailures:      snap.Counts.MotorFailures,
			Restarts:           snap.Counts.Restarts,
		},
		Config: ConfigJSON{
			Threshold:       snap.Config.Threshold,
			ArrivalEpsilon:  snap.Config.ArrivalEpsilon,
			PollIntervalMs:  snap.Config.PollIntervalMs,
			MaxMoveMs:       snap.Config.MaxMoveMs,
			DebounceMs:      snap.Config.DebounceMs,
			StallTolerance:  snap.Config.StallTolerance,
			ReadAttempts:    snap.Config.ReadAttempts,
			TransitionTries: snap.Config.TransitionTries,
		},
	}

	if snap.Target != nil {
		target := int(*snap.Target)
		inner.Target = &target
	}
	if snap.LastFault != "" {
		inner.LastFault = &FaultJSON{
			Message: snap.LastFault,
			At:      snap.LastFaultAt.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status for --print-state.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns compact JSON status tagged with a lifecycle event,
// for the STARTUP/SHUTDOWN log lines.
func FormatStatusEvent(snap Snapshot, event string) []byte {
	inner := buildInner(snap)
	inner.Event = event

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
