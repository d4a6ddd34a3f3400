// Package gpio provides the sensor ALERT input with hardware abstraction.
// The real implementation uses Linux GPIO character device edge events.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// AlertLine delivers comparator alerts.
type AlertLine interface {
	// Alerts returns a channel that receives the time of each falling edge
	// (ALERT asserted, active low). Edges are dropped, not queued, when the
	// consumer falls behind.
	Alerts() <-chan time.Time

	// Close releases GPIO resources and closes the Alerts channel.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultChip      = "gpiochip0"
	DefaultPinAlert  = 17 // ADS1115 ALERT/RDY
	DefaultPinIN1    = 23 // H-bridge IN1
	DefaultPinIN2    = 24 // H-bridge IN2
	DefaultPinPWM    = "GPIO18"
	alertChannelSize = 1
)
