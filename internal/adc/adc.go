// Package adc provides the position sensor with hardware abstraction.
// The sensor exists as exactly one of two handles: a OneShot handle for
// explicitly triggered conversions, or a Continuous handle while the chip
// free-runs and its comparator watches the threshold window. A mode
// transition consumes the old handle; using it afterwards returns
// ErrHandleSpent.
// The real implementation drives an ADS1115 over I2C.
// The fake implementation allows testing without hardware.
package adc

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/sweeney/motor-fader/internal/logic"
)

var (
	// ErrHandleSpent is returned by a handle that was consumed by a mode transition.
	ErrHandleSpent = errors.New("adc: handle already consumed by a mode transition")

	// ErrInvalidConfig is returned by Configure for out-of-range settings.
	ErrInvalidConfig = errors.New("adc: invalid configuration")
)

// OneShot is the sensor in single-conversion mode.
type OneShot interface {
	// Configure applies cfg. It is called once at startup.
	Configure(cfg Config) error

	// Read triggers a conversion and returns the result once it completes.
	Read() (logic.Raw, error)

	// SetWindow programs the comparator thresholds.
	SetWindow(w logic.Window) error

	// EnterContinuous switches the chip to free-running mode. On success the
	// receiver is spent. On failure the receiver stays usable.
	EnterContinuous() (Continuous, error)
}

// Continuous is the sensor in free-running mode.
type Continuous interface {
	// Read waits for the next conversion period and returns the latest result.
	Read(ctx context.Context) (logic.Raw, error)

	// ExitToOneShot stops free-running conversions. On success the receiver
	// is spent. On failure the receiver stays usable.
	ExitToOneShot() (OneShot, error)
}

// FullScaleRange selects the programmable gain amplifier setting.
type FullScaleRange uint8

const (
	FullScale6V144 FullScaleRange = iota
	FullScale4V096
	FullScale2V048
	FullScale1V024
	FullScale0V512
	FullScale0V256
)

var fullScaleNames = map[string]FullScaleRange{
	"6.144": FullScale6V144,
	"4.096": FullScale4V096,
	"2.048": FullScale2V048,
	"1.024": FullScale1V024,
	"0.512": FullScale0V512,
	"0.256": FullScale0V256,
}

// ParseFullScale parses a full-scale voltage such as "4.096".
func ParseFullScale(s string) (FullScaleRange, error) {
	fs, ok := fullScaleNames[s]
	if !ok {
		return 0, errors.Wrapf(ErrInvalidConfig, "unknown full-scale range %q", s)
	}
	return fs, nil
}

// DataRate selects the conversion rate.
type DataRate uint8

const (
	DataRate8 DataRate = iota
	DataRate16
	DataRate32
	DataRate64
	DataRate128
	DataRate250
	DataRate475
	DataRate860
)

var samplesPerSecond = [...]int{8, 16, 32, 64, 128, 250, 475, 860}

// SamplesPerSecond returns the nominal rate, or 0 for an invalid value.
func (r DataRate) SamplesPerSecond() int {
	if int(r) >= len(samplesPerSecond) {
		return 0
	}
	return samplesPerSecond[r]
}

// ParseDataRate converts samples per second into a DataRate.
func ParseDataRate(sps int) (DataRate, error) {
	for i, v := range samplesPerSecond {
		if v == sps {
			return DataRate(i), nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidConfig, "unsupported data rate %d", sps)
}

// ComparatorPolarity selects the active level of the ALERT pin.
type ComparatorPolarity uint8

const (
	ActiveLow ComparatorPolarity = iota
	ActiveHigh
)

// ComparatorMode selects traditional (hysteresis) or window comparison.
type ComparatorMode uint8

const (
	ComparatorTraditional ComparatorMode = iota
	ComparatorWindow
)

// ComparatorLatching selects whether ALERT stays asserted until read.
type ComparatorLatching uint8

const (
	NonLatching ComparatorLatching = iota
	Latching
)

// ComparatorQueue is the number of successive out-of-window conversions
// required before ALERT asserts.
type ComparatorQueue uint8

const (
	QueueOne ComparatorQueue = iota
	QueueTwo
	QueueFour
	QueueDisabled
)

// ParseComparatorQueue converts a depth of 1, 2 or 4 into a ComparatorQueue.
func ParseComparatorQueue(depth int) (ComparatorQueue, error) {
	switch depth {
	case 1:
		return QueueOne, nil
	case 2:
		return QueueTwo, nil
	case 4:
		return QueueFour, nil
	}
	return 0, errors.Wrapf(ErrInvalidConfig, "unsupported comparator queue depth %d", depth)
}

// Config holds the one-time sensor setup.
type Config struct {
	FullScale FullScaleRange
	DataRate  DataRate
	Polarity  ComparatorPolarity
	Queue     ComparatorQueue
	Mode      ComparatorMode
	Latching  ComparatorLatching
}

// DefaultConfig returns the fader's sensor setup: 4.096V, 250 SPS, active-low
// non-latching window comparator asserting after four conversions.
func DefaultConfig() Config {
	return Config{
		FullScale: FullScale4V096,
		DataRate:  DataRate250,
		Polarity:  ActiveLow,
		Queue:     QueueFour,
		Mode:      ComparatorWindow,
		Latching:  NonLatching,
	}
}

// Validate checks every field is in range.
func (c Config) Validate() error {
	switch {
	case c.FullScale > FullScale0V256:
		return errors.Wrapf(ErrInvalidConfig, "full-scale %d", c.FullScale)
	case c.DataRate > DataRate860:
		return errors.Wrapf(ErrInvalidConfig, "data rate %d", c.DataRate)
	case c.Polarity > ActiveHigh:
		return errors.Wrapf(ErrInvalidConfig, "polarity %d", c.Polarity)
	case c.Queue > QueueDisabled:
		return errors.Wrapf(ErrInvalidConfig, "queue %d", c.Queue)
	case c.Mode > ComparatorWindow:
		return errors.Wrapf(ErrInvalidConfig, "comparator mode %d", c.Mode)
	case c.Latching > Latching:
		return errors.Wrapf(ErrInvalidConfig, "latching %d", c.Latching)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("fs=%d dr=%dsps pol=%d queue=%d mode=%d latch=%d",
		c.FullScale, c.DataRate.SamplesPerSecond(), c.Polarity, c.Queue, c.Mode, c.Latching)
}
