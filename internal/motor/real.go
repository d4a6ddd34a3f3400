//go:build linux

package motor

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
)

// RealDriver drives actual hardware. Direction lines come from the Linux GPIO
// character device; the PWM pin comes from the periph.io registry, so
// host.Init must have been called.
type RealDriver struct {
	*HBridge
	in1 *gpiocdev.Line
	in2 *gpiocdev.Line
	pwm gpio.PinIO
}

// NewRealDriver requests the direction lines as outputs driven low and looks
// up the PWM pin by name (e.g. "GPIO18").
func NewRealDriver(chip string, pinIN1, pinIN2 int, pwmPin string, freq physic.Frequency) (*RealDriver, error) {
	in1, err := gpiocdev.RequestLine(chip, pinIN1, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request IN1 pin %d: %w", pinIN1, err)
	}

	in2, err := gpiocdev.RequestLine(chip, pinIN2, gpiocdev.AsOutput(0))
	if err != nil {
		in1.Close()
		return nil, fmt.Errorf("request IN2 pin %d: %w", pinIN2, err)
	}

	pwm := gpioreg.ByName(pwmPin)
	if pwm == nil {
		in1.Close()
		in2.Close()
		return nil, fmt.Errorf("pwm pin %q not found", pwmPin)
	}

	return &RealDriver{
		HBridge: NewHBridge(in1, in2, pwm, freq),
		in1:     in1,
		in2:     in2,
		pwm:     pwm,
	}, nil
}

// Close stops the motor and releases the lines. The direction lines are
// reconfigured as inputs so the bridge inputs float to their pull-downs.
func (r *RealDriver) Close() error {
	var errs []error

	if err := r.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop: %w", err))
	}
	if err := r.pwm.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("halt pwm: %w", err))
	}
	for name, l := range map[string]*gpiocdev.Line{"IN1": r.in1, "IN2": r.in2} {
		if err := l.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", name, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
