package motor

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// DefaultFrequency is the PWM carrier frequency.
const DefaultFrequency = 20 * physic.KiloHertz

// Line is a digital output. *gpiocdev.Line satisfies it.
type Line interface {
	SetValue(value int) error
}

// DutyOutput is a PWM output. gpio.PinOut satisfies it.
type DutyOutput interface {
	PWM(duty gpio.Duty, f physic.Frequency) error
}

// HBridge is a TB6612/DRV8833 style driver: IN1/IN2 select direction and a
// separate PWM line sets speed.
type HBridge struct {
	in1  Line
	in2  Line
	pwm  DutyOutput
	freq physic.Frequency
}

// NewHBridge creates a driver over the given outputs. It does not touch the
// hardware until the first command.
func NewHBridge(in1, in2 Line, pwm DutyOutput, freq physic.Frequency) *HBridge {
	if freq == 0 {
		freq = DefaultFrequency
	}
	return &HBridge{in1: in1, in2: in2, pwm: pwm, freq: freq}
}

// Forward sets IN1 high, IN2 low.
func (h *HBridge) Forward(speed uint8) error {
	return h.drive(1, 0, ClampSpeed(speed))
}

// Reverse sets IN1 low, IN2 high.
func (h *HBridge) Reverse(speed uint8) error {
	return h.drive(0, 1, ClampSpeed(speed))
}

// Stop sets both inputs low and the duty cycle to zero.
func (h *HBridge) Stop() error {
	return h.drive(0, 0, 0)
}

func (h *HBridge) drive(a, b int, speed uint8) error {
	// Release before engage so the bridge never sees both inputs high.
	if a == 0 {
		if err := h.in1.SetValue(0); err != nil {
			return errors.Wrap(err, "motor: set IN1")
		}
	}
	if b == 0 {
		if err := h.in2.SetValue(0); err != nil {
			return errors.Wrap(err, "motor: set IN2")
		}
	}
	if a == 1 {
		if err := h.in1.SetValue(1); err != nil {
			return errors.Wrap(err, "motor: set IN1")
		}
	}
	if b == 1 {
		if err := h.in2.SetValue(1); err != nil {
			return errors.Wrap(err, "motor: set IN2")
		}
	}
	if err := h.pwm.PWM(DutyFor(speed), h.freq); err != nil {
		return errors.Wrap(err, "motor: set duty cycle")
	}
	return nil
}

// DutyFor converts a speed percentage to a periph duty value.
func DutyFor(speed uint8) gpio.Duty {
	return gpio.Duty(int64(gpio.DutyMax) * int64(ClampSpeed(speed)) / 100)
}
