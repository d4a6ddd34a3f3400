package adc

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"

	"github.com/sweeney/motor-fader/internal/logic"
)

// DefaultAddr is the ADS1115 address with ADDR tied to GND.
const DefaultAddr uint16 = 0x48

// Register pointers.
const (
	regConversion byte = 0x00
	regConfig     byte = 0x01
	regLoThresh   byte = 0x02
	regHiThresh   byte = 0x03
)

// Config register fields.
const (
	cfgOS         uint16 = 1 << 15
	cfgMuxAIN0    uint16 = 0b100 << 12 // AIN0 against GND
	cfgModeSingle uint16 = 1 << 8
)

// maxReadyPolls bounds how long a one-shot read waits for OS to report done.
const maxReadyPolls = 10

// ads1115 is the chip shared by whichever handle is currently live.
type ads1115 struct {
	c     conn.Conn
	cfg   Config
	sleep func(time.Duration)
}

// configWord encodes cfg for the config register, with the mode bit set
// for single-shot or cleared for continuous conversion.
func configWord(cfg Config, single bool) uint16 {
	w := cfgMuxAIN0 |
		uint16(cfg.FullScale)<<9 |
		uint16(cfg.DataRate)<<5 |
		uint16(cfg.Mode)<<4 |
		uint16(cfg.Polarity)<<3 |
		uint16(cfg.Latching)<<2 |
		uint16(cfg.Queue)
	if single {
		w |= cfgModeSingle
	}
	return w
}

func (d *ads1115) writeReg(reg byte, v uint16) error {
	w := []byte{reg, 0, 0}
	binary.BigEndian.PutUint16(w[1:], v)
	return d.c.Tx(w, nil)
}

func (d *ads1115) readReg(reg byte) (uint16, error) {
	r := make([]byte, 2)
	if err := d.c.Tx([]byte{reg}, r); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r), nil
}

// conversionPeriod is one sample at the configured rate plus margin for the
// internal oscillator, which may run up to 10% slow.
func (d *ads1115) conversionPeriod() time.Duration {
	sps := d.cfg.DataRate.SamplesPerSecond()
	if sps == 0 {
		sps = 8
	}
	return time.Second/time.Duration(sps) + time.Second/time.Duration(sps*10)
}

// ADS1115OneShot is the ADS1115 in single-shot mode.
type ADS1115OneShot struct {
	d     *ads1115
	spent bool
}

// NewADS1115 returns a one-shot handle for the ADS1115 at addr on bus.
// The chip powers up in single-shot mode; call Configure before reading.
func NewADS1115(bus i2c.Bus, addr uint16) *ADS1115OneShot {
	return &ADS1115OneShot{d: &ads1115{
		c:     &i2c.Dev{Bus: bus, Addr: addr},
		cfg:   DefaultConfig(),
		sleep: time.Sleep,
	}}
}

// Configure writes cfg to the config register, leaving the chip idle in
// single-shot mode.
func (o *ADS1115OneShot) Configure(cfg Config) error {
	if o.spent {
		return ErrHandleSpent
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := o.d.writeReg(regConfig, configWord(cfg, true)); err != nil {
		return errors.Wrap(err, "ads1115: write config")
	}
	o.d.cfg = cfg
	return nil
}

// Read starts a single conversion on AIN0 and returns its result.
func (o *ADS1115OneShot) Read() (logic.Raw, error) {
	if o.spent {
		return 0, ErrHandleSpent
	}
	d := o.d
	if err := d.writeReg(regConfig, configWord(d.cfg, true)|cfgOS); err != nil {
		return 0, errors.Wrap(err, "ads1115: start conversion")
	}

	d.sleep(d.conversionPeriod())
	for i := 0; ; i++ {
		status, err := d.readReg(regConfig)
		if err != nil {
			return 0, errors.Wrap(err, "ads1115: poll conversion")
		}
		if status&cfgOS != 0 {
			break
		}
		if i >= maxReadyPolls {
			return 0, errors.New("ads1115: conversion did not complete")
		}
		d.sleep(d.conversionPeriod() / 4)
	}

	v, err := d.readReg(regConversion)
	if err != nil {
		return 0, errors.Wrap(err, "ads1115: read conversion")
	}
	return logic.Raw(int16(v)), nil
}

// SetWindow writes the comparator thresholds. Values beyond the 16-bit
// signed range saturate.
func (o *ADS1115OneShot) SetWindow(w logic.Window) error {
	if o.spent {
		return ErrHandleSpent
	}
	if err := o.d.writeReg(regLoThresh, uint16(saturate16(w.Low))); err != nil {
		return errors.Wrap(err, "ads1115: write low threshold")
	}
	if err := o.d.writeReg(regHiThresh, uint16(saturate16(w.High))); err != nil {
		return errors.Wrap(err, "ads1115: write high threshold")
	}
	return nil
}

// EnterContinuous starts free-running conversions.
func (o *ADS1115OneShot) EnterContinuous() (Continuous, error) {
	if o.spent {
		return nil, ErrHandleSpent
	}
	if err := o.d.writeReg(regConfig, configWord(o.d.cfg, false)); err != nil {
		return nil, errors.Wrap(err, "ads1115: enter continuous mode")
	}
	o.spent = true
	return &ADS1115Continuous{d: o.d}, nil
}

// ADS1115Continuous is the ADS1115 in continuous-conversion mode.
type ADS1115Continuous struct {
	d     *ads1115
	spent bool
}

// Read waits one conversion period and returns the conversion register.
func (c *ADS1115Continuous) Read(ctx context.Context) (logic.Raw, error) {
	if c.spent {
		return 0, ErrHandleSpent
	}
	t := time.NewTimer(c.d.conversionPeriod())
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	v, err := c.d.readReg(regConversion)
	if err != nil {
		return 0, errors.Wrap(err, "ads1115: read conversion")
	}
	return logic.Raw(int16(v)), nil
}

// ExitToOneShot powers the converter down into single-shot mode.
func (c *ADS1115Continuous) ExitToOneShot() (OneShot, error) {
	if c.spent {
		return nil, ErrHandleSpent
	}
	if err := c.d.writeReg(regConfig, configWord(c.d.cfg, true)); err != nil {
		return nil, errors.Wrap(err, "ads1115: exit continuous mode")
	}
	c.spent = true
	return &ADS1115OneShot{d: c.d}, nil
}

func saturate16(r logic.Raw) int16 {
	if r > math.MaxInt16 {
		return math.MaxInt16
	}
	if r < math.MinInt16 {
		return math.MinInt16
	}
	return int16(r)
}
