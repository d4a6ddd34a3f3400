package logic

import "math"

// Calibration tracks the observed raw bounds of the fader travel.
// The bounds only ever widen.
type Calibration struct {
	Min Raw
	Max Raw
}

// NewCalibration returns a calibration seeded with the given estimate.
// Swapped bounds are reordered.
func NewCalibration(min, max Raw) Calibration {
	if min > max {
		min, max = max, min
	}
	return Calibration{Min: min, Max: max}
}

// Update widens the bounds to include r. It reports whether the bounds changed.
func (c *Calibration) Update(r Raw) bool {
	changed := false
	if r < c.Min {
		c.Min = r
		changed = true
	}
	if r > c.Max {
		c.Max = r
		changed = true
	}
	return changed
}

// Span returns Max - Min.
func (c Calibration) Span() Raw {
	return c.Max - c.Min
}

// ValueToPercent maps r linearly onto 0..100, rounding to nearest and
// clamping readings outside the observed bounds.
func (c Calibration) ValueToPercent(r Raw) Percent {
	span := c.Span()
	if span <= 0 {
		return 0
	}
	p := math.Round(float64(r-c.Min) / float64(span) * 100)
	return clampPercent(Percent(p))
}

// PercentToValue is the inverse of ValueToPercent. A half-bucket bias
// (span/200) puts the result in the middle of the percent bucket.
func (c Calibration) PercentToValue(p Percent) Raw {
	p = clampPercent(p)
	span := float64(c.Span())
	v := Raw(float64(p)/100*span + span/200 + float64(c.Min))
	if v > c.Max {
		return c.Max
	}
	if v < c.Min {
		return c.Min
	}
	return v
}

func clampPercent(p Percent) Percent {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
