package logic

import "time"

// Debouncer filters a burst of alert edges down to one event per interval.
type Debouncer struct {
	interval time.Duration
	last     time.Time
	seen     bool
	accepted int
	dropped  int
}

// NewDebouncer creates a debouncer. An interval <= 0 accepts every edge.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Accept reports whether an edge observed at now should be forwarded.
// Edges arriving less than interval after the last accepted edge are dropped.
func (d *Debouncer) Accept(now time.Time) bool {
	if d.seen && d.interval > 0 && now.Sub(d.last) < d.interval {
		d.dropped++
		return false
	}
	d.last = now
	d.seen = true
	d.accepted++
	return true
}

// Counts returns the number of accepted and dropped edges since creation.
func (d *Debouncer) Counts() (accepted, dropped int) {
	return d.accepted, d.dropped
}
