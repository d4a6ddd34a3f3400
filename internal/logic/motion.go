package logic

// DefaultArrivalEpsilon is the distance, in raw units, below which the fader
// counts as arrived.
const DefaultArrivalEpsilon Raw = 500

// Distance returns |target - current|.
func Distance(target, current Raw) Raw {
	if target > current {
		return target - current
	}
	return current - target
}

// Speed returns the duty cycle for a given distance to target.
// It is a step function, not a proportional law.
func Speed(distance Raw) uint8 {
	switch {
	case distance > 10000:
		return 90
	case distance > 7000:
		return 85
	case distance > 5000:
		return 80
	default:
		return 75
	}
}

// Arbitrate picks the single motor command for one iteration of the motion
// loop. Inside the dead band of +/- threshold around the target it stops.
func Arbitrate(target, current, threshold Raw) MotorCommand {
	speed := Speed(Distance(target, current))
	switch {
	case target > current+threshold:
		return MotorCommand{Direction: DirectionForward, Speed: speed}
	case target < current-threshold:
		return MotorCommand{Direction: DirectionReverse, Speed: speed}
	default:
		return Stop
	}
}

// StallGuard detects the distance to target growing during a move, which
// means the motor is stalled against something, wired backwards, or has
// overshot. Distances are compared against the closest approach so far, so
// the tolerance absorbs sample noise but not a slow drift away.
type StallGuard struct {
	tolerance Raw
	best      Raw
	primed    bool
}

// NewStallGuard returns a guard that tolerates distances up to tolerance raw
// units beyond the closest approach.
func NewStallGuard(tolerance Raw) *StallGuard {
	if tolerance < 0 {
		tolerance = 0
	}
	return &StallGuard{tolerance: tolerance}
}

// Observe records distance and reports whether it exceeds the closest
// approach by more than the tolerance. The first observation never trips.
func (g *StallGuard) Observe(distance Raw) (tripped bool, best Raw) {
	if g.primed && distance > g.best+g.tolerance {
		return true, g.best
	}
	if !g.primed || distance < g.best {
		g.best = distance
	}
	g.primed = true
	return false, g.best
}
