package logic

import (
	"testing"
	"time"
)

func TestSpeedTierBoundaries(t *testing.T) {
	tests := []struct {
		distance Raw
		want     uint8
	}{
		{10001, 90},
		{10000, 85},
		{7001, 85},
		{7000, 80},
		{5001, 80},
		{5000, 75},
		{1, 75},
		{0, 75},
	}

	for _, tt := range tests {
		if got := Speed(tt.distance); got != tt.want {
			t.Errorf("Speed(%d) = %d, want %d", tt.distance, got, tt.want)
		}
	}
}

func TestDistance(t *testing.T) {
	if got := Distance(19500, 13000); got != 6500 {
		t.Errorf("Distance(19500, 13000) = %d, want 6500", got)
	}
	if got := Distance(13000, 19500); got != 6500 {
		t.Errorf("Distance(13000, 19500) = %d, want 6500", got)
	}
}

func TestArbitrate(t *testing.T) {
	tests := []struct {
		name            string
		target, current Raw
		wantDir         Direction
		wantSpeed       uint8
	}{
		{"far below target", 19500, 5000, DirectionForward, 90},
		{"near below target", 19500, 18000, DirectionForward, 75},
		{"far above target", 1000, 12000, DirectionReverse, 90},
		{"inside dead band", 1000, 1010, DirectionStop, 0},
		{"on target", 1000, 1000, DirectionStop, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Arbitrate(tt.target, tt.current, 20)
			if cmd.Direction != tt.wantDir {
				t.Errorf("direction: got %s, want %s", cmd.Direction, tt.wantDir)
			}
			if cmd.Speed != tt.wantSpeed {
				t.Errorf("speed: got %d, want %d", cmd.Speed, tt.wantSpeed)
			}
		})
	}
}

func TestStallGuardTripsOnIncrease(t *testing.T) {
	g := NewStallGuard(0)

	for _, d := range []Raw{15000, 14000, 12000} {
		if tripped, _ := g.Observe(d); tripped {
			t.Fatalf("guard tripped on decreasing distance %d", d)
		}
	}

	tripped, prev := g.Observe(13000)
	if !tripped {
		t.Fatal("expected guard to trip when distance grew from 12000 to 13000")
	}
	if prev != 12000 {
		t.Errorf("expected closest distance 12000, got %d", prev)
	}
}

func TestStallGuardEqualDistanceIsProgressFree(t *testing.T) {
	g := NewStallGuard(0)
	g.Observe(5000)
	if tripped, _ := g.Observe(5000); tripped {
		t.Error("equal distance should not trip the guard")
	}
}

func TestStallGuardTolerance(t *testing.T) {
	g := NewStallGuard(20)
	g.Observe(5000)

	if tripped, _ := g.Observe(5015); tripped {
		t.Error("increase within tolerance should not trip")
	}
	if tripped, _ := g.Observe(5040); !tripped {
		t.Error("increase beyond tolerance should trip")
	}
}

func TestStallGuardToleranceIsNotCumulative(t *testing.T) {
	g := NewStallGuard(20)
	g.Observe(5000)

	// Each step is inside the tolerance but the fader is drifting away.
	for d := Raw(5015); d < 5100; d += 15 {
		tripped, best := g.Observe(d)
		if best != 5000 {
			t.Fatalf("closest approach: got %d, want 5000", best)
		}
		if tripped {
			if d != 5030 {
				t.Errorf("tripped at %d, want 5030", d)
			}
			return
		}
	}
	t.Fatal("guard never tripped on a steady drift")
}

func TestStallGuardTracksClosestApproach(t *testing.T) {
	g := NewStallGuard(20)
	for _, d := range []Raw{5000, 4000, 4015, 3990} {
		if tripped, _ := g.Observe(d); tripped {
			t.Fatalf("guard tripped at %d", d)
		}
	}
	if tripped, best := g.Observe(4011); !tripped || best != 3990 {
		t.Errorf("got (%v, %d), want (true, 3990)", tripped, best)
	}
}

func TestDebouncer(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDebouncer(50 * time.Millisecond)

	if !d.Accept(now) {
		t.Fatal("first edge should be accepted")
	}
	if d.Accept(now.Add(10 * time.Millisecond)) {
		t.Error("edge inside interval should be dropped")
	}
	if d.Accept(now.Add(49 * time.Millisecond)) {
		t.Error("edge at 49ms should be dropped")
	}
	if !d.Accept(now.Add(50 * time.Millisecond)) {
		t.Error("edge at exactly 50ms should be accepted")
	}

	accepted, dropped := d.Counts()
	if accepted != 2 || dropped != 2 {
		t.Errorf("expected counts (2, 2), got (%d, %d)", accepted, dropped)
	}
}

func TestDebouncerDisabled(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDebouncer(0)
	for i := 0; i < 5; i++ {
		if !d.Accept(now) {
			t.Fatalf("edge %d dropped with debounce disabled", i)
		}
	}
}
