package route

import (
	"fmt"
	"math"

	"skyroute/pkg/geo"
)

// Weights blend the four edge-cost terms. They must be non-negative and sum
// to 1.0; NewOptimizer enforces this.
type Weights struct {
	Distance float64 `yaml:"distance" json:"distance"`
	Battery  float64 `yaml:"battery" json:"battery"`
	Wind     float64 `yaml:"wind" json:"wind"`
	Safety   float64 `yaml:"safety" json:"safety"`
}

// DefaultWeights favor distance and battery equally, with wind and safety
// as secondary concerns.
func DefaultWeights() Weights {
	return Weights{Distance: 0.3, Battery: 0.3, Wind: 0.2, Safety: 0.2}
}

// Validate checks that every weight is non-negative and the sum is 1.0
// within floating-point tolerance.
func (w Weights) Validate() error {
	for _, pair := range []struct {
		name string
		v    float64
	}{
		{"distance", w.Distance},
		{"battery", w.Battery},
		{"wind", w.Wind},
		{"safety", w.Safety},
	} {
		if pair.v < 0 {
			return fmt.Errorf("weight %s must not be negative, got %g", pair.name, pair.v)
		}
	}
	sum := w.Distance + w.Battery + w.Wind + w.Safety
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("weights must sum to 1.0, got %g", sum)
	}
	return nil
}

// edgeCost is the weighted cost of moving between two adjacent grid cells.
//
// The battery term is an altitude-change proxy; planar motion is free in it.
// The wind term kicks in above 5 m/s. The safety term grows linearly as the
// destination approaches a zone's buffered envelope.
func (o *Optimizer) edgeCost(from, to geo.Point, cons *Constraints, wx *Weather) float64 {
	cost := geo.Distance(from, to) * o.weights.Distance

	cost += math.Abs(to.AltM-from.AltM) * 0.5 * o.weights.Battery

	if wx != nil && wx.WindSpeedMS > calmWindMS {
		cost += (wx.WindSpeedMS - calmWindMS) * 10 * o.weights.Wind
	}

	for _, z := range cons.NoFlyZones {
		envelope := z.RadiusM + cons.SafetyBufferM
		if d := geo.Distance(to, z.Center); d < envelope {
			cost += (envelope - d) / 100 * o.weights.Safety
		}
	}

	return cost
}

// heuristic is the plain great-circle distance to the goal. It is admissible
// for the distance term only; the wind, battery and safety components are
// not estimated, so the search trades strict optimality for speed.
func heuristic(p, goal geo.Point) float64 {
	return geo.Distance(p, goal)
}
