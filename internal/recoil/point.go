// Package recoil models parametric recoil depth profiles: ordered point
// sequences partitioned into peaks and valleys, and the recoil elements
// that bind a profile to an element for simulation.
package recoil

import "fmt"

// Point is a single control point of a recoil profile.
// X is depth in nm, Y is relative concentration (a bounded fraction).
// Points are mutated in place when a profile is edited.
type Point struct {
	X float64
	Y float64
}

// String formats the point the way profile files store it. Depths keep
// three decimals so the 0.001-offset control points of window profiles
// stay distinct from their neighbours.
func (p Point) String() string {
	return fmt.Sprintf("%.3f %.4f", p.X, p.Y)
}

func clamp(v, lo, hi float64) (float64, bool) {
	if v < lo {
		return lo, true
	}
	if v > hi {
		return hi, true
	}
	return v, false
}
