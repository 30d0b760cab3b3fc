package recoil

// Range is an inclusive (min, max) interval for one coordinate of one
// control point. A pinned point has Min == Max.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Clamp limits v to the range.
func (r Range) Clamp(v float64) float64 {
	v, _ = clamp(v, r.Min, r.Max)
	return v
}

// Bounds holds per-point search-space limits for a solution's x and y
// coordinates. Edge points are typically pinned asymmetrically: the first
// and last x are fixed to the profile's global depth bounds.
type Bounds struct {
	X []Range
	Y []Range
}

// DefaultBounds returns bounds for an n-point solution over the default
// depth range: edge x pinned, interior x free over (0, max depth), all y
// free over the concentration range except the next-to-last point, which
// stays at the minimum so the profile tails off.
func DefaultBounds(n int) Bounds {
	b := Bounds{X: make([]Range, n), Y: make([]Range, n)}
	for i := range b.X {
		switch i {
		case 0:
			b.X[i] = Range{Min: DefaultMinX, Max: DefaultMinX}
		case n - 1:
			b.X[i] = Range{Min: DefaultMaxX, Max: DefaultMaxX}
		default:
			b.X[i] = Range{Min: 0.01, Max: DefaultMaxX}
		}
		b.Y[i] = Range{Min: MinY, Max: MaxY}
	}
	if n >= 2 {
		b.Y[n-2] = Range{Min: MinY, Max: MinY}
	}
	return b
}
