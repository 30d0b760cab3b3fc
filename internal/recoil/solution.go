package recoil

import (
	"errors"
	"fmt"
)

// Profile-wide default bounds. Depths are nm, concentrations are fractions.
const (
	DefaultMinX = 0.0
	DefaultMaxX = 120.0
	MinY        = 0.0001
	MaxY        = 1.0
)

// Kind identifies a supported solution shape.
type Kind int

const (
	// KindBox4 is reserved for a 4-point box profile (not implemented).
	KindBox4 Kind = iota
	// KindBox6 is a 6-point box profile: one peak between two valleys.
	KindBox6
	// KindPeak8 is an 8-point two-peak profile.
	KindPeak8
	// KindPeak10 is reserved for a 10-point double-peak profile (not
	// implemented).
	KindPeak10
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindBox4:
		return "box4"
	case KindBox6:
		return "box6"
	case KindPeak8:
		return "peak8"
	case KindPeak10:
		return "peak10"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrUnsupportedShape is returned for solution shapes that are reserved but
// not implemented. Callers must not receive a partially built solution.
var ErrUnsupportedShape = errors.New("unsupported solution shape")

// ErrInvalidShape is returned when a point sequence matches no known shape.
var ErrInvalidShape = errors.New("invalid solution shape")

// Solution is an ordered point sequence covering the full depth range,
// partitioned into peaks and valleys that share boundary points. Peaks and
// valleys reference points by index into the owning solution's sequence, so
// point ownership stays with the solution.
type Solution struct {
	kind    Kind
	points  []Point
	peaks   []Peak
	valleys []Valley
}

// FromPoints assembles a solution from an ordered point sequence, selecting
// the shape by point count. Reserved counts (4, 10) fail with
// ErrUnsupportedShape; any other unknown count fails with ErrInvalidShape.
func FromPoints(points []Point) (*Solution, error) {
	switch len(points) {
	case 4:
		return nil, fmt.Errorf("%w: 4-point box", ErrUnsupportedShape)
	case 6:
		return NewBox6(points)
	case 8:
		return NewPeak8(points)
	case 10:
		return nil, fmt.Errorf("%w: 10-point double-peak", ErrUnsupportedShape)
	default:
		return nil, fmt.Errorf("%w: %d points", ErrInvalidShape, len(points))
	}
}

// NewBox6 builds a 6-point box solution: valley, peak, valley.
func NewBox6(points []Point) (*Solution, error) {
	if len(points) != 6 {
		return nil, fmt.Errorf("%w: box6 needs 6 points, got %d",
			ErrInvalidShape, len(points))
	}
	if err := checkOrdering(points); err != nil {
		return nil, err
	}

	s := &Solution{kind: KindBox6, points: clonePoints(points)}
	s.valleys = []Valley{
		{sol: s, ll: 0, rl: 1, prev: -1, next: 2},
		{sol: s, ll: 4, rl: 5, prev: 3, next: -1},
	}
	s.peaks = []Peak{
		{sol: s, ll: 1, lh: 2, rh: 3, rl: 4, prev: 0, next: 5},
	}
	return s, nil
}

// NewPeak8 builds an 8-point two-peak solution with the first peak at the
// surface (no left-low point).
func NewPeak8(points []Point) (*Solution, error) {
	if len(points) != 8 {
		return nil, fmt.Errorf("%w: peak8 needs 8 points, got %d",
			ErrInvalidShape, len(points))
	}
	if err := checkOrdering(points); err != nil {
		return nil, err
	}

	s := &Solution{kind: KindPeak8, points: clonePoints(points)}
	s.peaks = []Peak{
		{sol: s, ll: -1, lh: 0, rh: 1, rl: 2, prev: -1, next: 3},
		{sol: s, ll: 3, lh: 4, rh: 5, rl: 6, prev: 2, next: 7},
	}
	s.valleys = []Valley{
		{sol: s, ll: 2, rl: 3, prev: 1, next: 4},
		{sol: s, ll: 6, rl: 7, prev: 5, next: -1},
	}
	return s, nil
}

// Box6Window returns a box6 solution whose concentration is at the maximum
// between x1 and x2 and at the minimum elsewhere, spanning the default depth
// range.
func Box6Window(x1, x2 float64) *Solution {
	points := []Point{
		{X: DefaultMinX, Y: MinY},
		{X: x1, Y: MinY},
		{X: x1 + 0.01, Y: MaxY},
		{X: x2 - 0.001, Y: MaxY},
		{X: x2, Y: MinY},
		{X: DefaultMaxX, Y: MinY},
	}
	s, err := NewBox6(points)
	if err != nil {
		// The window points are ordered by construction for any
		// 0 < x1 < x2 < DefaultMaxX.
		panic(err)
	}
	return s
}

// Kind returns the solution's shape.
func (s *Solution) Kind() Kind { return s.kind }

// Len returns the number of control points.
func (s *Solution) Len() int { return len(s.points) }

// Points returns a copy of the point sequence.
func (s *Solution) Points() []Point { return clonePoints(s.points) }

// PointAt returns the point at index i.
func (s *Solution) PointAt(i int) Point { return s.points[i] }

// Peaks returns views of the solution's peaks. The views alias the
// solution's points.
func (s *Solution) Peaks() []*Peak {
	out := make([]*Peak, len(s.peaks))
	for i := range s.peaks {
		out[i] = &s.peaks[i]
	}
	return out
}

// Valleys returns views of the solution's valleys.
func (s *Solution) Valleys() []*Valley {
	out := make([]*Valley, len(s.valleys))
	for i := range s.valleys {
		out[i] = &s.valleys[i]
	}
	return out
}

// Clone returns an independent copy of the solution.
func (s *Solution) Clone() *Solution {
	c, err := FromPoints(s.points)
	if err != nil {
		panic(err)
	}
	return c
}

// checkOrdering verifies x-monotonicity over the whole point sequence.
func checkOrdering(points []Point) error {
	for i := 1; i < len(points); i++ {
		if points[i].X < points[i-1].X {
			return fmt.Errorf("%w: x not monotonic at index %d (%.4f < %.4f)",
				ErrInvalidShape, i, points[i].X, points[i-1].X)
		}
	}
	return nil
}

func clonePoints(points []Point) []Point {
	return append([]Point(nil), points...)
}

// movePointX shifts one point in x, clamped to its immediate neighbours in
// the arena so the ordering invariant cannot break. The first and last
// points are pinned to the profile bounds.
func (s *Solution) movePointX(i int, amount float64) bool {
	if i <= 0 || i >= len(s.points)-1 {
		return amount != 0
	}
	lo := s.points[i-1].X
	hi := s.points[i+1].X
	x, clipped := clamp(s.points[i].X+amount, lo, hi)
	s.points[i].X = x
	return clipped
}
