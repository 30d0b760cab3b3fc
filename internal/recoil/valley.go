package recoil

// Valley is a local concentration minimum: the left and right low points of
// the owning solution, referenced by index. prev and next index the nearest
// points outside the valley (-1 at the profile edges).
type Valley struct {
	sol *Solution

	ll, rl     int
	prev, next int
}

// Center returns the midpoint of the two low points.
func (v *Valley) Center() Point {
	ll := v.sol.points[v.ll]
	rl := v.sol.points[v.rl]
	return Point{X: (ll.X + rl.X) / 2, Y: (ll.Y + rl.Y) / 2}
}

// Points returns the valley's points in profile order, skipping absent ones.
func (v *Valley) Points() []Point {
	var out []Point
	for _, i := range []int{v.prev, v.ll, v.rl, v.next} {
		if i >= 0 {
			out = append(out, v.sol.points[i])
		}
	}
	return out
}

// MoveY shifts both low points vertically. The valley is kept below its
// neighbouring points and within the concentration bounds; reports whether
// the move was clipped.
func (v *Valley) MoveY(amount float64) bool {
	if amount == 0 {
		return false
	}
	ceil := MaxY
	if v.prev >= 0 && v.sol.points[v.prev].Y < ceil {
		ceil = v.sol.points[v.prev].Y
	}
	if v.next >= 0 && v.sol.points[v.next].Y < ceil {
		ceil = v.sol.points[v.next].Y
	}

	clipped := false
	for _, i := range []int{v.ll, v.rl} {
		y, c := clamp(v.sol.points[i].Y+amount, MinY, ceil)
		v.sol.points[i].Y = y
		clipped = clipped || c
	}
	return clipped
}

// SetY moves the valley so its center height lands on y, subject to the
// same clamps as MoveY.
func (v *Valley) SetY(y float64) bool {
	return v.MoveY(y - v.Center().Y)
}
