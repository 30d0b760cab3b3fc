package recoil

// Peak is a local concentration maximum: up to five cooperating points of
// the owning solution, referenced by index. ll and rl are -1 when the
// profile edge takes the place of a low point; prev and next index the
// nearest points outside the peak and act as movement clamps (-1 at the
// profile edges).
type Peak struct {
	sol *Solution

	ll, lh, rh, rl int
	prev, next     int
}

// Center returns the midpoint of the two high points.
func (p *Peak) Center() Point {
	lh := p.sol.points[p.lh]
	rh := p.sol.points[p.rh]
	return Point{X: (lh.X + rh.X) / 2, Y: (lh.Y + rh.Y) / 2}
}

// Points returns the peak's points in profile order, skipping absent ones.
func (p *Peak) Points() []Point {
	var out []Point
	for _, i := range []int{p.prev, p.ll, p.lh, p.rh, p.rl, p.next} {
		if i >= 0 {
			out = append(out, p.sol.points[i])
		}
	}
	return out
}

// MoveX shifts the peak horizontally. The low/high pairs move together and
// each point is clamped at its neighbour's coordinate; a pair whose low
// point or outer clamp is the profile edge does not move. Reports whether
// any point was clipped, so callers can detect infeasible moves.
func (p *Peak) MoveX(amount float64) bool {
	if amount == 0 {
		return false
	}

	leftPair := []int{p.ll, p.lh}
	rightPair := []int{p.rh, p.rl}
	moveLeft := p.ll >= 0 && p.prev >= 0
	moveRight := p.rl >= 0 && p.next >= 0

	var order []int
	if amount > 0 {
		// Right to left so a point never runs into an unmoved pair member.
		if moveRight {
			order = append(order, rightPair[1], rightPair[0])
		}
		if moveLeft {
			order = append(order, leftPair[1], leftPair[0])
		}
	} else {
		if moveLeft {
			order = append(order, leftPair[0], leftPair[1])
		}
		if moveRight {
			order = append(order, rightPair[0], rightPair[1])
		}
	}

	clipped := false
	for _, i := range order {
		if p.sol.movePointX(i, amount) {
			clipped = true
		}
	}
	return clipped
}

// MoveY shifts both high points vertically. The peak is kept above its low
// points and within the concentration bounds; reports whether the move was
// clipped.
func (p *Peak) MoveY(amount float64) bool {
	if amount == 0 {
		return false
	}
	floor := MinY
	if p.ll >= 0 && p.sol.points[p.ll].Y > floor {
		floor = p.sol.points[p.ll].Y
	}
	if p.rl >= 0 && p.sol.points[p.rl].Y > floor {
		floor = p.sol.points[p.rl].Y
	}

	clipped := false
	for _, i := range []int{p.lh, p.rh} {
		y, c := clamp(p.sol.points[i].Y+amount, floor, MaxY)
		p.sol.points[i].Y = y
		clipped = clipped || c
	}
	return clipped
}

// SetX moves the peak so its center lands on x, subject to the same clamps
// as MoveX.
func (p *Peak) SetX(x float64) bool {
	return p.MoveX(x - p.Center().X)
}

// SetY moves the peak so its center height lands on y, subject to the same
// clamps as MoveY.
func (p *Peak) SetY(y float64) bool {
	return p.MoveY(y - p.Center().Y)
}
