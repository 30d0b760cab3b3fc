package simulation

import (
	"context"
	"sync/atomic"

	"github.com/tpitkanen/potku/internal/recoil"
	"github.com/tpitkanen/potku/internal/spectrum"
)

// EchoSimulator is a solver stand-in that samples the candidate's own
// recoil profile onto the requested channel grid. A measured spectrum equal
// to a candidate's profile therefore scores (near) zero against it. Used in
// tests and when no solver binary is configured.
type EchoSimulator struct {
	// MaxDepth bounds the sampled grid; defaults to the profile range.
	MaxDepth float64

	calls   atomic.Int64
	cleaned atomic.Int64
}

// CalculateSpectrum samples the recoil profile by linear interpolation at
// channel-width spacing.
func (e *EchoSimulator) CalculateSpectrum(_ context.Context, req Request) (spectrum.Spectrum, error) {
	e.calls.Add(1)

	points := req.Recoil.Points
	maxDepth := e.MaxDepth
	if maxDepth == 0 && len(points) > 0 {
		maxDepth = points[len(points)-1].X
	}

	var s spectrum.Spectrum
	for x := 0.0; x <= maxDepth; x += req.ChannelWidth {
		s = append(s, spectrum.Sample{X: x, Y: interpolate(points, x)})
	}
	return s, nil
}

// CleanUp records the call; there are no processes to terminate.
func (e *EchoSimulator) CleanUp(context.Context) error {
	e.cleaned.Add(1)
	return nil
}

// Calls returns how many spectra were calculated.
func (e *EchoSimulator) Calls() int { return int(e.calls.Load()) }

// CleanUps returns how many times CleanUp was invoked.
func (e *EchoSimulator) CleanUps() int { return int(e.cleaned.Load()) }

// interpolate evaluates the piecewise-linear profile at depth x; zero
// outside the profile range.
func interpolate(points []recoil.Point, x float64) float64 {
	if len(points) == 0 || x < points[0].X || x > points[len(points)-1].X {
		return 0
	}
	for i := 1; i < len(points); i++ {
		if x > points[i].X {
			continue
		}
		p0, p1 := points[i-1], points[i]
		if p1.X == p0.X {
			return p1.Y
		}
		t := (x - p0.X) / (p1.X - p0.X)
		return p0.Y + t*(p1.Y-p0.Y)
	}
	return points[len(points)-1].Y
}
