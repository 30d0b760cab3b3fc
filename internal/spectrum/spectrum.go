// Package spectrum provides energy-spectrum types, alignment of two spectra
// onto a common x-grid, and scalar discrepancy measures between them.
package spectrum

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
)

// Sample is one (x, y) point of an energy spectrum. x is energy or the
// equivalent depth-mapped unit, y is the counted intensity.
type Sample struct {
	X float64
	Y float64
}

// Spectrum is an ordered sequence of samples, sorted ascending by x and
// evenly or near-evenly spaced.
type Spectrum []Sample

// Xs returns the sample x values.
func (s Spectrum) Xs() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.X
	}
	return out
}

// Ys returns the sample y values.
func (s Spectrum) Ys() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Y
	}
	return out
}

// Clone returns an independent copy of the spectrum.
func (s Spectrum) Clone() Spectrum {
	return append(Spectrum(nil), s...)
}

// DiffMode selects how Difference reduces two aligned spectra to a scalar.
type DiffMode int

const (
	// ModePointwise is the mean squared error of the pairwise y values.
	ModePointwise DiffMode = iota
	// ModeArea integrates the absolute pointwise difference over x.
	ModeArea
)

// round4 matches the grid rounding used by spectrum files: padded x values
// are kept to four decimals so grids stay comparable across tools.
func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Align pads the shorter-range spectrum at its leading and/or trailing edge
// with zero-valued samples spaced by channelWidth until both spectra share
// the same x-range. It never truncates and never inserts within the
// overlapping region; aligning an already-aligned pair is a no-op. Both
// inputs must be non-empty and sorted ascending by x.
func Align(a, b Spectrum, channelWidth float64) (Spectrum, Spectrum) {
	a, b = a.Clone(), b.Clone()

	// Leading edges.
	if b[0].X < a[0].X {
		a = padFront(a, b[0].X, channelWidth)
	} else if a[0].X < b[0].X {
		b = padFront(b, a[0].X, channelWidth)
	}

	// Trailing edges.
	if b[len(b)-1].X < a[len(a)-1].X {
		b = padBack(b, a[len(a)-1].X, channelWidth)
	} else if a[len(a)-1].X < b[len(b)-1].X {
		a = padBack(a, b[len(b)-1].X, channelWidth)
	}

	return a, b
}

func padFront(s Spectrum, until, width float64) Spectrum {
	var pad Spectrum
	for x := round4(s[0].X - width); x >= until; x = round4(x - width) {
		pad = append(pad, Sample{X: x})
	}
	// pad was built walking down from the first sample, so reverse it.
	for i, j := 0, len(pad)-1; i < j; i, j = i+1, j-1 {
		pad[i], pad[j] = pad[j], pad[i]
	}
	return append(pad, s...)
}

func padBack(s Spectrum, until, width float64) Spectrum {
	for x := round4(s[len(s)-1].X + width); x <= until; x = round4(x + width) {
		s = append(s, Sample{X: x})
	}
	return s
}

// Difference reduces two equal-length, x-aligned spectra to a scalar
// discrepancy. Lower is better and the result is non-negative for both
// modes. The equal-length precondition is what Align guarantees.
func Difference(a, b Spectrum, mode DiffMode) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("spectra not aligned: %d vs %d samples", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty spectra")
	}

	switch mode {
	case ModeArea:
		xs := make([]float64, len(a))
		ys := make([]float64, len(a))
		for i := range a {
			xs[i] = a[i].X
			ys[i] = math.Abs(a[i].Y - b[i].Y)
		}
		if len(a) == 1 {
			return ys[0], nil
		}
		return integrate.Trapezoidal(xs, ys), nil
	case ModePointwise:
		var sum float64
		for i := range a {
			d := a[i].Y - b[i].Y
			sum += d * d
		}
		return sum / float64(len(a)), nil
	default:
		return 0, fmt.Errorf("unknown difference mode %d", mode)
	}
}
