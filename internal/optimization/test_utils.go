package optimization

import (
	"context"
	"math"
	"testing"

	"github.com/tpitkanen/potku/internal/spectrum"
)

// StaticMeasurement is a measurement source backed by an in-memory
// spectrum, for tests and for callers that already hold the measured data.
type StaticMeasurement struct {
	Spectrum spectrum.Spectrum
	Cut      string
	Err      error
}

// MeasuredSpectrum returns the held spectrum or the configured error.
func (m *StaticMeasurement) MeasuredSpectrum(context.Context) (spectrum.Spectrum, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Spectrum.Clone(), nil
}

// CutFile returns the measured-data reference key.
func (m *StaticMeasurement) CutFile() string {
	if m.Cut == "" {
		return "measurement.cut"
	}
	return m.Cut
}

// FlatSpectrum builds an n-sample spectrum with constant intensity y and
// the given channel width, starting at x = 0.
func FlatSpectrum(n int, channelWidth, y float64) spectrum.Spectrum {
	s := make(spectrum.Spectrum, n)
	for i := range s {
		s[i] = spectrum.Sample{X: float64(i) * channelWidth, Y: y}
	}
	return s
}

// assertNear fails the test when got is not within tol of want.
func assertNear(t *testing.T, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("got %v, want %v (tolerance %v)", got, want, tol)
	}
}
