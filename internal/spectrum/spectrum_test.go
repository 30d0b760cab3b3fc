package spectrum

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// grid builds a spectrum with samples at start, start+width, ... for n
// samples, all with the given y.
func grid(start, width float64, n int, y float64) Spectrum {
	s := make(Spectrum, n)
	for i := range s {
		s[i] = Sample{X: round4(start + float64(i)*width), Y: y}
	}
	return s
}

func TestAlign(t *testing.T) {
	tests := []struct {
		name string
		a, b Spectrum
	}{
		{
			name: "b starts earlier",
			a:    grid(2.0, 0.5, 4, 1.0),
			b:    grid(0.0, 0.5, 8, 2.0),
		},
		{
			name: "a ends later",
			a:    grid(0.0, 0.5, 10, 1.0),
			b:    grid(0.0, 0.5, 4, 2.0),
		},
		{
			name: "disjoint ranges",
			a:    grid(0.0, 0.5, 3, 1.0),
			b:    grid(5.0, 0.5, 3, 2.0),
		},
		{
			name: "already aligned",
			a:    grid(0.0, 0.5, 6, 1.0),
			b:    grid(0.0, 0.5, 6, 2.0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := Align(tt.a, tt.b, 0.5)

			if len(a) != len(b) {
				t.Fatalf("lengths differ after alignment: %d vs %d", len(a), len(b))
			}
			if a[0].X != b[0].X {
				t.Fatalf("first x differ: %v vs %v", a[0].X, b[0].X)
			}
			if a[len(a)-1].X != b[len(b)-1].X {
				t.Fatalf("last x differ: %v vs %v", a[len(a)-1].X, b[len(b)-1].X)
			}
			for i := 1; i < len(a); i++ {
				if a[i].X <= a[i-1].X {
					t.Fatalf("a not sorted at %d: %v <= %v", i, a[i].X, a[i-1].X)
				}
			}
		})
	}
}

func TestAlignIsIdempotent(t *testing.T) {
	a := grid(1.0, 0.5, 4, 1.0)
	b := grid(0.0, 0.5, 10, 2.0)

	a1, b1 := Align(a, b, 0.5)
	a2, b2 := Align(a1, b1, 0.5)

	if len(a2) != len(a1) || len(b2) != len(b1) {
		t.Fatalf("re-alignment changed lengths: %d->%d, %d->%d",
			len(a1), len(a2), len(b1), len(b2))
	}
}

func TestAlignPadsWithZeros(t *testing.T) {
	a := grid(2.0, 1.0, 3, 5.0)
	b := grid(0.0, 1.0, 5, 1.0)

	a2, _ := Align(a, b, 1.0)

	if a2[0].X != 0.0 || a2[0].Y != 0.0 {
		t.Fatalf("leading pad = %+v, want zero sample at x=0", a2[0])
	}
	if a2[1].Y != 0.0 {
		t.Fatalf("second pad sample y = %v, want 0", a2[1].Y)
	}
	// The original samples are untouched.
	if a2[2] != a[0] {
		t.Fatalf("first original sample moved: %+v vs %+v", a2[2], a[0])
	}
}

func TestAlignDoesNotMutateInputs(t *testing.T) {
	a := grid(2.0, 1.0, 3, 5.0)
	b := grid(0.0, 1.0, 5, 1.0)

	Align(a, b, 1.0)

	if len(a) != 3 || a[0].X != 2.0 {
		t.Fatalf("input mutated: %+v", a)
	}
}

func TestDifference(t *testing.T) {
	a := Spectrum{{0, 1}, {1, 3}, {2, 1}}
	b := Spectrum{{0, 1}, {1, 1}, {2, 1}}

	tests := []struct {
		name string
		mode DiffMode
		want float64
	}{
		// |dy| is the triangle (0, 2, 0) over x spacing 1.
		{name: "area", mode: ModeArea, want: 2.0},
		// (0 + 4 + 0) / 3.
		{name: "pointwise", mode: ModePointwise, want: 4.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Difference(a, b, tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("got %v, want %v", got, tt.want)
			}

			// The measure is symmetric and zero on identical inputs.
			rev, err := Difference(b, a, tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			if rev != got {
				t.Fatalf("asymmetric: %v vs %v", got, rev)
			}
			self, err := Difference(a, a, tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			if self != 0 {
				t.Fatalf("self-difference = %v, want 0", self)
			}
		})
	}
}

func TestDifferenceErrors(t *testing.T) {
	a := grid(0, 1, 3, 1)
	b := grid(0, 1, 4, 1)

	if _, err := Difference(a, b, ModeArea); err == nil {
		t.Fatal("expected an error for unaligned spectra")
	}
	if _, err := Difference(nil, nil, ModeArea); err == nil {
		t.Fatal("expected an error for empty spectra")
	}
	if _, err := Difference(a, a, DiffMode(42)); err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
}

func TestDifferenceSingleSample(t *testing.T) {
	a := Spectrum{{X: 1, Y: 3}}
	b := Spectrum{{X: 1, Y: 1}}

	got, err := Difference(a, b, ModeArea)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2.0 {
		t.Fatalf("got %v, want 2", got)
	}
}

func TestFindPeaks(t *testing.T) {
	// Two peaks of different height on a flat baseline, plus ripple that
	// must be filtered out by the prominence threshold.
	var s Spectrum
	for x := 0.0; x <= 100.0; x++ {
		y := 0.1
		switch {
		case x == 20:
			y = 1.0
		case x == 70:
			y = 0.6
		case x == 40:
			y = 0.15 // ripple
		}
		s = append(s, Sample{X: x, Y: y})
	}

	tests := []struct {
		name          string
		minProminence float64
		maxCount      int
		want          []float64
	}{
		{name: "both peaks", minProminence: 0.2, maxCount: 0, want: []float64{20, 70}},
		{name: "highest only", minProminence: 0.2, maxCount: 1, want: []float64{20}},
		{name: "ripple included", minProminence: 0.01, maxCount: 0, want: []float64{20, 40, 70}},
		{name: "threshold excludes all", minProminence: 2.0, maxCount: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindPeaks(s, tt.minProminence, tt.maxCount)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestFindPeaksPlateau(t *testing.T) {
	s := Spectrum{
		{0, 0}, {1, 0}, {2, 1}, {3, 1}, {4, 1}, {5, 0}, {6, 0},
	}

	got := FindPeaks(s, 0.5, 0)
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("got %v, want the plateau midpoint [3]", got)
	}
}

func TestFindPeaksIgnoresEdges(t *testing.T) {
	// Monotone spectra have no interior maxima.
	s := grid(0, 1, 5, 0)
	for i := range s {
		s[i].Y = float64(i)
	}

	if got := FindPeaks(s, 0.0, 0); len(got) != 0 {
		t.Fatalf("got %v, want no peaks", got)
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "espe.txt")
	s := Spectrum{{0, 0.1}, {0.025, 0.5}, {0.05, 0.25}}

	if err := WriteFile(path, s); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(s) {
		t.Fatalf("got %d samples, want %d", len(got), len(s))
	}
	for i := range s {
		if got[i] != s[i] {
			t.Fatalf("sample %d = %+v, want %+v", i, got[i], s[i])
		}
	}
}

func TestReadFileBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	if err := os.WriteFile(path, []byte("0 1\nnot-a-number 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadFile(path); err == nil {
		t.Fatal("expected an error for a malformed line")
	}
}
