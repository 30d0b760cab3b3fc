package spectrum

import (
	"math"
	"sort"
)

// peak is a detected local maximum candidate.
type peak struct {
	index      int
	prominence float64
}

// FindPeaks locates local maxima in a spectrum and returns their x
// positions in ascending order. Candidates are ranked by topographic
// prominence; those below minProminence are discarded and at most maxCount
// are returned (maxCount <= 0 means no limit).
func FindPeaks(s Spectrum, minProminence float64, maxCount int) []float64 {
	var candidates []peak
	n := len(s)

	for i := 0; i < n; i++ {
		// Plateau-aware local maximum: strictly rising into the
		// plateau, strictly falling out of it.
		j := i
		for j+1 < n && s[j+1].Y == s[i].Y {
			j++
		}
		leftRises := i == 0 || s[i-1].Y < s[i].Y
		rightFalls := j == n-1 || s[j+1].Y < s[j].Y
		if i > 0 && j < n-1 && leftRises && rightFalls {
			mid := (i + j) / 2
			candidates = append(candidates, peak{
				index:      mid,
				prominence: prominence(s, mid),
			})
		}
		i = j
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.prominence >= minProminence {
			kept = append(kept, c)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		return kept[i].prominence > kept[j].prominence
	})
	if maxCount > 0 && len(kept) > maxCount {
		kept = kept[:maxCount]
	}

	xs := make([]float64, len(kept))
	for i, c := range kept {
		xs[i] = s[c.index].X
	}
	sort.Float64s(xs)
	return xs
}

// prominence measures how far a peak rises above its surroundings: the
// height over the higher of the two key saddles found walking outward until
// a taller sample or the spectrum edge.
func prominence(s Spectrum, i int) float64 {
	h := s[i].Y

	leftMin := h
	for j := i - 1; j >= 0; j-- {
		if s[j].Y > h {
			break
		}
		leftMin = math.Min(leftMin, s[j].Y)
	}

	rightMin := h
	for j := i + 1; j < len(s); j++ {
		if s[j].Y > h {
			break
		}
		rightMin = math.Min(rightMin, s[j].Y)
	}

	return h - math.Max(leftMin, rightMin)
}
