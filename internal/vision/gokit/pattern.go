package gokit

import (
	"math"

	"golang.org/x/exp/rand"
)

type patternPair struct {
	a, b [2]float64
}

// briefPattern draws 256 test pairs from an isotropic Gaussian with
// sigma = patchSize/5, clipped to the patch. The same seed always yields
// the same pattern.
func briefPattern(seed uint64) []patternPair {
	rng := rand.New(rand.NewSource(seed))
	sigma := float64(patchSize) / 5
	draw := func() [2]float64 {
		clip := func(v float64) float64 {
			return math.Max(-halfPatch, math.Min(halfPatch, math.Round(v)))
		}
		return [2]float64{clip(rng.NormFloat64() * sigma), clip(rng.NormFloat64() * sigma)}
	}

	out := make([]patternPair, descBytes*8)
	for i := range out {
		a, b := draw(), draw()
		for a == b {
			b = draw()
		}
		out[i] = patternPair{a: a, b: b}
	}
	return out
}
