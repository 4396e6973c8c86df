package opt

import (
	"fmt"
	"math"
	"math/rand"
)

// BoundPolicy decides what happens to trial components that leave the box.
type BoundPolicy string

const (
	// BoundPenalize keeps out-of-bound components and leaves it to the
	// objective to penalize them.
	BoundPenalize BoundPolicy = "penalize"
	// BoundClip clamps components onto the nearest bound.
	BoundClip BoundPolicy = "clip"
	// BoundResample redraws offending components uniformly within bounds,
	// so every population member stays a valid allocation.
	BoundResample BoundPolicy = "resample"
)

// ParseBoundPolicy validates a policy name. Empty means BoundResample.
func ParseBoundPolicy(s string) (BoundPolicy, error) {
	switch p := BoundPolicy(s); p {
	case "":
		return BoundResample, nil
	case BoundPenalize, BoundClip, BoundResample:
		return p, nil
	default:
		return "", fmt.Errorf("unknown bound policy: %s", s)
	}
}

// apply enforces the policy on x in place.
func (p BoundPolicy) apply(x, lower, upper []float64, rng *rand.Rand) {
	switch p {
	case BoundClip:
		clampVector(x, lower, upper)
	case BoundResample:
		for i := range x {
			if x[i] < lower[i] || x[i] > upper[i] {
				x[i] = uniform(rng, lower[i], upper[i])
			}
		}
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func randomVector(rng *rand.Rand, lower, upper []float64) []float64 {
	x := make([]float64, len(lower))
	for i := range x {
		x[i] = uniform(rng, lower[i], upper[i])
	}
	return x
}

func clampVector(x, lower, upper []float64) {
	for i := range x {
		x[i] = clamp(x[i], lower[i], upper[i])
	}
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}
