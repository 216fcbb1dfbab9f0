package network

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// PiecewiseConstant samples from a piecewise-constant distribution: an
// interval is chosen with probability proportional to its weight, then a value
// is drawn uniformly within it. Intervals are defined by len(weights)+1
// boundary points.
type PiecewiseConstant struct {
	intervals []float64
	weights   []uint64
	total     uint64
}

// NewPiecewiseConstant validates the boundaries and weights and returns the
// distribution.
func NewPiecewiseConstant(weights []uint64, intervals []float64) (*PiecewiseConstant, error) {
	if len(intervals) != len(weights)+1 {
		return nil, fmt.Errorf("piecewise constant: %d intervals for %d weights", len(intervals), len(weights))
	}
	var total uint64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return nil, errors.New("piecewise constant: all weights are zero")
	}
	for i := 1; i < len(intervals); i++ {
		if intervals[i] <= intervals[i-1] {
			return nil, errors.New("piecewise constant: interval boundaries must be strictly increasing")
		}
	}
	return &PiecewiseConstant{intervals: intervals, weights: weights, total: total}, nil
}

// Sample draws a value from the distribution.
func (p *PiecewiseConstant) Sample(rng *rand.Rand) float64 {
	pick := rng.Uint64() % p.total
	var cumulative uint64
	for i, w := range p.weights {
		cumulative += w
		if pick < cumulative {
			lo, hi := p.intervals[i], p.intervals[i+1]
			return lo + rng.Float64()*(hi-lo)
		}
	}
	// Unreachable: total is the sum of all weights.
	return p.intervals[len(p.intervals)-1]
}

// samplePareto draws from a Pareto distribution with the given scale (minimum
// value) and shape via inverse transform sampling.
func samplePareto(rng *rand.Rand, scale, shape float64) float64 {
	u := rng.Float64()
	for u == 0 {
		u = rng.Float64()
	}
	return scale / math.Pow(u, 1/shape)
}
