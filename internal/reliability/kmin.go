// Package reliability computes voting margins from per-step accuracy.
//
// For a per-step success rate p > 0.5 the probability that first-to-ahead-by-k
// voting settles on a wrong action is at most r^k with r = (1-p)/p. A union
// bound over s steps then gives an end-to-end failure probability of at most
// s·r^k, which EstimateKMin inverts.
package reliability

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInfeasibleReliability is returned when the per-step success rate is
	// not above one half. No margin can make such a generator reliable.
	ErrInfeasibleReliability = errors.New("per-step success rate must be greater than 0.5")

	// ErrInvalidArgument is returned for out-of-range inputs.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ceilEpsilon absorbs floating point noise when the ratio is an exact integer.
const ceilEpsilon = 1e-9

// EstimateKMin returns the smallest k such that numSteps·((1-p)/p)^k does not
// exceed 1-target. The result is at least 1.
//
// p <= 0.5 always yields ErrInfeasibleReliability, before any other argument is
// checked.
func EstimateKMin(numSteps int, p, target float64) (int, error) {
	if math.IsNaN(p) || p <= 0.5 {
		return 0, fmt.Errorf("%w: got %v", ErrInfeasibleReliability, p)
	}
	if p > 1 {
		return 0, fmt.Errorf("%w: per-step success rate %v exceeds 1", ErrInvalidArgument, p)
	}
	if numSteps < 1 {
		return 0, fmt.Errorf("%w: num_steps must be >= 1, got %d", ErrInvalidArgument, numSteps)
	}
	if math.IsNaN(target) || target < 0 || target >= 1 {
		return 0, fmt.Errorf("%w: target success rate must be in [0, 1), got %v", ErrInvalidArgument, target)
	}
	if p == 1 {
		return 1, nil
	}

	// Both logarithms are negative once (1-target)/numSteps < 1.
	num := math.Log((1 - target) / float64(numSteps))
	den := math.Log((1 - p) / p)
	k := int(math.Ceil(num/den - ceilEpsilon))
	if k < 1 {
		k = 1
	}
	return k, nil
}

// ErrorBound returns ((1-p)/p)^k, the bound on choosing a wrong action at one
// step.
func ErrorBound(p float64, k int) float64 {
	if p <= 0.5 {
		return 1
	}
	if p >= 1 {
		return 0
	}
	return math.Pow((1-p)/p, float64(k))
}

// SuccessLowerBound returns max(0, 1 - numSteps·ErrorBound(p, k)).
func SuccessLowerBound(numSteps int, p float64, k int) float64 {
	if numSteps <= 0 {
		return 1
	}
	return math.Max(0, 1-float64(numSteps)*ErrorBound(p, k))
}

// RecommendK is a step-count heuristic for a starting margin when the
// per-step success rate is unknown.
func RecommendK(numSteps int) int {
	switch {
	case numSteps < 100:
		return 2
	case numSteps < 1000:
		return 3
	case numSteps < 10000:
		return 4
	default:
		return 5
	}
}

// ExpectedSamplesPerStep approximates the generator calls per step: 2k-1 votes
// inflated by the share of discarded samples.
func ExpectedSamplesPerStep(k int, redFlagRate float64) float64 {
	if k < 1 {
		k = 1
	}
	if redFlagRate < 0 {
		redFlagRate = 0
	}
	return float64(2*k-1) * (1 + redFlagRate)
}
