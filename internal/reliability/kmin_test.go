package reliability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateKMin(t *testing.T) {
	tests := []struct {
		name   string
		steps  int
		p      float64
		target float64
		want   int
	}{
		{"million steps", 1_000_000, 0.99, 0.9, 4},
		{"single step loose target", 1, 0.9, 0.5, 1},
		{"single step tight target", 1, 0.9, 0.999, 4},
		{"coin-ish generator", 100, 0.6, 0.9, 18},
		{"perfect generator", 1_000_000, 1.0, 0.99, 1},
		{"zero target", 1, 0.99, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := EstimateKMin(tt.steps, tt.p, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, k)
		})
	}
}

func TestEstimateKMin_MeetsTarget(t *testing.T) {
	for _, steps := range []int{1, 10, 1000, 1_048_575} {
		for _, p := range []float64{0.55, 0.7, 0.9, 0.999} {
			k, err := EstimateKMin(steps, p, 0.95)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, SuccessLowerBound(steps, p, k), 0.95-1e-9, "steps=%d p=%v", steps, p)
			if k > 1 {
				assert.Less(t, SuccessLowerBound(steps, p, k-1), 0.95, "k=%d is not minimal", k)
			}
		}
	}
}

func TestEstimateKMin_Monotonic(t *testing.T) {
	prev := 0
	for _, steps := range []int{1, 10, 100, 1000, 10_000, 100_000, 1_000_000} {
		k, err := EstimateKMin(steps, 0.8, 0.99)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, k, prev, "k must not decrease as steps grow")
		prev = k
	}

	prev = 1 << 30
	for _, p := range []float64{0.51, 0.6, 0.75, 0.9, 0.99} {
		k, err := EstimateKMin(1000, p, 0.99)
		require.NoError(t, err)
		assert.LessOrEqual(t, k, prev, "k must not increase as p grows")
		prev = k
	}

	prev = 0
	for _, target := range []float64{0.1, 0.5, 0.9, 0.99, 0.9999} {
		k, err := EstimateKMin(1000, 0.8, target)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, k, prev, "k must not decrease as target grows")
		prev = k
	}
}

func TestEstimateKMin_Errors(t *testing.T) {
	tests := []struct {
		name   string
		steps  int
		p      float64
		target float64
		want   error
	}{
		{"p below half", 100, 0.4, 0.9, ErrInfeasibleReliability},
		{"p exactly half", 100, 0.5, 0.9, ErrInfeasibleReliability},
		{"infeasible wins over bad steps", 0, 0.4, 2, ErrInfeasibleReliability},
		{"p above one", 100, 1.5, 0.9, ErrInvalidArgument},
		{"zero steps", 0, 0.9, 0.9, ErrInvalidArgument},
		{"target of one", 10, 0.9, 1, ErrInvalidArgument},
		{"negative target", 10, 0.9, -0.1, ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EstimateKMin(tt.steps, tt.p, tt.target)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestErrorBound(t *testing.T) {
	assert.InDelta(t, 1.0/9, ErrorBound(0.9, 1), 1e-12)
	assert.InDelta(t, 1.0/81, ErrorBound(0.9, 2), 1e-12)
	assert.Equal(t, 1.0, ErrorBound(0.5, 3))
	assert.Equal(t, 0.0, ErrorBound(1, 3))
	assert.Greater(t, ErrorBound(0.7, 2), ErrorBound(0.7, 3))
}

func TestSuccessLowerBound(t *testing.T) {
	assert.Equal(t, 1.0, SuccessLowerBound(0, 0.6, 1))
	assert.Equal(t, 0.0, SuccessLowerBound(1000, 0.6, 1))
	assert.InDelta(t, 1-10.0/81, SuccessLowerBound(10, 0.9, 2), 1e-12)
}

func TestRecommendK(t *testing.T) {
	assert.Equal(t, 2, RecommendK(7))
	assert.Equal(t, 3, RecommendK(100))
	assert.Equal(t, 3, RecommendK(999))
	assert.Equal(t, 4, RecommendK(1023))
	assert.Equal(t, 5, RecommendK(1_048_575))
}

func TestExpectedSamplesPerStep(t *testing.T) {
	assert.InDelta(t, 5*1.1, ExpectedSamplesPerStep(3, 0.1), 1e-12)
	assert.Equal(t, 1.0, ExpectedSamplesPerStep(0, -1))
}
