package hanoi

import (
	"context"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/maker/internal/llm"
	"github.com/fyrsmithlabs/maker/internal/solver"
	"github.com/fyrsmithlabs/maker/internal/voting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimulator_Validation(t *testing.T) {
	_, err := NewSimulator(0, 0.9, 1)
	assert.ErrorIs(t, err, ErrInvalidDisks)
	_, err = NewSimulator(3, 1.2, 1)
	assert.Error(t, err)
}

func TestSimulator_PerfectAnswersOptimalMoves(t *testing.T) {
	sim, err := NewSimulator(4, 1, 7)
	require.NoError(t, err)

	s, err := NewState(4)
	require.NoError(t, err)
	for i, want := range OptimalMoves(4) {
		raw, err := sim.Generate(context.Background(), s)
		require.NoError(t, err)
		m, err := Parser{}.ParseAction(raw)
		require.NoError(t, err)
		require.Equal(t, want, m, "step %d", i)
		s, err = s.Apply(m)
		require.NoError(t, err)
	}
	assert.True(t, s.Solved())

	_, err = sim.Generate(context.Background(), s)
	assert.Error(t, err, "no move past the end")
}

func TestSimulator_FailuresNeverMatchOptimal(t *testing.T) {
	sim, err := NewSimulator(3, 0, 42)
	require.NoError(t, err)
	s, err := NewState(3)
	require.NoError(t, err)

	correct := OptimalMoves(3)[0]
	for i := 0; i < 200; i++ {
		raw, err := sim.Generate(context.Background(), s)
		require.NoError(t, err)
		if m, err := (Parser{}).ParseAction(raw); err == nil {
			assert.NotEqual(t, correct, m)
		}
	}
}

func TestSimulator_Cancelled(t *testing.T) {
	sim, err := NewSimulator(3, 1, 1)
	require.NoError(t, err)
	s, _ := NewState(3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sim.Generate(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolve_WithNoisySimulator(t *testing.T) {
	const disks = 5
	sim, err := NewSimulator(disks, 0.8, 2024)
	require.NoError(t, err)

	var decided int
	res, err := Solve(context.Background(), disks, sim,
		voting.Config{K: 3, MaxAttempts: 200},
		nil,
		solver.WithProgress(func(p solver.StepProgress) {
			if p.Status == solver.StatusDecided {
				decided++
			}
		}),
	)
	require.NoError(t, err)
	require.Len(t, res.Actions, NumSteps(disks))
	assert.Equal(t, OptimalMoves(disks), res.Actions)
	assert.True(t, res.Final.Solved())
	assert.NoError(t, Verify(disks, res.Actions))
	assert.Equal(t, NumSteps(disks), decided)
	assert.Greater(t, res.Attempts, 3*NumSteps(disks))
}

func TestSolve_Parallel(t *testing.T) {
	sim, err := NewSimulator(4, 0.9, 99)
	require.NoError(t, err)

	res, err := Solve(context.Background(), 4, sim, voting.Config{K: 2, Parallelism: 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, OptimalMoves(4), res.Actions)
}

func TestSolve_ProviderDownExhaustsBudget(t *testing.T) {
	agent := NewAgent(llm.CompleterFunc(func(_ context.Context, req llm.Request) (llm.Response, error) {
		return llm.Response{}, errors.New("unreachable")
	}))
	_, err := Solve(context.Background(), 2, agent, voting.Config{K: 1, MaxAttempts: 3}, nil)

	var stepErr *voting.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 0, stepErr.Step)
	assert.ErrorIs(t, err, voting.ErrStepDidNotConverge)
}

func TestSolve_InvalidDisks(t *testing.T) {
	sim, err := NewSimulator(1, 1, 1)
	require.NoError(t, err)
	_, err = Solve(context.Background(), 0, sim, voting.Config{K: 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidDisks)
}
