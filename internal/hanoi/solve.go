package hanoi

import (
	"context"

	"github.com/fyrsmithlabs/maker/internal/solver"
	"github.com/fyrsmithlabs/maker/internal/voting"
)

// Solve runs the full puzzle with gen, deciding every move by vote. cfg's
// Filter is replaced with the puzzle's red-flag policy.
func Solve(
	ctx context.Context,
	disks int,
	gen voting.Generator[State],
	cfg voting.Config,
	engineOpts []voting.Option,
	opts ...solver.Option,
) (*solver.Result[State, Move], error) {
	initial, err := NewState(disks)
	if err != nil {
		return nil, err
	}
	cfg.Filter = Filter(disks)
	engine, err := voting.NewEngine[State, Move](gen, Parser{}, cfg, engineOpts...)
	if err != nil {
		return nil, err
	}
	return solver.New[State, Move](engine, opts...).Solve(ctx, initial, NumSteps(disks))
}
