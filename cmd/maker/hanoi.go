package main

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/maker/internal/hanoi"
	"github.com/fyrsmithlabs/maker/internal/reliability"
	"github.com/fyrsmithlabs/maker/internal/solver"
	"github.com/fyrsmithlabs/maker/internal/voting"
	"github.com/spf13/cobra"
)

var (
	hanoiDisks       int
	hanoiSimulate    float64
	hanoiK           int
	hanoiSeed        uint64
	hanoiMaxAttempts int
	hanoiParallel    int
	hanoiShowMoves   bool
)

var hanoiCmd = &cobra.Command{
	Use:   "hanoi",
	Short: "Solve Towers of Hanoi move by move with voting",
	Long: `Solve Towers of Hanoi with n disks, deciding each of the 2^n-1 moves by vote.

With --simulate p an offline generator answers the optimal move with
probability p and a wrong or rambling answer otherwise, so the voting margin
can be checked against its reliability bound without calling a model.
Without it the configured model is asked for every move.

When --k is not set it is derived from p (or voting.per_step_success_rate)
and voting.target_success_rate.

Examples:
  maker hanoi --disks 10 --simulate 0.99
  maker hanoi --disks 5 --simulate 0.8 --k 6 --seed 7
  maker hanoi --disks 4 --k 3`,
	Args: cobra.NoArgs,
	RunE: runHanoi,
}

func init() {
	hanoiCmd.Flags().IntVar(&hanoiDisks, "disks", 3, "number of disks")
	hanoiCmd.Flags().Float64Var(&hanoiSimulate, "simulate", 0, "use an offline generator with this per-sample success rate")
	hanoiCmd.Flags().IntVar(&hanoiK, "k", 0, "voting margin")
	hanoiCmd.Flags().Uint64Var(&hanoiSeed, "seed", 1, "simulator seed")
	hanoiCmd.Flags().IntVar(&hanoiMaxAttempts, "max-attempts", 0, "sample budget per step (default: config)")
	hanoiCmd.Flags().IntVar(&hanoiParallel, "parallel", 0, "concurrent samples per step (default: config)")
	hanoiCmd.Flags().BoolVar(&hanoiShowMoves, "show-moves", false, "print every decided move")
}

func runHanoi(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if hanoiDisks < 1 || hanoiDisks > hanoi.MaxDisks {
		return fmt.Errorf("%w: %d", hanoi.ErrInvalidDisks, hanoiDisks)
	}

	rt, err := loadRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	steps := hanoi.NumSteps(hanoiDisks)
	k, err := hanoiMargin(steps, rt.cfg.Voting.K, rt.cfg.Voting.PerStepSuccessRate, rt.cfg.Voting.TargetSuccessRate)
	if err != nil {
		return err
	}

	var gen voting.Generator[hanoi.State]
	source := "model"
	if hanoiSimulate > 0 {
		sim, err := hanoi.NewSimulator(hanoiDisks, hanoiSimulate, hanoiSeed)
		if err != nil {
			return err
		}
		gen = sim
		source = fmt.Sprintf("simulator (p=%g, seed=%d)", hanoiSimulate, hanoiSeed)
	} else {
		completer, err := newCompleter(rt.cfg.LLM, rt.logger.Underlying())
		if err != nil {
			return fmt.Errorf("creating llm client: %w", err)
		}
		gen = hanoi.NewAgent(completer)
	}

	vcfg := voting.Config{
		K:           k,
		MaxAttempts: rt.cfg.Voting.MaxAttempts,
		Parallelism: rt.cfg.Voting.Parallelism,
	}
	if hanoiMaxAttempts > 0 {
		vcfg.MaxAttempts = hanoiMaxAttempts
	}
	if hanoiParallel > 0 {
		vcfg.Parallelism = hanoiParallel
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, summary("Towers of Hanoi",
		kv("Disks", "%d", hanoiDisks),
		kv("Moves", "%d", steps),
		kv("Voting margin (k)", "%d", k),
		kv("Generator", "%s", source),
	))

	errOut := cmd.ErrOrStderr()
	progress := func(p solver.StepProgress) {
		if p.Status == solver.StatusFailed {
			fmt.Fprintf(errOut, "move %d/%d failed: %s\n", p.Step+1, p.Total, p.Error)
			return
		}
		if p.Status != solver.StatusDecided {
			return
		}
		if hanoiShowMoves {
			fmt.Fprintf(out, "%6d  %s  (%d votes, %d samples)\n", p.Step+1, p.Action, p.Votes, p.Attempts)
		} else if every := max(p.Total/10, 1); (p.Step+1)%every == 0 {
			fmt.Fprintf(errOut, "[%3d%%] %d/%d moves\n", p.Percentage, p.Step+1, p.Total)
		}
	}

	res, err := hanoi.Solve(ctx, hanoiDisks, gen, vcfg,
		[]voting.Option{
			voting.WithLogger(rt.logger.Underlying()),
			voting.WithTracer(rt.tel.Tracer("github.com/fyrsmithlabs/maker/internal/voting")),
			voting.WithMeter(rt.tel.Meter("github.com/fyrsmithlabs/maker/internal/voting")),
		},
		solver.WithLogger(rt.logger),
		solver.WithProgress(progress),
	)
	if err != nil {
		fmt.Fprintln(out, status(false, "puzzle not solved"))
		return err
	}
	if err := hanoi.Verify(hanoiDisks, res.Actions); err != nil {
		fmt.Fprintln(out, status(false, "decided moves do not solve the puzzle"))
		return err
	}

	var redFlagged int
	for _, st := range res.Steps {
		redFlagged += st.RedFlagged
	}
	fmt.Fprintln(out, summary("Result",
		kv("Status", "%s", status(res.Final.Solved(), "solved")),
		kv("Samples drawn", "%d", res.Attempts),
		kv("Samples per move", "%.2f", float64(res.Attempts)/float64(steps)),
		kv("Red-flagged", "%d", redFlagged),
		kv("Elapsed", "%s", res.Elapsed.Round(time.Millisecond)),
	))
	return nil
}

// hanoiMargin picks k: the flag, then the config override, then the
// reliability bound for a known success rate, then the step-count heuristic.
func hanoiMargin(steps, configK int, configP, target float64) (int, error) {
	if hanoiK > 0 {
		return hanoiK, nil
	}
	if configK > 0 {
		return configK, nil
	}
	p := configP
	if hanoiSimulate > 0 {
		p = hanoiSimulate
	}
	if p > 0 {
		return reliability.EstimateKMin(steps, p, target)
	}
	return reliability.RecommendK(steps), nil
}
