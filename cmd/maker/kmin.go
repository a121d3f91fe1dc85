package main

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/maker/internal/reliability"
	"github.com/spf13/cobra"
)

var (
	kminSteps       int
	kminP           float64
	kminTarget      float64
	kminRedFlagRate float64
)

var kminCmd = &cobra.Command{
	Use:   "kmin",
	Short: "Compute the smallest voting margin for a target success rate",
	Long: `Compute the smallest margin k such that a run of --steps steps, each
sampled from a generator that is right with probability --p, succeeds with
probability at least --target.

The bound assumes independent samples: a wrong action wins a step with
probability at most ((1-p)/p)^k, and a union bound covers every step. A
per-step success rate at or below 0.5 cannot be made reliable by voting.

Examples:
  maker kmin --steps 1048575 --p 0.998
  maker kmin --steps 1000 --p 0.9 --target 0.99`,
	Args: cobra.NoArgs,
	RunE: runKMin,
}

func init() {
	kminCmd.Flags().IntVar(&kminSteps, "steps", 0, "number of steps in the task (required)")
	kminCmd.Flags().Float64Var(&kminP, "p", 0.99, "per-step success rate of a single sample")
	kminCmd.Flags().Float64Var(&kminTarget, "target", 0.95, "target end-to-end success rate")
	kminCmd.Flags().Float64Var(&kminRedFlagRate, "red-flag-rate", 0.1, "expected share of discarded samples")
	_ = kminCmd.MarkFlagRequired("steps")
}

func runKMin(cmd *cobra.Command, args []string) error {
	k, err := reliability.EstimateKMin(kminSteps, kminP, kminTarget)
	if errors.Is(err, reliability.ErrInfeasibleReliability) {
		return fmt.Errorf("%w: voting cannot help a generator that is wrong at least half the time", err)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary("Voting Margin",
		kv("Steps", "%d", kminSteps),
		kv("Per-step success", "%g", kminP),
		kv("Target success", "%g", kminTarget),
		kv("Minimum k", "%d", k),
		kv("Per-step error bound", "%.3e", reliability.ErrorBound(kminP, k)),
		kv("Success lower bound", "%.6f", reliability.SuccessLowerBound(kminSteps, kminP, k)),
		kv("Samples per step", "~%.1f", reliability.ExpectedSamplesPerStep(k, kminRedFlagRate)),
	))
	return nil
}
