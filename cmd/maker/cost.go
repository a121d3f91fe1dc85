package main

import (
	"fmt"

	"github.com/fyrsmithlabs/maker/internal/pricing"
	"github.com/fyrsmithlabs/maker/internal/reliability"
	"github.com/spf13/cobra"
)

var (
	costSteps          int
	costK              int
	costModel          string
	costListModels     bool
	costRedFlagRate    float64
	costPromptTokens   int
	costResponseTokens int
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Estimate what a run will cost",
	Long: `Estimate the number of model calls, tokens and dollars a run will use.

Each step is assumed to take 2k-1 calls, inflated by the share of red-flagged
samples that have to be drawn again. When --k is not set it is recommended
from the step count.

Examples:
  maker cost --steps 1000 --k 3
  maker cost --steps 50000 --model openai/gpt-4o-mini
  maker cost --models`,
	Args: cobra.NoArgs,
	RunE: runCost,
}

func init() {
	costCmd.Flags().IntVar(&costSteps, "steps", 0, "number of steps in the task")
	costCmd.Flags().IntVar(&costK, "k", 0, "voting margin (default: recommended for the step count)")
	costCmd.Flags().StringVar(&costModel, "model", "", "model ID (default: cheapest recommended model)")
	costCmd.Flags().BoolVar(&costListModels, "models", false, "list priced models and exit")
	costCmd.Flags().Float64Var(&costRedFlagRate, "red-flag-rate", 0, "expected share of discarded samples (default 0.1)")
	costCmd.Flags().IntVar(&costPromptTokens, "prompt-tokens", 0, "average prompt tokens per call (default 500)")
	costCmd.Flags().IntVar(&costResponseTokens, "response-tokens", 0, "average response tokens per call (default 100)")
}

func runCost(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if costListModels {
		fmt.Fprint(out, pricing.FormatModels())
		return nil
	}
	if costSteps < 1 {
		return fmt.Errorf("--steps must be >= 1")
	}

	k := costK
	if k == 0 {
		k = reliability.RecommendK(costSteps)
	}
	model := costModel
	if model == "" {
		model = pricing.RecommendedModel()
	}

	est, err := pricing.EstimateCost(costSteps, k, model, pricing.Options{
		AvgPromptTokens:   costPromptTokens,
		AvgResponseTokens: costResponseTokens,
		RedFlagRate:       costRedFlagRate,
	})
	if err != nil {
		return err
	}
	fmt.Fprint(out, est.Format())
	return nil
}
