package main

import (
	"fmt"

	"github.com/fyrsmithlabs/maker/internal/decompose"
	"github.com/fyrsmithlabs/maker/internal/pricing"
	"github.com/spf13/cobra"
)

var (
	planCriteria    string
	planOut         string
	planModel       string
	planK           int
	planRedFlagRate float64
)

var planCmd = &cobra.Command{
	Use:   "plan <task description>",
	Short: "Decompose a task into micro-steps and write a task file",
	Long: `Ask the configured model to decompose a task into the smallest possible
atomic steps, estimate the number of steps and a voting margin, price the run
and write the resulting task file.

The task file is JSON unless --out ends in .toml. Review and edit the micro-agent
prompts before running it with 'maker run'.

Examples:
  maker plan "Multiply two 20-digit numbers digit by digit"
  maker plan "Sort 500 names" --criteria "names in alphabetical order" --out sort.toml
  maker plan "Translate a manual paragraph by paragraph" --model openai/gpt-4o-mini --k 4`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planCriteria, "criteria", "", "success criteria for the task")
	planCmd.Flags().StringVarP(&planOut, "out", "o", "task.json", "task file to write")
	planCmd.Flags().StringVar(&planModel, "model", "", "model the task will run on (default: cheapest recommended)")
	planCmd.Flags().IntVar(&planK, "k", 0, "voting margin (default: recommended for the step count)")
	planCmd.Flags().Float64Var(&planRedFlagRate, "red-flag-rate", 0, "expected share of discarded samples for the cost estimate")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := loadRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	completer, err := newCompleter(rt.cfg.LLM, rt.logger.Underlying())
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, dimStyle.Render("Decomposing task..."))

	d := decompose.New(completer, decompose.WithLogger(rt.logger.Underlying()))
	cfg, err := d.Plan(ctx, args[0], decompose.PlanOptions{
		SuccessCriteria: planCriteria,
		Model:           planModel,
		K:               planK,
		Pricing:         pricing.Options{RedFlagRate: planRedFlagRate},
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, decompose.Guide(cfg.Decomposition))
	fields := []field{
		kv("Model", "%s", cfg.Model),
		kv("Estimated steps", "%d", cfg.EstimatedSteps),
		kv("Voting margin (k)", "%d", cfg.K),
	}
	if ce := cfg.CostEstimate; ce != nil {
		fields = append(fields,
			kv("Estimated calls", "%d", ce.EstimatedCalls),
			kv("Estimated cost", "$%.4f", ce.TotalCost),
		)
	} else {
		fields = append(fields, kv("Estimated cost", "unknown (model not in price table)"))
	}
	fmt.Fprintln(out, summary("Plan", fields...))

	if err := cfg.Save(planOut); err != nil {
		return err
	}
	fmt.Fprintln(out, status(true, "task file written to "+planOut))
	fmt.Fprintf(out, "Run it with: maker run %s\n", planOut)
	return nil
}
