package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fyrsmithlabs/maker/internal/config"
	"github.com/fyrsmithlabs/maker/internal/events"
	"github.com/fyrsmithlabs/maker/internal/llm"
	"github.com/fyrsmithlabs/maker/internal/solver"
	"github.com/fyrsmithlabs/maker/internal/task"
	"github.com/fyrsmithlabs/maker/internal/voting"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runYes    bool
	runOutput string
	runModel  string
	runK      int
)

// newCompleter builds the model client. Tests swap it for a scripted one.
var newCompleter = func(cfg config.LLMConfig, logger *zap.Logger) (llm.Completer, error) {
	return llm.New(cfg, logger)
}

var runCmd = &cobra.Command{
	Use:   "run <task-file>",
	Short: "Execute a task file with voting micro-agents",
	Long: `Execute a task file produced by 'maker plan' (JSON, or TOML for .toml files).

Each step is decided by sampling the step type's micro-agent until one action
leads every other by k votes. Results are written to <task>_results.json, or
to --output. A failed run still writes the steps decided before the failure.

Voting limits come from the task file and the voting section of the config
file. Step and run events are published to NATS when events.nats_url is set.

Examples:
  maker run sort.json
  maker run sort.json --yes --k 4
  maker run plan.toml --output results/plan.json`,
	Args: cobra.ExactArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "skip the confirmation prompt")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "results file (default <task>_results.json)")
	runCmd.Flags().StringVar(&runModel, "model", "", "override the task file's model")
	runCmd.Flags().IntVar(&runK, "k", 0, "override the task file's voting margin")
}

func runTask(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	cfg, err := task.LoadConfig(path)
	if err != nil {
		return err
	}

	rt, err := loadRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	k := cfg.K
	if rt.cfg.Voting.K > 0 {
		k = rt.cfg.Voting.K
	}
	if runK > 0 {
		k = runK
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, taskSummary(cfg, k))
	if !runYes {
		ok, err := confirm(cmd.InOrStdin(), out, "Proceed with execution?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	llmCfg := rt.cfg.LLM
	switch {
	case runModel != "":
		llmCfg.Model = runModel
	case cfg.Model != "":
		llmCfg.Model = cfg.Model
	}
	completer, err := newCompleter(llmCfg, rt.logger.Underlying())
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if url := rt.cfg.Events.NATSURL; url != "" {
		p, err := events.Connect(url, rt.cfg.Events.SubjectPrefix, rt.logger.Underlying())
		if err != nil {
			return err
		}
		defer p.Close()
		publisher = p
	}

	errOut := cmd.ErrOrStderr()
	outcome, runErr := task.Execute(ctx, cfg, task.Options{
		Completer:   completer,
		K:           k,
		MaxAttempts: rt.cfg.Voting.MaxAttempts,
		Parallelism: rt.cfg.Voting.Parallelism,
		Logger:      rt.logger,
		Publisher:   publisher,
		Progress: func(p solver.StepProgress) {
			switch p.Status {
			case solver.StatusDecided:
				fmt.Fprintf(errOut, "[%3d%%] step %d/%d: %s (%d votes, %d samples)\n",
					p.Percentage, p.Step+1, p.Total, p.Action, p.Votes, p.Attempts)
			case solver.StatusFailed:
				fmt.Fprintf(errOut, "step %d/%d failed: %s\n", p.Step+1, p.Total, p.Error)
			}
		},
		EngineOptions: []voting.Option{
			voting.WithTracer(rt.tel.Tracer("github.com/fyrsmithlabs/maker/internal/voting")),
			voting.WithMeter(rt.tel.Meter("github.com/fyrsmithlabs/maker/internal/voting")),
		},
	})
	if outcome == nil {
		return runErr
	}

	resultsPath := runOutput
	if resultsPath == "" {
		resultsPath = task.ResultsPath(path)
	}
	if err := task.WriteResults(resultsPath, outcome.Results(path)); err != nil {
		return err
	}

	fmt.Fprintln(out, summary("Run "+outcome.RunID,
		kv("Status", "%s", status(outcome.Completed, completionText(outcome.Completed))),
		kv("Steps completed", "%d/%d", outcome.StepsCompleted, cfg.EstimatedSteps),
		kv("Samples drawn", "%d", outcome.Attempts),
		kv("Elapsed", "%s", outcome.Elapsed.Round(10*time.Millisecond)),
		kv("Results", "%s", resultsPath),
	))
	return runErr
}

func completionText(ok bool) string {
	if ok {
		return "completed"
	}
	return "failed"
}

func taskSummary(cfg *task.Config, k int) string {
	fields := []field{
		kv("Task", "%s", truncate(cfg.TaskDescription, 60)),
		kv("Model", "%s", cfg.Model),
		kv("Steps", "%d", cfg.EstimatedSteps),
		kv("Voting margin (k)", "%d", k),
		kv("Step types", "%s", strings.Join(cfg.StepTypeNames(), ", ")),
	}
	if ce := cfg.CostEstimate; ce != nil {
		fields = append(fields,
			kv("Estimated calls", "%d", ce.EstimatedCalls),
			kv("Estimated cost", "$%.4f", ce.TotalCost),
		)
	}
	return summary("Task", fields...)
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}

// confirm asks a yes/no question on in. Anything but y or yes is no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
