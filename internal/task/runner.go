package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/maker/internal/events"
	"github.com/fyrsmithlabs/maker/internal/llm"
	"github.com/fyrsmithlabs/maker/internal/logging"
	"github.com/fyrsmithlabs/maker/internal/solver"
	"github.com/fyrsmithlabs/maker/internal/voting"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoCompleter is returned when Execute has nothing to sample from.
var ErrNoCompleter = errors.New("task: completer required")

// Options configures Execute.
type Options struct {
	// Completer backs every micro-agent and the step-type selector.
	Completer llm.Completer

	// K overrides the task file's margin when positive.
	K           int
	MaxAttempts int
	Parallelism int

	// Selector overrides the default step-type selection.
	Selector Selector

	RunID         string
	Logger        *logging.Logger
	Publisher     events.Publisher
	Progress      solver.ProgressCallback
	EngineOptions []voting.Option
}

// Runner decides a step by choosing its step type and voting with that
// type's engine. It implements solver.StepVoter.
type Runner struct {
	rc       RunConfig
	selector Selector
	engines  map[string]*voting.Engine[State, Action]
	logger   *logging.Logger

	mu      sync.Mutex
	types   []string
	decided []Action
	last    State
}

// NewRunner builds one voting engine per step type.
func NewRunner(cfg *Config, opts Options) (*Runner, error) {
	if opts.Completer == nil {
		return nil, ErrNoCompleter
	}
	rc := cfg.RunConfig()
	if opts.K > 0 {
		rc.K = opts.K
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	engineOpts := append([]voting.Option{voting.WithLogger(logger.Underlying())}, opts.EngineOptions...)
	engines := make(map[string]*voting.Engine[State, Action], len(cfg.Decomposition.StepTypes))
	for _, st := range cfg.Decomposition.StepTypes {
		filter, err := rc.Filter(st)
		if err != nil {
			return nil, fmt.Errorf("step type %s: %w", st.Name, err)
		}
		engine, err := voting.NewEngine[State, Action](
			NewMicroAgent(st, opts.Completer),
			Parser{},
			voting.Config{
				K:           rc.K,
				MaxAttempts: opts.MaxAttempts,
				Parallelism: opts.Parallelism,
				Filter:      filter,
			},
			engineOpts...,
		)
		if err != nil {
			return nil, fmt.Errorf("step type %s: %w", st.Name, err)
		}
		engines[st.Name] = engine
	}

	selector := opts.Selector
	if selector == nil {
		selector = NewSelector(cfg, opts.Completer)
	}
	return &Runner{
		rc:       rc,
		selector: selector,
		engines:  engines,
		logger:   logger,
		last:     NewState(cfg),
	}, nil
}

// VoteForStep implements solver.StepVoter.
func (r *Runner) VoteForStep(ctx context.Context, step int, state State) (voting.Decision[State, Action], error) {
	name, err := r.selector.Select(ctx, state, step)
	if err != nil {
		return voting.Decision[State, Action]{}, &voting.StepError{Step: step, Err: err}
	}
	engine, ok := r.engines[name]
	if !ok {
		return voting.Decision[State, Action]{}, &voting.StepError{
			Step: step,
			Err:  fmt.Errorf("selector chose unknown step type %q", name),
		}
	}

	r.mu.Lock()
	r.types = append(r.types, name)
	r.mu.Unlock()

	decision, err := engine.VoteForStep(logging.WithStepType(ctx, name), step, state)
	if err != nil {
		return decision, err
	}

	r.mu.Lock()
	r.decided = append(r.decided, decision.Action)
	r.last = decision.Next
	r.mu.Unlock()
	return decision, nil
}

// StepType returns the step type chosen for step, if any.
func (r *Runner) StepType(step int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if step >= 0 && step < len(r.types) {
		return r.types[step]
	}
	return ""
}

// Decided returns the actions decided so far.
func (r *Runner) Decided() []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Action, len(r.decided))
	copy(out, r.decided)
	return out
}

// LastState returns the most recent decided state.
func (r *Runner) LastState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Outcome is the result of Execute. It is returned for failed runs too,
// holding the steps decided before the failure.
type Outcome struct {
	RunID          string              `json:"run_id"`
	Completed      bool                `json:"completed"`
	StepsCompleted int                 `json:"steps_completed"`
	Actions        []Action            `json:"actions"`
	FinalState     State               `json:"final_state"`
	Steps          []solver.StepRecord `json:"steps,omitempty"`
	Attempts       int                 `json:"attempts"`
	Elapsed        time.Duration       `json:"elapsed"`
}

// Execute runs the task file to completion. On failure it returns both the
// partial Outcome and the error.
func Execute(ctx context.Context, cfg *Config, opts Options) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runner, err := NewRunner(cfg, opts)
	if err != nil {
		return nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = logging.WithRunID(ctx, runID)

	logger := runner.logger
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	rc := runner.RunConfig()

	publishRun := func(ev events.RunEvent) {
		ev.RunID, ev.Task, ev.TotalSteps, ev.K = runID, cfg.TaskDescription, rc.NumSteps, rc.K
		if err := events.PublishRun(ctx, publisher, ev); err != nil {
			logger.Warn(ctx, "failed to publish run event", zap.String("status", ev.Status), zap.Error(err))
		}
	}
	progress := func(p solver.StepProgress) {
		if opts.Progress != nil {
			opts.Progress(p)
		}
		ev := events.StepEvent{
			RunID:    runID,
			Task:     cfg.TaskDescription,
			Step:     p.Step,
			Total:    p.Total,
			Status:   string(p.Status),
			StepType: runner.StepType(p.Step),
			Action:   p.Action,
			Votes:    p.Votes,
			Attempts: p.Attempts,
			Error:    p.Error,
		}
		if err := publisher.PublishStep(ctx, ev); err != nil {
			logger.Warn(ctx, "failed to publish step event", zap.Int("step", p.Step), zap.Error(err))
		}
	}

	logger.Info(ctx, "task execution started",
		zap.String("model", cfg.Model),
		zap.Int("k", rc.K),
		zap.Int("num_steps", rc.NumSteps),
		zap.Int("step_types", len(cfg.Decomposition.StepTypes)),
	)
	publishRun(events.RunEvent{Status: events.RunStarted})

	start := time.Now()
	s := solver.New[State, Action](runner, solver.WithLogger(logger), solver.WithProgress(progress))
	res, solveErr := s.Solve(ctx, NewState(cfg), rc.NumSteps)

	out := &Outcome{RunID: runID, Elapsed: time.Since(start)}
	if solveErr != nil {
		out.Actions = runner.Decided()
		out.StepsCompleted = len(out.Actions)
		out.FinalState = runner.LastState()
		publishRun(events.RunEvent{
			Status:         events.RunFailed,
			StepsCompleted: out.StepsCompleted,
			ElapsedSeconds: out.Elapsed.Seconds(),
			Error:          solveErr.Error(),
		})
		return out, solveErr
	}

	out.Completed = true
	out.Actions = res.Actions
	out.StepsCompleted = len(res.Actions)
	out.FinalState = res.Final
	out.Steps = res.Steps
	out.Attempts = res.Attempts
	publishRun(events.RunEvent{
		Status:         events.RunCompleted,
		StepsCompleted: out.StepsCompleted,
		Attempts:       out.Attempts,
		ElapsedSeconds: out.Elapsed.Seconds(),
	})
	return out, nil
}

// RunConfig returns the voting parameters the runner's engines were built
// with, including any K override.
func (r *Runner) RunConfig() RunConfig { return r.rc }
