package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/maker/internal/logging"
	"github.com/fyrsmithlabs/maker/internal/voting"
	"go.uber.org/zap"
)

// Option configures a Solver.
type Option func(*options)

type options struct {
	logger   *logging.Logger
	progress ProgressCallback
}

// WithLogger sets the run logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(cb ProgressCallback) Option {
	return func(o *options) {
		o.progress = cb
	}
}

// Solver runs a sequence of voted steps.
type Solver[S voting.State[S], A voting.Action] struct {
	voter    StepVoter[S, A]
	logger   *logging.Logger
	progress ProgressCallback
}

// New creates a solver that decides each step with voter.
func New[S voting.State[S], A voting.Action](voter StepVoter[S, A], opts ...Option) *Solver[S, A] {
	o := &options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return &Solver[S, A]{
		voter:    voter,
		logger:   o.logger,
		progress: o.progress,
	}
}

// Solve runs numSteps steps starting at initial and returns the decided
// actions with the final state. The first failing step aborts the run and no
// Result is returned.
func (s *Solver[S, A]) Solve(ctx context.Context, initial S, numSteps int) (*Result[S, A], error) {
	if numSteps < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSteps, numSteps)
	}

	start := time.Now()
	result := &Result[S, A]{
		Actions: make([]A, 0, numSteps),
		Final:   initial,
		Steps:   make([]StepRecord, 0, numSteps),
	}

	s.logger.Info(ctx, "solver run started", zap.Int("num_steps", numSteps))

	state := initial
	for i := 0; i < numSteps; i++ {
		stepCtx := logging.WithStep(ctx, i)

		if err := ctx.Err(); err != nil {
			return nil, s.fail(stepCtx, i, numSteps, &voting.StepError{Step: i, Err: err})
		}

		CurrentStep.Set(float64(i))
		s.reportProgress(StepProgress{
			Step:       i,
			Total:      numSteps,
			Status:     StatusStarted,
			Percentage: (i * 100) / numSteps,
		})

		stepStart := time.Now()
		decision, err := s.voter.VoteForStep(stepCtx, i, state)
		if err != nil {
			return nil, s.fail(stepCtx, i, numSteps, err)
		}
		elapsed := time.Since(stepStart)

		StepsTotal.WithLabelValues("decided").Inc()
		StepDuration.Observe(elapsed.Seconds())
		StepAttempts.Observe(float64(decision.Attempts))

		key := decision.Action.VoteKey()
		result.Actions = append(result.Actions, decision.Action)
		result.Steps = append(result.Steps, StepRecord{
			Step:          i,
			Action:        key,
			Votes:         decision.Votes,
			Lead:          decision.Lead,
			Accepted:      decision.Accepted,
			Attempts:      decision.Attempts,
			RedFlagged:    decision.RedFlagged,
			ParseFailures: decision.ParseFailures,
			Duration:      elapsed,
		})
		result.Attempts += decision.Attempts
		state = decision.Next

		s.logger.Debug(stepCtx, "step decided",
			zap.String("action", key),
			zap.Int("votes", decision.Votes),
			zap.Int("attempts", decision.Attempts),
			zap.Duration("duration", elapsed),
		)
		s.reportProgress(StepProgress{
			Step:       i,
			Total:      numSteps,
			Status:     StatusDecided,
			Action:     key,
			Votes:      decision.Votes,
			Attempts:   decision.Attempts,
			Percentage: ((i + 1) * 100) / numSteps,
		})
	}

	result.Final = state
	result.Elapsed = time.Since(start)
	RunsTotal.WithLabelValues("completed").Inc()

	s.logger.Info(ctx, "solver run completed",
		zap.Int("num_steps", numSteps),
		zap.Int("attempts", result.Attempts),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (s *Solver[S, A]) fail(ctx context.Context, step, total int, err error) error {
	StepsTotal.WithLabelValues("failed").Inc()
	RunsTotal.WithLabelValues("failed").Inc()
	s.logger.Error(ctx, "solver run aborted", zap.Int("num_steps", total), zap.Error(err))
	s.reportProgress(StepProgress{
		Step:       step,
		Total:      total,
		Status:     StatusFailed,
		Percentage: (step * 100) / total,
		Error:      err.Error(),
	})
	return err
}

func (s *Solver[S, A]) reportProgress(p StepProgress) {
	if s.progress != nil {
		s.progress(p)
	}
}

// Solve runs numSteps sequential votes with a default engine built from the
// given generator, parser, filter and margin.
func Solve[S voting.State[S], A voting.Action](
	ctx context.Context,
	initial S,
	gen voting.Generator[S],
	parser voting.Parser[S, A],
	filter voting.FilterConfig,
	k int,
	numSteps int,
	opts ...Option,
) (*Result[S, A], error) {
	o := &options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	engine, err := voting.NewEngine(gen, parser, voting.Config{K: k, Filter: filter},
		voting.WithLogger(o.logger.Underlying()))
	if err != nil {
		return nil, err
	}
	return New[S, A](engine, opts...).Solve(ctx, initial, numSteps)
}
