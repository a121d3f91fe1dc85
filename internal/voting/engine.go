package voting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger *zap.Logger
	tracer trace.Tracer
	meter  metric.Meter
}

// WithLogger sets the engine logger. Samples are logged at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer used for per-step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithMeter sets the meter used for sample and decision metrics.
func WithMeter(meter metric.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// Engine runs first-to-ahead-by-k voting for single steps.
type Engine[S State[S], A Action] struct {
	gen     Generator[S]
	parser  Parser[S, A]
	cfg     Config
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *engineMetrics
}

// NewEngine creates an engine for the given generator and parser.
func NewEngine[S State[S], A Action](gen Generator[S], parser Parser[S, A], cfg Config, opts ...Option) (*Engine[S, A], error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: generator is required", ErrInvalidConfig)
	}
	if parser == nil {
		return nil, fmt.Errorf("%w: parser is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{
		logger: zap.NewNop(),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Engine[S, A]{
		gen:     gen,
		parser:  parser,
		cfg:     cfg,
		logger:  o.logger,
		tracer:  o.tracer,
		metrics: newEngineMetrics(o.meter, o.logger),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine[S, A]) Config() Config { return e.cfg }

// VoteForStep samples the generator for state until one action leads every
// other action by at least K accepted votes.
//
// step is only used for reporting. The returned error is always a *StepError
// when the step fails.
func (e *Engine[S, A]) VoteForStep(ctx context.Context, step int, state S) (Decision[S, A], error) {
	ctx, span := e.tracer.Start(ctx, "voting.VoteForStep",
		trace.WithAttributes(
			attribute.Int("step", step),
			attribute.Int("k", e.cfg.K),
			attribute.Int("max_attempts", e.cfg.attemptBudget()),
		),
	)
	defer span.End()

	run := &stepRun[S, A]{tally: NewTally[S, A](), k: e.cfg.K}

	var err error
	if e.cfg.Parallelism > 1 {
		err = e.voteParallel(ctx, step, state, run)
	} else {
		err = e.voteSequential(ctx, step, state, run)
	}

	span.SetAttributes(
		attribute.Int("attempts", run.attempts),
		attribute.Int("accepted", run.tally.Total()),
		attribute.Int("red_flagged", run.redFlagged),
		attribute.Int("parse_failures", run.parseFailures),
	)

	if err != nil {
		e.metrics.recordStep(ctx, stepResult(err), run.attempts)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("step failed",
			zap.Int("step", step),
			zap.Int("attempts", run.attempts),
			zap.Int("accepted", run.tally.Total()),
			zap.Error(err),
		)
		return Decision[S, A]{}, &StepError{
			Step:     step,
			Attempts: run.attempts,
			Tally:    run.tally.Snapshot(),
			Err:      err,
		}
	}

	standing, _ := run.tally.Leader()
	e.metrics.recordStep(ctx, resultDecided, run.attempts)
	span.SetAttributes(attribute.String("action", standing.Key), attribute.Int("votes", standing.Votes))
	e.logger.Debug("step decided",
		zap.Int("step", step),
		zap.String("action", standing.Key),
		zap.Int("votes", standing.Votes),
		zap.Int("lead", standing.Lead),
		zap.Int("attempts", run.attempts),
	)

	return Decision[S, A]{
		Action:          standing.Action,
		Next:            standing.Next,
		Votes:           standing.Votes,
		Lead:            standing.Lead,
		Accepted:        run.tally.Total(),
		Attempts:        run.attempts,
		RedFlagged:      run.redFlagged,
		ParseFailures:   run.parseFailures,
		GeneratorErrors: run.genErrors,
		Tally:           run.tally.Snapshot(),
	}, nil
}

func (e *Engine[S, A]) voteSequential(ctx context.Context, step int, state S, run *stepRun[S, A]) error {
	budget := e.cfg.attemptBudget()
	for run.attempts < budget {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := e.sample(ctx, state)
		if res.outcome == outcomeGeneratorError && ctx.Err() != nil {
			return ctx.Err()
		}
		decided, err := e.fold(ctx, step, run, res)
		if err != nil || decided {
			return err
		}
	}
	return ErrStepDidNotConverge
}

// voteParallel keeps up to Parallelism generator calls in flight. Results are
// folded here, one at a time, so the stopping rule always sees a consistent
// tally. Returning cancels the remaining calls.
func (e *Engine[S, A]) voteParallel(parent context.Context, step int, state S, run *stepRun[S, A]) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	budget := int64(e.cfg.attemptBudget())
	var issued atomic.Int64
	results := make(chan drawResult[S, A], e.cfg.Parallelism)

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil && issued.Add(1) <= budget {
				res := e.sample(ctx, state)
				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.outcome == outcomeGeneratorError && parent.Err() != nil {
			return parent.Err()
		}
		decided, err := e.fold(ctx, step, run, res)
		if err != nil || decided {
			return err
		}
	}
	if err := parent.Err(); err != nil {
		return err
	}
	return ErrStepDidNotConverge
}

type drawResult[S State[S], A Action] struct {
	action  A
	next    S
	outcome string
	reason  Reason
	err     error
}

// sample draws and classifies one response.
func (e *Engine[S, A]) sample(ctx context.Context, state S) drawResult[S, A] {
	raw, err := e.gen.Generate(ctx, state)
	if err != nil {
		return drawResult[S, A]{outcome: outcomeGeneratorError, err: err}
	}
	if reason := Inspect(raw, e.cfg.Filter); reason != ReasonNone {
		return drawResult[S, A]{outcome: outcomeRedFlagged, reason: reason, err: ErrRedFlagged}
	}
	action, err := e.parser.ParseAction(raw)
	if err != nil {
		return drawResult[S, A]{outcome: outcomeParseError, err: &ParseError{Stage: "action", Err: err}}
	}
	next, err := e.parser.ParseNextState(raw, state)
	if err != nil {
		return drawResult[S, A]{outcome: outcomeParseError, err: &ParseError{Stage: "next_state", Err: err}}
	}
	return drawResult[S, A]{action: action, next: next, outcome: outcomeAccepted}
}

func (e *Engine[S, A]) fold(ctx context.Context, step int, run *stepRun[S, A], res drawResult[S, A]) (bool, error) {
	e.metrics.recordSample(ctx, res.outcome)
	decided, err := run.fold(res)

	if ce := e.logger.Check(zap.DebugLevel, "sample"); ce != nil {
		fields := []zap.Field{
			zap.Int("step", step),
			zap.Int("attempt", run.attempts),
			zap.String("outcome", res.outcome),
		}
		if res.reason != ReasonNone {
			fields = append(fields, zap.String("reason", string(res.reason)))
		}
		if res.outcome == outcomeAccepted {
			fields = append(fields, zap.String("action", res.action.VoteKey()))
		} else if res.err != nil {
			fields = append(fields, zap.Error(res.err))
		}
		ce.Write(fields...)
	}
	return decided, err
}

// stepRun is the bookkeeping of one step.
type stepRun[S State[S], A Action] struct {
	tally         *Tally[S, A]
	k             int
	attempts      int
	redFlagged    int
	parseFailures int
	genErrors     int
}

func (r *stepRun[S, A]) fold(res drawResult[S, A]) (bool, error) {
	r.attempts++
	switch res.outcome {
	case outcomeRedFlagged:
		r.redFlagged++
		return false, nil
	case outcomeParseError:
		r.parseFailures++
		return false, nil
	case outcomeGeneratorError:
		r.genErrors++
		return false, nil
	}
	if err := r.tally.Add(res.action, res.next); err != nil {
		return false, err
	}
	return r.tally.Decided(r.k), nil
}

func stepResult(err error) string {
	switch {
	case errors.Is(err, ErrNextStateConflict):
		return resultConflict
	case errors.Is(err, ErrStepDidNotConverge):
		return resultNoConverge
	default:
		return resultCancelled
	}
}

// VoteForStep runs a single sequential vote with default budget and
// instrumentation.
func VoteForStep[S State[S], A Action](ctx context.Context, state S, gen Generator[S], parser Parser[S, A], filter FilterConfig, k int) (Decision[S, A], error) {
	engine, err := NewEngine(gen, parser, Config{K: k, Filter: filter})
	if err != nil {
		return Decision[S, A]{}, err
	}
	return engine.VoteForStep(ctx, 0, state)
}
