// Package voting resolves a single step of a long-horizon task by sampling an
// unreliable generator until one candidate action leads every other candidate
// by a fixed margin k (first-to-ahead-by-k).
//
// Each sample passes through a red-flag filter before it is parsed. Flagged or
// unparseable samples are discarded without touching the tally and are retried
// within a bounded attempt budget. The stopping rule is evaluated after every
// accepted sample, so a step is decided at the first sample where
//
//	votes(leader) - votes(runner-up) >= k
//
// holds, never later.
//
// # Usage
//
//	engine, err := voting.NewEngine[State, Move](gen, parser, voting.Config{
//		K:           3,
//		MaxAttempts: 200,
//		Filter:      voting.FilterConfig{MaxLength: 750},
//	}, voting.WithLogger(zapLogger))
//	decision, err := engine.VoteForStep(ctx, step, state)
//
// A step that exhausts its budget returns a *StepError wrapping
// ErrStepDidNotConverge; a repeated action that disagrees about the next state
// returns a *StepError wrapping ErrNextStateConflict. Both carry the tally that
// was accumulated before the failure.
//
// # Concurrency
//
// With Parallelism greater than one the engine issues generator calls from a
// pool of workers. Accepted samples are folded into the tally by the calling
// goroutine only, and outstanding generator calls are cancelled through the
// context as soon as the step is decided or the budget runs out.
package voting
