package voting

import (
	"context"
)

// Action is a candidate outcome of one step.
//
// Two actions count as the same vote exactly when their VoteKey values are
// equal. The key must be deterministic for a given action value.
type Action interface {
	VoteKey() string
}

// State is an immutable task state that can be compared for equality.
type State[S any] interface {
	Equal(other S) bool
}

// Generator produces one raw response for the given state. Successive calls
// with the same state are expected to be independent samples.
type Generator[S any] interface {
	Generate(ctx context.Context, state S) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc[S any] func(ctx context.Context, state S) (string, error)

// Generate calls f(ctx, state).
func (f GeneratorFunc[S]) Generate(ctx context.Context, state S) (string, error) {
	return f(ctx, state)
}

// Parser extracts the proposed action and the resulting state from a raw
// response. Any returned error discards the sample.
type Parser[S any, A Action] interface {
	ParseAction(raw string) (A, error)
	ParseNextState(raw string, current S) (S, error)
}

// Config controls one engine.
type Config struct {
	// K is the required lead of the winning action over the runner-up.
	K int `json:"k"`

	// MaxAttempts bounds the number of generator calls per step. Red-flagged,
	// unparseable and failed calls all count. Zero selects DefaultMaxAttempts(K).
	MaxAttempts int `json:"max_attempts"`

	// Parallelism is the number of concurrent generator calls. Values below
	// two select the sequential loop.
	Parallelism int `json:"parallelism"`

	// Filter is the red-flag policy applied to every raw response.
	Filter FilterConfig `json:"-"`
}

// DefaultMaxAttempts returns the attempt budget used when none is configured.
func DefaultMaxAttempts(k int) int {
	if k < 1 {
		k = 1
	}
	return 50 * k
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.K < 1 {
		return &ConfigError{Field: "k", Reason: "must be >= 1"}
	}
	if c.MaxAttempts < 0 {
		return &ConfigError{Field: "max_attempts", Reason: "must be >= 0"}
	}
	if c.MaxAttempts > 0 && c.MaxAttempts < c.K {
		return &ConfigError{Field: "max_attempts", Reason: "must be >= k"}
	}
	if c.Parallelism < 0 {
		return &ConfigError{Field: "parallelism", Reason: "must be >= 0"}
	}
	if c.Filter.MaxLength < 0 {
		return &ConfigError{Field: "filter.max_length", Reason: "must be >= 0"}
	}
	return nil
}

func (c Config) attemptBudget() int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return DefaultMaxAttempts(c.K)
}

// Decision is the outcome of a decided step.
type Decision[S any, A Action] struct {
	Action A
	Next   S

	// Votes is the leader's vote count and Lead its margin over the runner-up.
	Votes int
	Lead  int

	// Accepted counts samples that reached the tally; Attempts counts every
	// generator call made for the step.
	Accepted        int
	Attempts        int
	RedFlagged      int
	ParseFailures   int
	GeneratorErrors int

	// Tally maps vote keys to their final counts.
	Tally map[string]int
}
