package voting

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrRedFlagged marks a response rejected by the red-flag filter.
	ErrRedFlagged = errors.New("response red-flagged")

	// ErrParse marks a response that could not be turned into an action or
	// next state. It is treated exactly like a red flag.
	ErrParse = errors.New("response could not be parsed")

	// ErrStepDidNotConverge is returned when a step exhausts its attempt budget
	// before any action reaches the required lead.
	ErrStepDidNotConverge = errors.New("step did not converge")

	// ErrNextStateConflict is returned when two accepted samples propose the
	// same action but different next states.
	ErrNextStateConflict = errors.New("next state conflict")

	// ErrInvalidConfig is wrapped by ConfigError.
	ErrInvalidConfig = errors.New("invalid voting config")
)

// ConfigError describes an invalid Config field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// ParseError wraps a parser failure with the stage that failed.
type ParseError struct {
	Stage string // "action" or "next_state"
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Stage, e.Err)
}

// Unwrap exposes both ErrParse and the underlying cause.
func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// ConflictError reports the action whose next states disagreed.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s for action %q", ErrNextStateConflict, e.Key)
}

func (e *ConflictError) Unwrap() error { return ErrNextStateConflict }

// StepError is a fatal failure of one step.
type StepError struct {
	Step     int
	Attempts int
	Tally    map[string]int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %v after %d attempts (tally: %s)", e.Step, e.Err, e.Attempts, formatTally(e.Tally))
}

func (e *StepError) Unwrap() error { return e.Err }

func formatTally(tally map[string]int) string {
	if len(tally) == 0 {
		return "empty"
	}
	keys := make([]string, 0, len(tally))
	for k := range tally {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, tally[k]))
	}
	return strings.Join(parts, ", ")
}
