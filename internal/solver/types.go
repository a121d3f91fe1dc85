// Package solver drives a task through a fixed number of voted steps.
// Steps run strictly in order and each decided state feeds the next step.
package solver

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/maker/internal/voting"
)

// ErrInvalidSteps is returned for a negative step count.
var ErrInvalidSteps = errors.New("number of steps must be >= 0")

// StepVoter decides a single step. *voting.Engine implements it.
type StepVoter[S voting.State[S], A voting.Action] interface {
	VoteForStep(ctx context.Context, step int, state S) (voting.Decision[S, A], error)
}

// StepStatus is the lifecycle position of a step in progress reports.
type StepStatus string

const (
	StatusStarted StepStatus = "started"
	StatusDecided StepStatus = "decided"
	StatusFailed  StepStatus = "failed"
)

// StepProgress reports progress during a run
type StepProgress struct {
	Step       int        `json:"step"`
	Total      int        `json:"total"`
	Status     StepStatus `json:"status"`
	Action     string     `json:"action,omitempty"`
	Votes      int        `json:"votes,omitempty"`
	Attempts   int        `json:"attempts,omitempty"`
	Percentage int        `json:"percentage"`
	Error      string     `json:"error,omitempty"`
}

// ProgressCallback receives progress updates during a run
type ProgressCallback func(progress StepProgress)

// StepRecord summarizes how one step was decided.
type StepRecord struct {
	Step          int           `json:"step"`
	Action        string        `json:"action"`
	Votes         int           `json:"votes"`
	Lead          int           `json:"lead"`
	Accepted      int           `json:"accepted"`
	Attempts      int           `json:"attempts"`
	RedFlagged    int           `json:"red_flagged"`
	ParseFailures int           `json:"parse_failures"`
	Duration      time.Duration `json:"duration"`
}

// Result is a completed run. Runs that fail produce no Result.
type Result[S voting.State[S], A voting.Action] struct {
	Actions  []A
	Final    S
	Steps    []StepRecord
	Attempts int
	Elapsed  time.Duration
}
