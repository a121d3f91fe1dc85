// Package events publishes run and step progress so other processes can
// follow a run as it happens.
//
// Events are JSON messages on NATS subjects:
//
//	<prefix>.<run_id>.step   one message per step transition
//	<prefix>.<run_id>.run    started, completed and failed
//
// Subscribers can follow every run with "<prefix>.*.*".
package events

import (
	"context"
	"time"
)

// finalTimeout bounds delivery of a completed or failed run event.
const finalTimeout = 5 * time.Second

// Event kinds, used as the last subject token.
const (
	KindStep = "step"
	KindRun  = "run"
)

// Run statuses.
const (
	RunStarted   = "started"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// StepEvent reports a step transition.
type StepEvent struct {
	RunID     string    `json:"run_id"`
	Task      string    `json:"task,omitempty"`
	Step      int       `json:"step"`
	Total     int       `json:"total"`
	Status    string    `json:"status"`
	StepType  string    `json:"step_type,omitempty"`
	Action    string    `json:"action,omitempty"`
	Votes     int       `json:"votes,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RunEvent reports a run lifecycle change.
type RunEvent struct {
	RunID          string    `json:"run_id"`
	Task           string    `json:"task,omitempty"`
	Status         string    `json:"status"`
	TotalSteps     int       `json:"total_steps"`
	StepsCompleted int       `json:"steps_completed"`
	K              int       `json:"k,omitempty"`
	Attempts       int       `json:"attempts,omitempty"`
	ElapsedSeconds float64   `json:"elapsed_seconds,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishStep(ctx context.Context, ev StepEvent) error
	PublishRun(ctx context.Context, ev RunEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishStep(context.Context, StepEvent) error { return nil }
func (NopPublisher) PublishRun(context.Context, RunEvent) error   { return nil }
func (NopPublisher) Close() error                                 { return nil }

// PublishRun sends ev through p. Completed and failed events are detached
// from ctx's cancellation so an interrupted run still reports how it ended.
func PublishRun(ctx context.Context, p Publisher, ev RunEvent) error {
	if ev.Status == RunStarted {
		return p.PublishRun(ctx, ev)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalTimeout)
	defer cancel()
	return p.PublishRun(ctx, ev)
}
