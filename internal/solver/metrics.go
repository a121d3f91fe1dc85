package solver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StepsTotal counts settled steps.
	// Labels: result (decided, failed)
	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maker",
			Subsystem: "solver",
			Name:      "steps_total",
			Help:      "Total number of steps settled by the solver",
		},
		[]string{"result"},
	)

	// RunsTotal counts finished runs.
	// Labels: result (completed, failed)
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maker",
			Subsystem: "solver",
			Name:      "runs_total",
			Help:      "Total number of solver runs by outcome",
		},
		[]string{"result"},
	)

	// StepDuration tracks how long a step takes to reach a decision.
	StepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "maker",
			Subsystem: "solver",
			Name:      "step_duration_seconds",
			Help:      "Duration of one voted step in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	// StepAttempts tracks generator calls per decided step.
	StepAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "maker",
			Subsystem: "solver",
			Name:      "step_attempts",
			Help:      "Generator calls needed to decide one step",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 89},
		},
	)

	// CurrentStep is the index of the step being voted on.
	CurrentStep = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "maker",
			Subsystem: "solver",
			Name:      "current_step",
			Help:      "Index of the step currently being voted on",
		},
	)
)
