package voting

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/maker/internal/voting"

// Sample outcomes recorded on maker.voting.samples.
const (
	outcomeAccepted       = "accepted"
	outcomeRedFlagged     = "red_flagged"
	outcomeParseError     = "parse_error"
	outcomeGeneratorError = "generator_error"
)

// Step results recorded on maker.voting.decisions.
const (
	resultDecided    = "decided"
	resultNoConverge = "did_not_converge"
	resultConflict   = "conflict"
	resultCancelled  = "cancelled"
)

// engineMetrics holds the OTEL instruments of an engine. Nil instruments are
// skipped so a failed registration never breaks voting.
type engineMetrics struct {
	samples   metric.Int64Counter
	attempts  metric.Int64Histogram
	decisions metric.Int64Counter
}

func newEngineMetrics(meter metric.Meter, logger *zap.Logger) *engineMetrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &engineMetrics{}
	var err error

	m.samples, err = meter.Int64Counter(
		"maker.voting.samples",
		metric.WithDescription("Generator samples by outcome (accepted, red_flagged, parse_error, generator_error)"),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		logger.Warn("failed to create samples counter", zap.Error(err))
	}

	m.attempts, err = meter.Int64Histogram(
		"maker.voting.step_attempts",
		metric.WithDescription("Generator calls needed to settle one step"),
		metric.WithUnit("{attempt}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144),
	)
	if err != nil {
		logger.Warn("failed to create step attempts histogram", zap.Error(err))
	}

	m.decisions, err = meter.Int64Counter(
		"maker.voting.decisions",
		metric.WithDescription("Settled steps by result"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		logger.Warn("failed to create decisions counter", zap.Error(err))
	}
	return m
}

func (m *engineMetrics) recordSample(ctx context.Context, outcome string) {
	if m.samples != nil {
		m.samples.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (m *engineMetrics) recordStep(ctx context.Context, result string, attempts int) {
	attrs := metric.WithAttributes(attribute.String("result", result))
	if m.decisions != nil {
		m.decisions.Add(ctx, 1, attrs)
	}
	if m.attempts != nil {
		m.attempts.Record(ctx, int64(attempts), attrs)
	}
}
