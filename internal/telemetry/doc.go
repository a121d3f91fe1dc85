// Package telemetry wires OpenTelemetry tracing and metrics for maker.
//
// Spans and metrics are exported over OTLP (gRPC or HTTP) to a collector.
// The voting engine records one span per step and counts every sample by
// outcome, so a collector shows where attempts are spent.
//
//	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	engine := voting.NewEngine(gen, parser, vcfg,
//	    voting.WithTracer(tel.Tracer("maker.voting")),
//	    voting.WithMeter(tel.Meter("maker.voting")))
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  service_name: "maker"
//	  sample_rate: 1.0
//
// Export failures do not stop a run. The instance reports itself degraded
// and falls back to the global no-op providers.
//
// TestTelemetry records spans and metrics in memory for tests.
package telemetry
