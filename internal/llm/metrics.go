package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "maker",
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Completion requests by provider and result (success, retry, error).",
	}, []string{"provider", "result"})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "maker",
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "Tokens reported by providers, split by direction.",
	}, []string{"provider", "direction"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "maker",
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "Latency of individual provider calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"provider"})
)
