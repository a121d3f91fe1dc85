package task

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var selectorFallbacks = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "maker",
	Subsystem: "task",
	Name:      "selector_fallbacks_total",
	Help:      "Step type selections that named no known type and fell back to the first.",
})
