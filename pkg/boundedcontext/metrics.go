package boundedcontext

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foundation_boundedcontext_executions_total",
		Help: "Bounded context executions by context name and result",
	}, []string{"context", "result"})
	executionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foundation_boundedcontext_execution_duration_seconds",
		Help:    "Time spent executing bounded context handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"context"})
	eventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foundation_boundedcontext_event_publish_failures_total",
		Help: "Domain events that could not be published, by context name",
	}, []string{"context"})
)

func observeExecution(name string, success bool, seconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	executionsTotal.WithLabelValues(name, result).Inc()
	executionDuration.WithLabelValues(name).Observe(seconds)
}
