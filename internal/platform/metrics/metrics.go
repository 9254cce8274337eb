// Package metrics holds the Prometheus collectors shared by the
// infrastructure adapters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	messagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foundation_messages_published_total",
		Help: "Total number of messages published, by transport",
	}, []string{"transport"})
	messagesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foundation_messages_consumed_total",
		Help: "Total number of messages delivered to handlers, by transport",
	}, []string{"transport"})
	messageHandlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foundation_message_handler_failures_total",
		Help: "Total number of consumed messages whose handler returned an error",
	}, []string{"transport"})
	messagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foundation_messages_dropped_total",
		Help: "Total number of messages discarded before reaching a handler, by transport and reason",
	}, []string{"transport", "reason"})
	connectionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foundation_connections_opened_total",
		Help: "Total number of connections opened by the bootstrap, by registry key",
	}, []string{"key"})
	healthCheckFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foundation_health_check_failures_total",
		Help: "Total number of failed connection health checks, by registry key",
	}, []string{"key"})
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foundation_cache_lookups_total",
		Help: "Cache lookups by backend and result (hit or miss)",
	}, []string{"backend", "result"})
)

func IncrementPublished(transport string) {
	messagesPublished.WithLabelValues(transport).Inc()
}

func IncrementConsumed(transport string) {
	messagesConsumed.WithLabelValues(transport).Inc()
}

func IncrementHandlerFailures(transport string) {
	messageHandlerFailures.WithLabelValues(transport).Inc()
}

func IncrementDropped(transport, reason string) {
	messagesDropped.WithLabelValues(transport, reason).Inc()
}

func IncrementConnectionsOpened(key string) {
	connectionsOpened.WithLabelValues(key).Inc()
}

func IncrementHealthCheckFailures(key string) {
	healthCheckFailures.WithLabelValues(key).Inc()
}

// ObserveCacheLookup records a cache hit or miss for backend.
func ObserveCacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(backend, result).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
