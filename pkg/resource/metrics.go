package resource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foundation_resource_registrations_total",
		Help: "Total number of resource handles registered",
	})
	unregistrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foundation_resource_unregistrations_total",
		Help: "Total number of resource handles removed from a registry",
	})
	lookupMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foundation_resource_lookup_misses_total",
		Help: "Total number of registry lookups for absent keys",
	})
)
