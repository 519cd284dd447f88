// Package metrics defines the query engine's Prometheus collectors.
//
// Collectors are registered on an explicit registerer; nothing is added to
// the global default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup outcomes.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	Queries             *prometheus.CounterVec
	SubQueries          prometheus.Counter
	PointGets           prometheus.Counter
	CacheLookups        *prometheus.CounterVec
	EmptyResults        prometheus.Counter
	IntegrityViolations prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Queries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "disjunct_queries_total",
				Help: "Queries executed, by strategy",
			},
			[]string{"strategy"},
		),
		SubQueries: f.NewCounter(prometheus.CounterOpts{
			Name: "disjunct_subqueries_total",
			Help: "Sub-queries sent to the store",
		}),
		PointGets: f.NewCounter(prometheus.CounterOpts{
			Name: "disjunct_point_gets_total",
			Help: "Batched point reads sent to the store",
		}),
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "disjunct_cache_lookups_total",
				Help: "Entity cache lookups, by outcome",
			},
			[]string{"outcome"},
		),
		EmptyResults: f.NewCounter(prometheus.CounterOpts{
			Name: "disjunct_empty_results_total",
			Help: "Queries answered as statically empty without store access",
		}),
		IntegrityViolations: f.NewCounter(prometheus.CounterOpts{
			Name: "disjunct_integrity_violations_total",
			Help: "Writes rejected by unique constraints",
		}),
	}
}

// NewUnregistered returns collectors that are not exported anywhere.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
