package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stepgrid_cache_lookups_total",
		Help: "Cache lookups by step and result (hit, miss, error)",
	}, []string{"step", "result"})

	writesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stepgrid_cache_writes_total",
		Help: "Cache writes by step and result (ok, error)",
	}, []string{"step", "result"})

	invalidatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stepgrid_cache_invalidated_entries_total",
		Help: "Entries removed by invalidation",
	})

	sharedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stepgrid_cache_shared_computations_total",
		Help: "Computations whose result was shared with concurrent callers",
	})
)
