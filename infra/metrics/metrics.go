// Package metrics exposes pool and pipeline health to Prometheus.
// The pool gauges read straight from pool.Stats, so everything the
// counters report is advisory the same way Available is.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"slabpool/pool"
)

// Collector registers pool gauges plus pipeline counters on a
// registry. One Collector per pool.
type Collector struct {
	Spills    prometheus.Counter
	Drains    prometheus.Counter
	Published prometheus.Counter
}

func NewCollector(reg prometheus.Registerer, stats func() pool.Stats, ringLen func() int) *Collector {
	f := promauto.With(reg)

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "slabpool_slots_available",
		Help: "Advisory free-slot count of the pool.",
	}, func() float64 { return float64(stats().Available) })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "slabpool_slots_capacity",
		Help: "Fixed slot capacity of the pool.",
	}, func() float64 { return float64(stats().Capacity) })

	f.NewCounterFunc(prometheus.CounterOpts{
		Name: "slabpool_claims_total",
		Help: "Successful slot claims.",
	}, func() float64 { return float64(stats().Claims) })

	f.NewCounterFunc(prometheus.CounterOpts{
		Name: "slabpool_releases_total",
		Help: "Slots returned to the free list.",
	}, func() float64 { return float64(stats().Releases) })

	f.NewCounterFunc(prometheus.CounterOpts{
		Name: "slabpool_exhausted_total",
		Help: "Constructs that observed an empty free list.",
	}, func() float64 { return float64(stats().Exhausted) })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "slabpool_ring_depth",
		Help: "Handles waiting in the handoff ring.",
	}, func() float64 { return float64(ringLen()) })

	return &Collector{
		Spills: f.NewCounter(prometheus.CounterOpts{
			Name: "slabpool_spills_total",
			Help: "Events diverted to the overflow journal.",
		}),
		Drains: f.NewCounter(prometheus.CounterOpts{
			Name: "slabpool_drains_total",
			Help: "Journal records drained back out.",
		}),
		Published: f.NewCounter(prometheus.CounterOpts{
			Name: "slabpool_published_total",
			Help: "Events published on the live path.",
		}),
	}
}
