// Package metrics exposes a per-node Prometheus registry mirroring the
// admin-stats JSON payload from spec.md §6, per SPEC_FULL §10. A fresh
// (non-default) registry is used per node so multiple nodes can run
// in-process during tests without collector-already-registered panics,
// the same pattern HM4704-proxima and cortex use for per-component
// registries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the gauges/counters a node reports.
type Collector struct {
	Registry *prometheus.Registry

	Hits        prometheus.Counter
	Misses      prometheus.Counter
	Puts        prometheus.Counter
	Deletes     prometheus.Counter
	LocalKeys   prometheus.Gauge
	ActivePeers prometheus.Gauge
}

// New builds a Collector and registers its metrics against a private
// registry.
func New(nodeID string) *Collector {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"node_id": nodeID}

	c := &Collector{
		Registry: reg,
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "distcache_cache_hits_total",
			Help:        "Total LocalStore cache hits.",
			ConstLabels: labels,
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "distcache_cache_misses_total",
			Help:        "Total LocalStore cache misses.",
			ConstLabels: labels,
		}),
		Puts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "distcache_puts_total",
			Help:        "Total LocalStore puts.",
			ConstLabels: labels,
		}),
		Deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "distcache_deletes_total",
			Help:        "Total LocalStore deletes.",
			ConstLabels: labels,
		}),
		LocalKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "distcache_local_key_count",
			Help:        "Current number of non-expired local entries.",
			ConstLabels: labels,
		}),
		ActivePeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "distcache_active_peers",
			Help:        "Current number of live peers in the membership table.",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(c.Hits, c.Misses, c.Puts, c.Deletes, c.LocalKeys, c.ActivePeers)
	return c
}

// CounterSnapshot holds absolute LocalStore counter values.
type CounterSnapshot struct {
	Hits, Misses, Puts, Deletes uint64
}

// Observe advances the counter metrics from absolute store values.
// Prometheus counters only go up, so each counter is advanced by the delta
// from the previous value passed in; since LocalStore's own counters are
// themselves monotonic for the lifetime of the process, this reduces to
// "add the difference since last call". It returns snap, to be passed back
// as the previous values on the next call.
func (c *Collector) Observe(prevHits, prevMisses, prevPuts, prevDeletes uint64, snap CounterSnapshot) CounterSnapshot {
	if snap.Hits > prevHits {
		c.Hits.Add(float64(snap.Hits - prevHits))
	}
	if snap.Misses > prevMisses {
		c.Misses.Add(float64(snap.Misses - prevMisses))
	}
	if snap.Puts > prevPuts {
		c.Puts.Add(float64(snap.Puts - prevPuts))
	}
	if snap.Deletes > prevDeletes {
		c.Deletes.Add(float64(snap.Deletes - prevDeletes))
	}
	return snap
}
