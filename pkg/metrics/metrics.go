// Package metrics defines the coordinator's Prometheus instrumentation,
// registered into an explicit registry rather than the global default so a
// process embedding multiple coordinators never collides on metric names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set bundles every metric the coordinator and participant emit.
type Set struct {
	Registry *prometheus.Registry

	TxsInitiated *prometheus.CounterVec
	TxsCommitted *prometheus.CounterVec
	TxsAborted   *prometheus.CounterVec
	TxDuration   *prometheus.HistogramVec
	LockConflicts *prometheus.CounterVec
	Deadlocks    prometheus.Counter
	ReplicaFailovers prometheus.Counter
	PeerHeartbeats *prometheus.CounterVec
}

// New builds a fresh metric Set registered into a new, private registry.
// Registration is first-init-wins: constructing a second Set never panics
// on a duplicate-collector error because each Set owns its own registry.
func New() *Set {
	reg := prometheus.NewRegistry()
	s := &Set{
		Registry: reg,
		TxsInitiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xshard_txs_initiated_total",
			Help: "Cross-shard transactions initiated, by local shard.",
		}, []string{"shard"}),
		TxsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xshard_txs_committed_total",
			Help: "Cross-shard transactions that reached commit.",
		}, []string{"shard"}),
		TxsAborted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xshard_txs_aborted_total",
			Help: "Cross-shard transactions that reached abort, by reason.",
		}, []string{"shard", "reason"}),
		TxDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xshard_tx_duration_seconds",
			Help:    "Wall time spent in each 2PC phase.",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		LockConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xshard_lock_conflicts_total",
			Help: "Resource lock acquisition conflicts observed.",
		}, []string{"shard"}),
		Deadlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xshard_deadlocks_detected_total",
			Help: "Deadlocks detected by the lock graph.",
		}),
		ReplicaFailovers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xshard_replica_failovers_total",
			Help: "Coordinator replica primary failovers.",
		}),
		PeerHeartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xshard_peer_heartbeats_total",
			Help: "Valid shard-level heartbeats received, by sending shard.",
		}, []string{"shard"}),
	}

	reg.MustRegister(
		s.TxsInitiated,
		s.TxsCommitted,
		s.TxsAborted,
		s.TxDuration,
		s.LockConflicts,
		s.Deadlocks,
		s.ReplicaFailovers,
		s.PeerHeartbeats,
	)
	return s
}
