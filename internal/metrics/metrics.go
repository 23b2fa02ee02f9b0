// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics defines the Prometheus instrumentation shared across the
// restreamer: process supervision, SRS callbacks, hot tuning and persistence.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProcessSpawns counts FFmpeg child launches per descriptor kind.
	ProcessSpawns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "restreamer",
		Name:      "process_spawns_total",
		Help:      "Total FFmpeg child process launches",
	}, []string{"kind"})

	// ProcessExits counts FFmpeg child exits by classification.
	ProcessExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "restreamer",
		Name:      "process_exits_total",
		Help:      "Total FFmpeg child process exits by resulting status",
	}, []string{"kind", "status"})

	// ProcessesRunning tracks the current size of the supervised pool.
	ProcessesRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "restreamer",
		Name:      "processes_running",
		Help:      "Current number of supervised FFmpeg processes",
	})

	// PoolReconciliations counts reconciliation passes over the restreams cell.
	PoolReconciliations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "restreamer",
		Name:      "pool_reconciliations_total",
		Help:      "Total process pool reconciliation passes",
	})

	// CallbackRequests counts SRS callback events by action and result.
	CallbackRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "restreamer",
		Name:      "callback_requests_total",
		Help:      "Total SRS callback requests by action and result",
	}, []string{"action", "result"})

	// TuneRequests counts control-socket volume tunes by result.
	TuneRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "restreamer",
		Name:      "tune_requests_total",
		Help:      "Total ZeroMQ volume tune requests by result",
	}, []string{"result"})

	// StatePersists counts state snapshot writes by result.
	StatePersists = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "restreamer",
		Name:      "state_persists_total",
		Help:      "Total state snapshot persist attempts by result",
	}, []string{"result"})

	// PeerPolls counts statistics polls against sibling servers.
	PeerPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "restreamer",
		Name:      "peer_polls_total",
		Help:      "Total statistics polls against peer servers by result",
	}, []string{"result"})
)

// RecordProcessSpawn records one child launch of the given descriptor kind.
func RecordProcessSpawn(kind string) {
	ProcessSpawns.WithLabelValues(kind).Inc()
}

// RecordProcessExit records one child exit with its resulting status.
func RecordProcessExit(kind, status string) {
	ProcessExits.WithLabelValues(kind, status).Inc()
}

// RecordCallback records one SRS callback with its result ("ok" or "rejected").
func RecordCallback(action, result string) {
	CallbackRequests.WithLabelValues(action, result).Inc()
}

// RecordTune records one control-socket tune attempt.
func RecordTune(result string) {
	TuneRequests.WithLabelValues(result).Inc()
}

// RecordStatePersist records one snapshot write attempt.
func RecordStatePersist(result string) {
	StatePersists.WithLabelValues(result).Inc()
}

// RecordPeerPoll records one peer statistics poll attempt.
func RecordPeerPoll(result string) {
	PeerPolls.WithLabelValues(result).Inc()
}
