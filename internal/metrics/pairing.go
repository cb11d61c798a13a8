// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics for the pairing service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No session_id or phone labels: cardinality must stay bounded.

var (
	pairingRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webpair_pairing_requests_total",
		Help: "Pairing-code requests by outcome (ok, invalid_number, already_registered, failed, setup_failed, capacity, shutting_down).",
	}, []string{"outcome"})

	pairingRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webpair_pairing_retries_total",
		Help: "Pairing-code requests retried with the default country code.",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webpair_sessions_active",
		Help: "Number of live pairing sessions.",
	})

	sessionEndTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webpair_session_end_total",
		Help: "Sessions removed from the registry, by final state and reason.",
	}, []string{"state", "reason"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webpair_transitions_total",
		Help: "Lifecycle state transitions.",
	}, []string{"from", "to"})

	exportDeliveryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webpair_export_delivery_total",
		Help: "Session export deliveries by outcome (delivered, failed, encode_failed).",
	}, []string{"outcome"})

	cleanupFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webpair_cleanup_failures_total",
		Help: "Errors while releasing session resources, by resource (connection, storage).",
	}, []string{"resource"})

	sweepRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webpair_sweep_removed_total",
		Help: "Sessions force-released by the periodic sweep.",
	})

	sweepOrphansPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webpair_sweep_orphans_purged_total",
		Help: "Orphaned credential storage entries purged by the sweep.",
	})
)

func RecordPairingRequest(outcome string) {
	pairingRequestsTotal.WithLabelValues(outcome).Inc()
}

func RecordPairingRetry() {
	pairingRetriesTotal.Inc()
}

func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

// RecordSessionEnd counts a session leaving the registry.
func RecordSessionEnd(state, reason string) {
	if reason == "" {
		reason = "none"
	}
	sessionEndTotal.WithLabelValues(state, reason).Inc()
}

func RecordTransition(from, to string) {
	transitionsTotal.WithLabelValues(from, to).Inc()
}

func RecordExportDelivery(outcome string) {
	exportDeliveryTotal.WithLabelValues(outcome).Inc()
}

func RecordCleanupFailure(resource string) {
	cleanupFailuresTotal.WithLabelValues(resource).Inc()
}

func RecordSweep(removed, orphans int) {
	sweepRemovedTotal.Add(float64(removed))
	sweepOrphansPurgedTotal.Add(float64(orphans))
}
