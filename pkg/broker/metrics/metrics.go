// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sprinkler"

var (
	// AttachedClients is the number of currently attached client channels.
	AttachedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "attached_clients",
		Help:      "Number of currently attached client channels.",
	})

	// BoundControllers is the number of currently bound controller channels.
	BoundControllers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bound_controllers",
		Help:      "Number of currently bound controller channels.",
	})

	// PendingCorrelations is the number of live pending correlations per family.
	PendingCorrelations = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_correlations",
		Help:      "Number of live pending correlations per operation family.",
	}, []string{"family"})

	// SweepEvictions counts pending correlations evicted by the supervisor.
	SweepEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_evictions_total",
		Help:      "Total number of pending correlations evicted at their deadline.",
	}, []string{"family"})

	// FramesHandled counts processed inbound frames by origin and type.
	FramesHandled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_handled_total",
		Help:      "Total number of inbound frames handled, by origin and frame type.",
	}, []string{"origin", "type"})

	// BroadcastsSent counts garden broadcast deliveries by event type.
	BroadcastsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcasts_sent_total",
		Help:      "Total number of garden broadcast deliveries, by event type.",
	}, []string{"type"})
)

// Register registers all broker metrics with the given registerer.
func Register(registerer prometheus.Registerer) {
	registerer.MustRegister(
		AttachedClients,
		BoundControllers,
		PendingCorrelations,
		SweepEvictions,
		FramesHandled,
		BroadcastsSent,
	)
}
