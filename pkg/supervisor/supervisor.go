// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package supervisor garbage-collects expired pending correlations and,
// optionally, evicts stale controller channels.
package supervisor

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/gardener/sprinkler/pkg/broker"
	"github.com/gardener/sprinkler/pkg/broker/metrics"
	"github.com/gardener/sprinkler/pkg/broker/pending"
	"github.com/gardener/sprinkler/pkg/protocol"
)

// Options configures the supervisor.
type Options struct {
	// SweepInterval is the interval between sweeps over all pending tables.
	SweepInterval time.Duration
	// EvictStaleControllers enables closing controllers whose last heartbeat is
	// older than StaleThreshold. Off by default.
	EvictStaleControllers bool
	// StaleThreshold is the heartbeat age beyond which controllers are evicted.
	StaleThreshold time.Duration
}

// Supervisor runs the periodic cleanup loops.
type Supervisor struct {
	broker  *broker.Broker
	options Options
	log     logr.Logger
}

// New creates a Supervisor.
func New(b *broker.Broker, options Options, log logr.Logger) *Supervisor {
	return &Supervisor{broker: b, options: options, log: log.WithName("supervisor")}
}

// Start runs the sweep loop until the context is cancelled. It blocks.
func (s *Supervisor) Start(ctx context.Context) {
	s.log.Info("Supervisor starting", "sweepInterval", s.options.SweepInterval, "evictStaleControllers", s.options.EvictStaleControllers)

	wait.JitterUntilWithContext(ctx, func(ctx context.Context) {
		s.SweepOnce(ctx)
		if s.options.EvictStaleControllers {
			s.EvictStaleControllers()
		}
	}, s.options.SweepInterval, 0.1, false)

	s.log.Info("Supervisor stopped")
}

// SweepOnce scans every pending table, drops expired entries and synthesizes a
// timeout failure on the originator's channel when it is still open.
func (s *Supervisor) SweepOnce(ctx context.Context) {
	for _, table := range s.broker.Tables() {
		expired := table.Sweep()
		if len(expired) == 0 {
			continue
		}

		metrics.SweepEvictions.WithLabelValues(string(table.Family())).Add(float64(len(expired)))

		for _, entry := range expired {
			s.log.Info("Evicted expired pending correlation",
				"family", table.Family(), "key", entry.Key, "email", entry.Context.Email, "operation", entry.Context.Operation,
				"age", s.broker.Clock.Since(entry.Context.LastActive))
			// An evicted irrigation has no terminal response coming; without a
			// clear, reconnecting clients would rehydrate an armed state forever.
			if table.Family() == pending.FamilyIrrigation && entry.Context.PlantID != 0 {
				if err := s.broker.Store.States().Clear(ctx, entry.Context.PlantID); err != nil {
					s.log.Error(err, "Cannot clear irrigation state of evicted correlation", "plantID", entry.Context.PlantID)
				}
			}
			s.notifyTimeout(table.Family(), entry.Context)
		}
	}
	s.broker.UpdateGauges()
}

// notifyTimeout delivers the synthesized *_FAIL to the originator, best-effort.
func (s *Supervisor) notifyTimeout(family pending.Family, corr pending.Context) {
	if corr.Operation == "" {
		return
	}
	payload := protocol.NewFailure(corr.Operation, protocol.CodeTimeout, "the garden controller did not answer in time")
	if !s.broker.SendToClient(corr.Email, payload) {
		s.log.V(1).Info("Timeout notification skipped, originator absent", "family", family, "email", corr.Email)
	}
}

// EvictStaleControllers closes controller channels whose last heartbeat is
// older than the configured threshold.
func (s *Supervisor) EvictStaleControllers() {
	for _, info := range s.broker.Registry.StaleControllers(s.options.StaleThreshold) {
		s.log.Info("Evicting stale controller", "gardenID", info.GardenID, "lastSeen", info.LastSeen)
		s.broker.Registry.EvictController(info.GardenID, info.ChannelID)
	}
	s.broker.UpdateGauges()
}
