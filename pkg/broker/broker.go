// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package broker wires the session registry, the pending correlation tables and
// the garden broadcaster into a single façade. Both protocol handlers take the
// façade instead of referencing each other.
package broker

import (
	"errors"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/gardener/sprinkler/pkg/broker/broadcast"
	"github.com/gardener/sprinkler/pkg/broker/metrics"
	"github.com/gardener/sprinkler/pkg/broker/pending"
	"github.com/gardener/sprinkler/pkg/broker/registry"
	"github.com/gardener/sprinkler/pkg/mail"
	"github.com/gardener/sprinkler/pkg/protocol"
	"github.com/gardener/sprinkler/pkg/store"
	"github.com/gardener/sprinkler/pkg/weather"
)

// ErrControllerOffline is returned when a command targets a garden without an
// open controller channel.
var ErrControllerOffline = errors.New("no controller connected for garden")

// Deadlines holds the per-family pending correlation deadlines.
type Deadlines struct {
	Irrigation time.Duration
	Moisture   time.Duration
	Assignment time.Duration
	Update     time.Duration
	Deletion   time.Duration
}

// Broker owns all in-memory brokering state and the collaborator contracts the
// protocol handlers need.
type Broker struct {
	Registry    *registry.SessionRegistry
	Broadcaster *broadcast.Broadcaster
	Store       store.Interface
	Geocoder    weather.Geocoder
	Notifier    mail.Notifier
	Clock       clock.Clock

	irrigation *pending.Table
	moisture   *pending.Table
	assignment *pending.Table
	update     *pending.Table
	deletion   *pending.Table

	log logr.Logger
}

// New creates a Broker with one pending table per operation family.
func New(st store.Interface, geocoder weather.Geocoder, notifier mail.Notifier, clk clock.Clock, deadlines Deadlines, log logr.Logger) *Broker {
	reg := registry.New(clk)
	return &Broker{
		Registry:    reg,
		Broadcaster: broadcast.New(st.Memberships(), reg, log),
		Store:       st,
		Geocoder:    geocoder,
		Notifier:    notifier,
		Clock:       clk,

		irrigation: pending.NewTable(pending.FamilyIrrigation, deadlines.Irrigation, clk),
		moisture:   pending.NewTable(pending.FamilyMoisture, deadlines.Moisture, clk),
		assignment: pending.NewTable(pending.FamilyAssignment, deadlines.Assignment, clk),
		update:     pending.NewTable(pending.FamilyUpdate, deadlines.Update, clk),
		deletion:   pending.NewTable(pending.FamilyDeletion, deadlines.Deletion, clk),

		log: log.WithName("broker"),
	}
}

// Irrigation returns the irrigation correlation table.
func (b *Broker) Irrigation() *pending.Table { return b.irrigation }

// Moisture returns the moisture correlation table.
func (b *Broker) Moisture() *pending.Table { return b.moisture }

// Assignment returns the hardware assignment correlation table.
func (b *Broker) Assignment() *pending.Table { return b.assignment }

// Update returns the plant update correlation table.
func (b *Broker) Update() *pending.Table { return b.update }

// Deletion returns the plant deletion correlation table.
func (b *Broker) Deletion() *pending.Table { return b.deletion }

// Tables returns all pending correlation tables, for the supervisor sweep.
func (b *Broker) Tables() []*pending.Table {
	return []*pending.Table{b.irrigation, b.moisture, b.assignment, b.update, b.deletion}
}

// SendToClient delivers a frame to the client identified by email, if it has an
// open channel. Returns false when the client is absent; delivery to absent
// originators is skipped by design of the correlation model.
func (b *Broker) SendToClient(email string, frame *protocol.Frame) bool {
	channel := b.Registry.ChannelByEmail(email)
	if channel == nil {
		return false
	}
	if err := channel.Send(frame); err != nil {
		b.log.Error(err, "Cannot deliver frame to client", "email", email, "type", frame.Type)
		return false
	}
	return true
}

// SendToController delivers a frame to the controller bound to the garden.
func (b *Broker) SendToController(gardenID int64, frame *protocol.Frame) error {
	channel := b.Registry.ControllerByGarden(gardenID)
	if channel == nil {
		return ErrControllerOffline
	}
	if err := channel.Send(frame); err != nil {
		return err
	}
	return nil
}

// UpdateGauges refreshes the registry and pending-table gauges. Called after
// attach/detach and by the supervisor sweep.
func (b *Broker) UpdateGauges() {
	metrics.AttachedClients.Set(float64(b.Registry.ClientCount()))
	metrics.BoundControllers.Set(float64(b.Registry.ControllerCount()))
	for _, table := range b.Tables() {
		metrics.PendingCorrelations.WithLabelValues(string(table.Family())).Set(float64(table.Len()))
	}
}

// Log returns the broker's logger.
func (b *Broker) Log() logr.Logger { return b.log }
