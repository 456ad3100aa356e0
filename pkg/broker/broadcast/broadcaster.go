// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package broadcast

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"

	"github.com/gardener/sprinkler/pkg/broker/metrics"
	"github.com/gardener/sprinkler/pkg/broker/registry"
	"github.com/gardener/sprinkler/pkg/protocol"
	"github.com/gardener/sprinkler/pkg/store"
	"github.com/gardener/sprinkler/pkg/utils"
)

// Broadcaster publishes events to all active client channels sharing a garden.
type Broadcaster struct {
	memberships store.Memberships
	registry    *registry.SessionRegistry
	log         logr.Logger
}

// New creates a Broadcaster.
func New(memberships store.Memberships, reg *registry.SessionRegistry, log logr.Logger) *Broadcaster {
	return &Broadcaster{memberships: memberships, registry: reg, log: log.WithName("broadcaster")}
}

// Broadcast serializes the envelope once and writes it to every resolved member
// channel, optionally excluding one initiator. Per-channel failures are logged
// and aggregated, never propagated to the triggering operation; the returned
// error exists for observability only.
func (b *Broadcaster) Broadcast(ctx context.Context, gardenID int64, eventType string, payload any, exceptEmail string) error {
	emails, err := b.memberships.ActiveMemberEmails(ctx, gardenID)
	if err != nil {
		b.log.Error(err, "Cannot resolve garden members for broadcast", "gardenID", gardenID, "type", eventType)
		return err
	}

	frame := protocol.New(eventType, payload)
	exceptEmail = utils.NormalizeEmail(exceptEmail)

	var allErrs *multierror.Error
	for _, email := range emails {
		if exceptEmail != "" && email == exceptEmail {
			continue
		}
		channel := b.registry.ChannelByEmail(email)
		if channel == nil {
			continue
		}
		if err := channel.Send(frame); err != nil {
			b.log.Error(err, "Broadcast delivery failed", "gardenID", gardenID, "type", eventType, "email", email)
			allErrs = multierror.Append(allErrs, err)
			continue
		}
		metrics.BroadcastsSent.WithLabelValues(eventType).Inc()
	}
	return allErrs.ErrorOrNil()
}
