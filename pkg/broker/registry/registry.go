// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/gardener/sprinkler/pkg/protocol"
	"github.com/gardener/sprinkler/pkg/utils"
)

// SessionRegistry maps client identities to open channels and gardens to their
// bound controller channel. It is the single owner of channel references; every
// other component resolves channels through it at delivery time.
type SessionRegistry struct {
	clock clock.Clock

	// lock guards all maps below.
	lock sync.RWMutex

	clientByEmail  map[string]protocol.Channel
	emailByChannel map[string]string

	controllerByGarden map[int64]*controllerBinding
	gardenByChannel    map[string]int64
}

// controllerBinding is the per-garden controller channel with its metadata.
type controllerBinding struct {
	channel    protocol.Channel
	familyCode string
	lastSeen   time.Time
}

// ControllerInfo is a read-only snapshot of a controller binding.
type ControllerInfo struct {
	GardenID   int64
	ChannelID  string
	FamilyCode string
	LastSeen   time.Time
}

// New creates an empty SessionRegistry.
func New(clk clock.Clock) *SessionRegistry {
	return &SessionRegistry{
		clock:              clk,
		clientByEmail:      make(map[string]protocol.Channel),
		emailByChannel:     make(map[string]string),
		controllerByGarden: make(map[int64]*controllerBinding),
		gardenByChannel:    make(map[string]int64),
	}
}

// AttachClient binds a channel to a user identity. If another channel is already
// bound to the same email it is closed with a replacement code and returned.
func (r *SessionRegistry) AttachClient(channel protocol.Channel, email string) protocol.Channel {
	email = utils.NormalizeEmail(email)

	r.lock.Lock()
	old, hadOld := r.clientByEmail[email]
	if hadOld && old.ID() == channel.ID() {
		r.lock.Unlock()
		return nil
	}
	if hadOld {
		delete(r.emailByChannel, old.ID())
	}
	r.clientByEmail[email] = channel
	r.emailByChannel[channel.ID()] = email
	r.lock.Unlock()

	if hadOld {
		_ = old.Close(protocol.CloseCodeReplaced, "replaced by a newer connection")
		return old
	}
	return nil
}

// DetachClient removes a channel from both directions. Idempotent. If the channel
// was replaced in the meantime, the newer binding is left untouched.
func (r *SessionRegistry) DetachClient(channel protocol.Channel) {
	r.lock.Lock()
	defer r.lock.Unlock()

	email, ok := r.emailByChannel[channel.ID()]
	if !ok {
		return
	}
	delete(r.emailByChannel, channel.ID())
	if bound, ok := r.clientByEmail[email]; ok && bound.ID() == channel.ID() {
		delete(r.clientByEmail, email)
	}
}

// ChannelByEmail returns the open channel bound to the given email, or nil.
func (r *SessionRegistry) ChannelByEmail(email string) protocol.Channel {
	r.lock.RLock()
	defer r.lock.RUnlock()

	channel, ok := r.clientByEmail[utils.NormalizeEmail(email)]
	if !ok || !channel.IsOpen() {
		return nil
	}
	return channel
}

// EmailByChannel returns the email bound to the given channel, or "".
func (r *SessionRegistry) EmailByChannel(channel protocol.Channel) string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.emailByChannel[channel.ID()]
}

// BindController binds a controller channel to a garden. A previously bound
// different channel is closed with a replacement code.
func (r *SessionRegistry) BindController(gardenID int64, channel protocol.Channel, familyCode string) {
	r.lock.Lock()
	old := r.controllerByGarden[gardenID]
	if old != nil && old.channel.ID() == channel.ID() {
		old.familyCode = familyCode
		old.lastSeen = r.clock.Now()
		r.lock.Unlock()
		return
	}
	if old != nil {
		delete(r.gardenByChannel, old.channel.ID())
	}
	r.controllerByGarden[gardenID] = &controllerBinding{
		channel:    channel,
		familyCode: familyCode,
		lastSeen:   r.clock.Now(),
	}
	r.gardenByChannel[channel.ID()] = gardenID
	r.lock.Unlock()

	if old != nil {
		_ = old.channel.Close(protocol.CloseCodeReplaced, "replaced by a newer controller connection")
	}
}

// ControllerByGarden returns the OPEN controller channel for a garden, or nil.
func (r *SessionRegistry) ControllerByGarden(gardenID int64) protocol.Channel {
	r.lock.RLock()
	defer r.lock.RUnlock()

	binding, ok := r.controllerByGarden[gardenID]
	if !ok || !binding.channel.IsOpen() {
		return nil
	}
	return binding.channel
}

// GardenByController returns the garden the given controller channel is bound to.
func (r *SessionRegistry) GardenByController(channel protocol.Channel) (int64, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	gardenID, ok := r.gardenByChannel[channel.ID()]
	return gardenID, ok
}

// Heartbeat refreshes the last-seen timestamp of a garden's controller binding.
func (r *SessionRegistry) Heartbeat(gardenID int64, channel protocol.Channel) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if binding, ok := r.controllerByGarden[gardenID]; ok && binding.channel.ID() == channel.ID() {
		binding.lastSeen = r.clock.Now()
	}
}

// UnbindController removes a controller binding by reverse lookup on the channel.
// Idempotent; a newer binding for the same garden is left untouched.
func (r *SessionRegistry) UnbindController(channel protocol.Channel) {
	r.lock.Lock()
	defer r.lock.Unlock()

	gardenID, ok := r.gardenByChannel[channel.ID()]
	if !ok {
		return
	}
	delete(r.gardenByChannel, channel.ID())
	if binding, ok := r.controllerByGarden[gardenID]; ok && binding.channel.ID() == channel.ID() {
		delete(r.controllerByGarden, gardenID)
	}
}

// StaleControllers returns controllers whose last-seen is older than the given
// threshold, for the supervisor's optional eviction.
func (r *SessionRegistry) StaleControllers(threshold time.Duration) []ControllerInfo {
	now := r.clock.Now()

	r.lock.RLock()
	defer r.lock.RUnlock()

	var stale []ControllerInfo
	for gardenID, binding := range r.controllerByGarden {
		if now.Sub(binding.lastSeen) > threshold {
			stale = append(stale, ControllerInfo{
				GardenID:   gardenID,
				ChannelID:  binding.channel.ID(),
				FamilyCode: binding.familyCode,
				LastSeen:   binding.lastSeen,
			})
		}
	}
	return stale
}

// EvictController closes and unbinds the controller of the given garden if it is
// still the channel identified by channelID.
func (r *SessionRegistry) EvictController(gardenID int64, channelID string) {
	r.lock.Lock()
	binding, ok := r.controllerByGarden[gardenID]
	if !ok || binding.channel.ID() != channelID {
		r.lock.Unlock()
		return
	}
	delete(r.controllerByGarden, gardenID)
	delete(r.gardenByChannel, channelID)
	r.lock.Unlock()

	_ = binding.channel.Close(protocol.CloseCodeStale, "controller heartbeat timed out")
}

// ClientCount returns the number of attached client channels.
func (r *SessionRegistry) ClientCount() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.clientByEmail)
}

// ControllerCount returns the number of bound controller channels.
func (r *SessionRegistry) ControllerCount() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.controllerByGarden)
}
