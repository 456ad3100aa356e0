// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package client implements the client protocol handler: it dispatches typed
// client requests, validates and authorizes them, initiates controller
// conversations and produces terminal responses.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/broker"
	"github.com/gardener/sprinkler/pkg/broker/metrics"
	"github.com/gardener/sprinkler/pkg/protocol"
	"github.com/gardener/sprinkler/pkg/store"
)

// request carries everything a command handler needs for one inbound frame.
type request struct {
	channel protocol.Channel
	frame   *protocol.Frame
	// user is resolved from the channel attachment; nil only for the
	// unauthenticated hello/login handlers.
	user *core.User
	log  logr.Logger
}

// fail sends the *_FAIL envelope for the request's operation.
func (r *request) fail(code, message string) error {
	return r.channel.Send(protocol.NewFailure(r.frame.Type, code, message))
}

// succeed sends the *_SUCCESS envelope for the request's operation.
func (r *request) succeed(payload any) error {
	return r.channel.Send(protocol.NewSuccess(r.frame.Type, payload))
}

type handlerFn func(ctx context.Context, req *request) error

// Handler is the client protocol handler.
type Handler struct {
	broker   *broker.Broker
	log      logr.Logger
	handlers map[string]handlerFn
	// unauthenticated lists the frame types allowed on unattached channels.
	unauthenticated map[string]struct{}
}

// NewHandler builds the handler with its compile-time dispatch table.
func NewHandler(b *broker.Broker, log logr.Logger) *Handler {
	h := &Handler{
		broker: b,
		log:    log.WithName("client-handler"),
		unauthenticated: map[string]struct{}{
			protocol.TypeHelloUser: {},
			protocol.TypeLogin:     {},
		},
	}

	h.handlers = map[string]handlerFn{
		protocol.TypeHelloUser: h.helloUser,
		protocol.TypeLogin:     h.login,

		protocol.TypeCreateGarden:       h.createGarden,
		protocol.TypeGetUserGardens:     h.getUserGardens,
		protocol.TypeGetGardenDetails:   h.getGardenDetails,
		protocol.TypeSearchGardenByCode: h.searchGardenByCode,
		protocol.TypeJoinGarden:         h.joinGarden,
		protocol.TypeGetGardenMembers:   h.getGardenMembers,
		protocol.TypeLeaveGarden:        h.leaveGarden,
		protocol.TypeUpdateGarden:       h.updateGarden,

		protocol.TypeAddPlant:           h.addPlant,
		protocol.TypeUpdatePlantDetails: h.updatePlantDetails,
		protocol.TypeDeletePlant:        h.deletePlant,
		protocol.TypeUpdatePlantSched:   h.updatePlantSchedule,
		protocol.TypeGetIrrigationRes:   h.getIrrigationResult,

		protocol.TypeIrrigatePlant:  h.irrigatePlant,
		protocol.TypeStopIrrigation: h.stopIrrigation,
		protocol.TypeOpenValve:      h.openValve,
		protocol.TypeCloseValve:     h.closeValve,
		protocol.TypeRestartValve:   h.restartValve,
		protocol.TypeGetValveStatus: h.getValveStatus,
		protocol.TypeUnblockValve:   h.unblockValve,
		protocol.TypeTestValveBlock: h.testValveBlock,

		protocol.TypeGetPlantMoisture: h.getPlantMoisture,
		protocol.TypeGetAllMoisture:   h.getAllMoisture,
	}

	return h
}

// HandleFrame processes one raw inbound frame from a client channel. Frames of
// a single channel are processed strictly in order by the transport.
func (h *Handler) HandleFrame(ctx context.Context, channel protocol.Channel, raw []byte) {
	frame, err := protocol.Decode(raw)
	if err != nil {
		_ = channel.Send(protocol.New(protocol.TypeError, protocol.Failure{
			Code:    protocol.CodeInvalidJSON,
			Message: "malformed frame",
		}))
		return
	}

	metrics.FramesHandled.WithLabelValues("client", frame.Type).Inc()

	handler, known := h.handlers[frame.Type]
	if !known {
		_ = channel.Send(protocol.New(protocol.TypeError, protocol.Failure{
			Code:    protocol.CodeUnknownType,
			Message: fmt.Sprintf("unknown message type %q", frame.Type),
		}))
		return
	}

	req := &request{channel: channel, frame: frame, log: h.log.WithValues("type", frame.Type)}

	if _, open := h.unauthenticated[frame.Type]; !open {
		email := h.broker.Registry.EmailByChannel(channel)
		if email == "" {
			_ = req.fail(protocol.CodeUnauthorized, "channel is not attached to a user")
			return
		}
		user, err := h.broker.Store.Users().GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				_ = req.fail(protocol.CodeUnauthorized, "unknown user")
				return
			}
			_ = req.fail(protocol.CodeDatabaseError, "cannot load user")
			return
		}
		req.user = user
		req.log = req.log.WithValues("email", user.Email)
	}

	if err := handler(ctx, req); err != nil {
		req.log.Error(err, "Client request failed")
	}
}

// HandleClose detaches a closed channel from the registry. Pending correlations
// of the user remain until matched or expired.
func (h *Handler) HandleClose(channel protocol.Channel) {
	h.broker.Registry.DetachClient(channel)
	h.broker.UpdateGauges()
}

// requireMembership loads the caller's active membership of the given garden.
func (h *Handler) requireMembership(ctx context.Context, req *request, gardenID int64) (*core.Membership, error) {
	membership, err := h.broker.Store.Memberships().Get(ctx, req.user.ID, gardenID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, req.fail(protocol.CodeNotMember, "you are not a member of this garden")
		}
		return nil, req.fail(protocol.CodeDatabaseError, "cannot load membership")
	}
	if !membership.Active {
		return nil, req.fail(protocol.CodeNotMember, "you are not a member of this garden")
	}
	return membership, nil
}

// plantOfCaller resolves a plant by name within the caller's active garden and
// verifies membership on the way.
func (h *Handler) plantOfCaller(ctx context.Context, req *request, plantName string) (*core.Plant, error) {
	membership, err := h.broker.Store.Memberships().ActiveByUser(ctx, req.user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, req.fail(protocol.CodeNotMember, "you are not a member of any garden")
		}
		return nil, req.fail(protocol.CodeDatabaseError, "cannot load membership")
	}

	plant, err := h.broker.Store.Plants().GetByName(ctx, membership.GardenID, plantName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, req.fail(protocol.CodePlantNotFound, fmt.Sprintf("no plant named %q in your garden", plantName))
		}
		return nil, req.fail(protocol.CodeDatabaseError, "cannot load plant")
	}
	return plant, nil
}
