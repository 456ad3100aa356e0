// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/protocol"
	"github.com/gardener/sprinkler/pkg/store"
	"github.com/gardener/sprinkler/pkg/utils"
)

type helloUserRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type attachResponse struct {
	Email       string      `json:"email"`
	DisplayName string      `json:"displayName"`
	Plants      []plantView `json:"plants,omitempty"`
}

// helloUser attaches an already-authenticated identity to the channel. Token
// validation happens in the outer authentication layer; this frame carries the
// resulting identity.
func (h *Handler) helloUser(ctx context.Context, req *request) error {
	var payload helloUserRequest
	if err := req.frame.Into(&payload); err != nil {
		return req.fail(protocol.CodeInvalidRequest, "invalid payload")
	}
	if payload.Email == "" {
		return req.fail(protocol.CodeInvalidRequest, "email is required")
	}
	return h.attach(ctx, req, payload.Email)
}

// login verifies the password against the stored hash and attaches the channel.
func (h *Handler) login(ctx context.Context, req *request) error {
	var payload loginRequest
	if err := req.frame.Into(&payload); err != nil {
		return req.fail(protocol.CodeInvalidRequest, "invalid payload")
	}
	if payload.Email == "" || payload.Password == "" {
		return req.fail(protocol.CodeInvalidRequest, "email and password are required")
	}

	user, err := h.broker.Store.Users().GetByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return req.fail(protocol.CodeUnauthorized, "invalid credentials")
		}
		return req.fail(protocol.CodeDatabaseError, "cannot load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		return req.fail(protocol.CodeUnauthorized, "invalid credentials")
	}

	return h.attach(ctx, req, user.Email)
}

// attach binds the channel, replacing any previous channel of the same user,
// and answers with the user's plants including their persisted irrigation
// state so the app can rehydrate its active-watering overlay.
func (h *Handler) attach(ctx context.Context, req *request, email string) error {
	email = utils.NormalizeEmail(email)

	user, err := h.broker.Store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return req.fail(protocol.CodeUnauthorized, "unknown user")
		}
		return req.fail(protocol.CodeDatabaseError, "cannot load user")
	}

	h.broker.Registry.AttachClient(req.channel, email)
	h.broker.UpdateGauges()

	response := attachResponse{Email: user.Email, DisplayName: user.DisplayName}
	if membership, err := h.broker.Store.Memberships().ActiveByUser(ctx, user.ID); err == nil {
		if plants, err := h.broker.Store.Plants().ListByGarden(ctx, membership.GardenID); err == nil {
			for i := range plants {
				response.Plants = append(response.Plants, h.withState(ctx, &plants[i]))
			}
		}
	}

	req.log.Info("Client attached", "email", email)
	return req.succeed(response)
}

// withState augments a plant view with the persisted irrigation state.
func (h *Handler) withState(ctx context.Context, plant *core.Plant) plantView {
	if state, err := h.broker.Store.States().Get(ctx, plant.ID); err == nil {
		plant.State = state
	}
	return newPlantView(plant)
}
