// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"

	"github.com/gardener/sprinkler/pkg/broker/pending"
	"github.com/gardener/sprinkler/pkg/protocol"
	"github.com/gardener/sprinkler/pkg/store"
)

func (h *Handler) getPlantMoisture(ctx context.Context, req *request) error {
	var payload plantScopedRequest
	if err := req.frame.Into(&payload); err != nil || payload.PlantName == "" {
		return req.fail(protocol.CodeInvalidRequest, "plantName is required")
	}

	plant, err := h.plantOfCaller(ctx, req, payload.PlantName)
	if err != nil {
		return err
	}
	if !plant.HardwareAssigned() {
		return req.fail(protocol.CodeInvalidRequest, "the plant has no sensor assigned yet")
	}

	h.broker.Moisture().Register(pending.PlantKey(plant.ID), pending.Context{
		Email:     req.user.Email,
		Operation: req.frame.Type,
		GardenID:  plant.GardenID,
		PlantID:   plant.ID,
		PlantName: plant.Name,
	})

	if err := h.broker.SendToController(plant.GardenID, protocol.New(protocol.TypeGetPlantMoisture, protocol.PlantCommand{PlantID: plant.ID})); err != nil {
		h.broker.Moisture().Complete(pending.PlantKey(plant.ID))
		return req.fail(protocol.CodeControllerOffline, "the garden controller is offline")
	}

	h.broker.UpdateGauges()
	return nil
}

// getAllMoisture forwards the query; the reply is fanned out to every active
// client of the garden, so no correlation is kept.
func (h *Handler) getAllMoisture(ctx context.Context, req *request) error {
	membership, err := h.broker.Store.Memberships().ActiveByUser(ctx, req.user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return req.fail(protocol.CodeNotMember, "you are not a member of any garden")
		}
		return req.fail(protocol.CodeDatabaseError, "cannot load membership")
	}

	if err := h.broker.SendToController(membership.GardenID, protocol.New(protocol.TypeGetAllMoisture, nil)); err != nil {
		return req.fail(protocol.CodeControllerOffline, "the garden controller is offline")
	}
	return nil
}
