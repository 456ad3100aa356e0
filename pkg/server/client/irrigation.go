// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/gardener/sprinkler/pkg/broker/pending"
	"github.com/gardener/sprinkler/pkg/protocol"
)

type irrigateRequest struct {
	PlantName string `json:"plantName"`
	SessionID string `json:"sessionId"`
}

// irrigatePlant initiates a smart irrigation round trip. The terminal response
// comes from the controller handler; here we only validate, correlate and
// forward.
func (h *Handler) irrigatePlant(ctx context.Context, req *request) error {
	var payload irrigateRequest
	if err := req.frame.Into(&payload); err != nil || payload.PlantName == "" {
		return req.fail(protocol.CodeInvalidRequest, "plantName is required")
	}

	plant, err := h.plantOfCaller(ctx, req, payload.PlantName)
	if err != nil {
		return err
	}
	if plant.ValveBlocked {
		return req.fail(protocol.CodeValveBlocked, "the valve of this plant is blocked; restart it before irrigating")
	}
	if !plant.HardwareAssigned() {
		return req.fail(protocol.CodeInvalidRequest, "the plant has no hardware assigned yet")
	}

	sessionID := payload.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	h.broker.Irrigation().RegisterBySession(sessionID, pending.PlantKey(plant.ID), pending.Context{
		Email:     req.user.Email,
		Operation: req.frame.Type,
		GardenID:  plant.GardenID,
		PlantID:   plant.ID,
		PlantName: plant.Name,
	})

	command := protocol.IrrigateCommand{
		PlantID:       plant.ID,
		SessionID:     sessionID,
		IdealMoisture: plant.IdealMoisture,
		WaterLimit:    plant.WaterLimit,
	}
	if err := h.broker.SendToController(plant.GardenID, protocol.New(protocol.TypeIrrigatePlant, command)); err != nil {
		h.broker.Irrigation().CompleteBySession(sessionID)
		return req.fail(protocol.CodeControllerOffline, "the garden controller is offline")
	}

	h.broker.UpdateGauges()
	req.log.Info("Irrigation requested", "plantID", plant.ID, "sessionID", sessionID)
	return nil
}

// stopIrrigation clears the irrigation state best-effort before forwarding, so
// a lost controller response cannot leave the UI indefinitely armed.
func (h *Handler) stopIrrigation(ctx context.Context, req *request) error {
	var payload plantScopedRequest
	if err := req.frame.Into(&payload); err != nil || payload.PlantName == "" {
		return req.fail(protocol.CodeInvalidRequest, "plantName is required")
	}

	plant, err := h.plantOfCaller(ctx, req, payload.PlantName)
	if err != nil {
		return err
	}

	if err := h.broker.Store.States().Clear(ctx, plant.ID); err != nil {
		req.log.Error(err, "Best-effort state clear failed", "plantID", plant.ID)
	}

	h.broker.Irrigation().Register(pending.PlantKey(plant.ID), pending.Context{
		Email:     req.user.Email,
		Operation: req.frame.Type,
		GardenID:  plant.GardenID,
		PlantID:   plant.ID,
		PlantName: plant.Name,
	})

	if err := h.broker.SendToController(plant.GardenID, protocol.New(protocol.TypeStopIrrigation, protocol.PlantCommand{PlantID: plant.ID})); err != nil {
		h.broker.Irrigation().Complete(pending.PlantKey(plant.ID))
		return req.fail(protocol.CodeControllerOffline, "the garden controller is offline")
	}
	return nil
}

type openValveRequest struct {
	PlantName   string `json:"plantName"`
	TimeMinutes int    `json:"timeMinutes"`
}

func (h *Handler) openValve(ctx context.Context, req *request) error {
	var payload openValveRequest
	if err := req.frame.Into(&payload); err != nil || payload.PlantName == "" {
		return req.fail(protocol.CodeInvalidRequest, "plantName is required")
	}
	if payload.TimeMinutes <= 0 || payload.TimeMinutes > 120 {
		return req.fail(protocol.CodeInvalidRequest, "timeMinutes must be within (0, 120]")
	}

	plant, err := h.plantOfCaller(ctx, req, payload.PlantName)
	if err != nil {
		return err
	}
	if plant.ValveBlocked {
		return req.fail(protocol.CodeValveBlocked, "the valve of this plant is blocked; restart it before opening")
	}

	h.broker.Irrigation().Register(pending.PlantKey(plant.ID), pending.Context{
		Email:     req.user.Email,
		Operation: req.frame.Type,
		GardenID:  plant.GardenID,
		PlantID:   plant.ID,
		PlantName: plant.Name,
	})

	command := protocol.OpenValveCommand{PlantID: plant.ID, TimeMinutes: payload.TimeMinutes}
	if err := h.broker.SendToController(plant.GardenID, protocol.New(protocol.TypeOpenValve, command)); err != nil {
		h.broker.Irrigation().Complete(pending.PlantKey(plant.ID))
		return req.fail(protocol.CodeControllerOffline, "the garden controller is offline")
	}
	return nil
}

// closeValve clears the irrigation state best-effort before forwarding, for the
// same reason as stopIrrigation.
func (h *Handler) closeValve(ctx context.Context, req *request) error {
	var payload plantScopedRequest
	if err := req.frame.Into(&payload); err != nil || payload.PlantName == "" {
		return req.fail(protocol.CodeInvalidRequest, "plantName is required")
	}

	plant, err := h.plantOfCaller(ctx, req, payload.PlantName)
	if err != nil {
		return err
	}

	if err := h.broker.Store.States().Clear(ctx, plant.ID); err != nil {
		req.log.Error(err, "Best-effort state clear failed", "plantID", plant.ID)
	}

	h.broker.Irrigation().Register(pending.PlantKey(plant.ID), pending.Context{
		Email:     req.user.Email,
		Operation: req.frame.Type,
		GardenID:  plant.GardenID,
		PlantID:   plant.ID,
		PlantName: plant.Name,
	})

	if err := h.broker.SendToController(plant.GardenID, protocol.New(protocol.TypeCloseValve, protocol.PlantCommand{PlantID: plant.ID})); err != nil {
		h.broker.Irrigation().Complete(pending.PlantKey(plant.ID))
		return req.fail(protocol.CodeControllerOffline, "the garden controller is offline")
	}
	return nil
}

func (h *Handler) restartValve(ctx context.Context, req *request) error {
	return h.forwardValveCommand(ctx, req, protocol.TypeRestartValve)
}

func (h *Handler) getValveStatus(ctx context.Context, req *request) error {
	return h.forwardValveCommand(ctx, req, protocol.TypeGetValveStatus)
}

// forwardValveCommand is the shared round-trip skeleton for valve commands that
// need no local state change before forwarding.
func (h *Handler) forwardValveCommand(ctx context.Context, req *request, commandType string) error {
	var payload plantScopedRequest
	if err := req.frame.Into(&payload); err != nil || payload.PlantName == "" {
		return req.fail(protocol.CodeInvalidRequest, "plantName is required")
	}

	plant, err := h.plantOfCaller(ctx, req, payload.PlantName)
	if err != nil {
		return err
	}

	h.broker.Irrigation().Register(pending.PlantKey(plant.ID), pending.Context{
		Email:     req.user.Email,
		Operation: req.frame.Type,
		GardenID:  plant.GardenID,
		PlantID:   plant.ID,
		PlantName: plant.Name,
	})

	if err := h.broker.SendToController(plant.GardenID, protocol.New(commandType, protocol.PlantCommand{PlantID: plant.ID})); err != nil {
		h.broker.Irrigation().Complete(pending.PlantKey(plant.ID))
		return req.fail(protocol.CodeControllerOffline, "the garden controller is offline")
	}
	return nil
}

// unblockValve clears the blocked flag locally, without a controller round trip.
func (h *Handler) unblockValve(ctx context.Context, req *request) error {
	var payload plantScopedRequest
	if err := req.frame.Into(&payload); err != nil || payload.PlantName == "" {
		return req.fail(protocol.CodeInvalidRequest, "plantName is required")
	}

	plant, err := h.plantOfCaller(ctx, req, payload.PlantName)
	if err != nil {
		return err
	}

	if err := h.broker.Store.Plants().SetValveBlocked(ctx, plant.ID, false); err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot unblock valve")
	}

	_ = h.broker.Broadcaster.Broadcast(ctx, plant.GardenID, protocol.TypeGardenValveUnblocked, map[string]any{
		"plantId":   plant.ID,
		"plantName": plant.Name,
	}, req.user.Email)

	return req.succeed(map[string]any{"plantName": plant.Name})
}

// testValveBlock sets the blocked flag locally. Development helper for
// exercising the blocked-valve UI without hardware.
func (h *Handler) testValveBlock(ctx context.Context, req *request) error {
	var payload plantScopedRequest
	if err := req.frame.Into(&payload); err != nil || payload.PlantName == "" {
		return req.fail(protocol.CodeInvalidRequest, "plantName is required")
	}

	plant, err := h.plantOfCaller(ctx, req, payload.PlantName)
	if err != nil {
		return err
	}

	if err := h.broker.Store.Plants().SetValveBlocked(ctx, plant.ID, true); err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot block valve")
	}
	return req.succeed(map[string]any{"plantName": plant.Name})
}
