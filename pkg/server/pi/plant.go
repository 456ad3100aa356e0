// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package pi

import (
	"context"
	"errors"

	"github.com/gardener/sprinkler/pkg/broker/pending"
	"github.com/gardener/sprinkler/pkg/protocol"
	"github.com/gardener/sprinkler/pkg/store"
)

// addPlantResponse persists the assigned hardware identifiers and finishes the
// add-plant round trip. A response for an unknown plant is a no-op.
func (h *Handler) addPlantResponse(ctx context.Context, conn *connection, frame *protocol.Frame) error {
	var response protocol.AddPlantResponse
	if err := frame.Into(&response); err != nil {
		return err
	}

	corr, known := h.broker.Assignment().Complete(pending.PlantKey(response.PlantID))

	if response.Status != protocol.StatusSuccess || response.SensorPort == nil || response.AssignedValve == nil {
		if known {
			h.broker.SendToClient(corr.Email, protocol.NewFailure(protocol.TypeAddPlant, protocol.CodeInvalidRequest,
				"hardware assignment failed: "+response.ErrorMessage))
		}
		conn.log.Info("Hardware assignment failed", "plantID", response.PlantID, "error", response.ErrorMessage)
		return nil
	}

	if err := h.broker.Store.Plants().SetHardware(ctx, response.PlantID, *response.SensorPort, *response.AssignedValve); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// replayed response for a plant that no longer exists
			conn.log.Info("Assignment response for unknown plant dropped", "plantID", response.PlantID)
			return nil
		}
		if known {
			h.broker.SendToClient(corr.Email, protocol.NewFailure(protocol.TypeAddPlant, protocol.CodeDatabaseError, "cannot persist hardware assignment"))
		}
		return err
	}

	plant, err := h.broker.Store.Plants().GetByID(ctx, response.PlantID)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"plantId":    plant.ID,
		"plantName":  plant.Name,
		"sensorPort": plant.SensorPort,
		"valveId":    plant.ValveID,
		"version":    plant.Version,
	}

	except := ""
	if known {
		except = corr.Email
		h.broker.SendToClient(corr.Email, protocol.NewSuccess(protocol.TypeAddPlant, payload))
	}

	_ = h.broker.Broadcaster.Broadcast(ctx, conn.gardenID, protocol.TypePlantAddedToGarden, payload, except)

	h.broker.UpdateGauges()
	conn.log.Info("Plant hardware assigned", "plantID", plant.ID, "sensorPort", *response.SensorPort, "valveID", *response.AssignedValve)
	return nil
}

// updatePlantResponse finishes the update round trip with the refreshed plant.
func (h *Handler) updatePlantResponse(ctx context.Context, conn *connection, frame *protocol.Frame) error {
	var response protocol.UpdatePlantResponse
	if err := frame.Into(&response); err != nil {
		return err
	}

	corr, known := h.broker.Update().Complete(pending.PlantKey(response.PlantID))
	if !known {
		conn.log.V(1).Info("Update response without correlation dropped", "plantID", response.PlantID)
		return nil
	}

	if !response.Success {
		h.broker.SendToClient(corr.Email, protocol.NewFailure(protocol.TypeUpdatePlantDetails, protocol.CodeInvalidRequest, response.Message))
		return nil
	}

	plant, err := h.broker.Store.Plants().GetByID(ctx, response.PlantID)
	if err != nil {
		h.broker.SendToClient(corr.Email, protocol.NewFailure(protocol.TypeUpdatePlantDetails, protocol.CodeDatabaseError, "cannot load refreshed plant"))
		return err
	}

	h.broker.SendToClient(corr.Email, protocol.NewSuccess(protocol.TypeUpdatePlantDetails, map[string]any{
		"plantId":       plant.ID,
		"plantName":     plant.Name,
		"idealMoisture": plant.IdealMoisture,
		"waterLimit":    plant.WaterLimit,
		"dripperType":   plant.DripperType,
		"version":       plant.Version,
	}))

	h.broker.UpdateGauges()
	return nil
}

// removePlantResponse deletes the plant row and its irrigation history only
// after the controller confirmed hardware removal.
func (h *Handler) removePlantResponse(ctx context.Context, conn *connection, frame *protocol.Frame) error {
	var response protocol.SimpleResponse
	if err := frame.Into(&response); err != nil {
		return err
	}

	corr, known := h.broker.Deletion().Complete(pending.PlantKey(response.PlantID))

	if response.Status != protocol.StatusSuccess {
		if known {
			h.broker.SendToClient(corr.Email, protocol.NewFailure(protocol.TypeDeletePlant, protocol.CodeInvalidRequest,
				"controller could not remove the plant: "+response.ErrorMessage))
		}
		return nil
	}

	plantName := corr.PlantName
	if plant, err := h.broker.Store.Plants().GetByID(ctx, response.PlantID); err == nil {
		plantName = plant.Name
	}

	if err := h.broker.Store.Events().DeleteByPlant(ctx, response.PlantID); err != nil {
		conn.log.Error(err, "Cannot delete irrigation history", "plantID", response.PlantID)
	}
	if err := h.broker.Store.Plants().Delete(ctx, response.PlantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			conn.log.Info("Removal response for unknown plant dropped", "plantID", response.PlantID)
			return nil
		}
		if known {
			h.broker.SendToClient(corr.Email, protocol.NewFailure(protocol.TypeDeletePlant, protocol.CodeDatabaseError, "cannot delete plant"))
		}
		return err
	}

	except := ""
	if known {
		except = corr.Email
		h.broker.SendToClient(corr.Email, protocol.NewSuccess(protocol.TypeDeletePlant, map[string]any{
			"plantId":   response.PlantID,
			"plantName": plantName,
		}))
	}

	_ = h.broker.Broadcaster.Broadcast(ctx, conn.gardenID, protocol.TypePlantDeletedFromGarden, map[string]any{
		"plantId":   response.PlantID,
		"plantName": plantName,
	}, except)

	h.broker.UpdateGauges()
	conn.log.Info("Plant deleted after controller confirmation", "plantID", response.PlantID)
	return nil
}

// diagnosticResponse passes hardware diagnostics through to the originator with
// the generic success/error mapping.
func (h *Handler) diagnosticResponse(_ context.Context, conn *connection, frame *protocol.Frame) error {
	var response protocol.SimpleResponse
	if err := frame.Into(&response); err != nil {
		return err
	}

	corr, known := h.broker.Irrigation().Complete(pending.PlantKey(response.PlantID))
	if !known {
		conn.log.Info("Diagnostic response without correlation", "responseType", frame.Type, "plantID", response.PlantID, "status", response.Status)
		return nil
	}

	if response.Status == protocol.StatusSuccess {
		h.broker.SendToClient(corr.Email, &protocol.Frame{Type: frame.Type, Data: frame.Data})
		return nil
	}
	h.broker.SendToClient(corr.Email, protocol.NewFailure(corr.Operation, protocol.CodeInvalidRequest, response.ErrorMessage))
	return nil
}

// assignmentInfo frames (SENSOR_ASSIGNED, VALVE_ASSIGNED) only mirror what the
// final ADD_PLANT_RESPONSE carries; they are logged for forensics.
func (h *Handler) assignmentInfo(_ context.Context, conn *connection, frame *protocol.Frame) error {
	conn.log.V(1).Info("Assignment info", "responseType", frame.Type, "payload", string(frame.Data))
	return nil
}

// piLog is forensic-only output from the controller.
func (h *Handler) piLog(_ context.Context, conn *connection, frame *protocol.Frame) error {
	conn.log.Info("Controller log", "payload", string(frame.Data))
	return nil
}
