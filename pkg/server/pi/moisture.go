// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package pi

import (
	"context"

	"github.com/gardener/sprinkler/pkg/broker/pending"
	"github.com/gardener/sprinkler/pkg/protocol"
)

// plantMoistureResponse notifies the originator and shares the fresh reading
// with the rest of the garden.
func (h *Handler) plantMoistureResponse(ctx context.Context, conn *connection, frame *protocol.Frame) error {
	var response protocol.MoistureResponse
	if err := frame.Into(&response); err != nil {
		return err
	}

	corr, known := h.broker.Moisture().Complete(pending.PlantKey(response.PlantID))

	payload := map[string]any{
		"plantId":     response.PlantID,
		"moisture":    response.Moisture,
		"temperature": response.Temperature,
	}
	if known {
		payload["plantName"] = corr.PlantName
	}

	except := ""
	if known {
		except = corr.Email
		if response.Status == protocol.StatusSuccess {
			h.broker.SendToClient(corr.Email, protocol.NewSuccess(protocol.TypeGetPlantMoisture, payload))
		} else {
			h.broker.SendToClient(corr.Email, protocol.NewFailure(protocol.TypeGetPlantMoisture, protocol.CodeInvalidRequest, response.ErrorMessage))
		}
	}

	if response.Status == protocol.StatusSuccess {
		_ = h.broker.Broadcaster.Broadcast(ctx, conn.gardenID, protocol.TypeGardenMoistureUpdate, payload, except)
	}

	h.broker.UpdateGauges()
	return nil
}

// allMoistureResponse fans the readings out to every active client of the
// garden; there is no single originator for all-plants queries.
func (h *Handler) allMoistureResponse(ctx context.Context, conn *connection, frame *protocol.Frame) error {
	var response protocol.AllMoistureResponse
	if err := frame.Into(&response); err != nil {
		return err
	}

	return h.broker.Broadcaster.Broadcast(ctx, conn.gardenID, protocol.Success(protocol.TypeGetAllMoisture), map[string]any{
		"readings": response.Readings,
	}, "")
}
