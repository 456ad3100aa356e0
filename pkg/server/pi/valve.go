// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package pi

import (
	"context"
	"time"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/protocol"
)

// openValveResponse arms the manual state with a finite end time and broadcasts
// the start.
func (h *Handler) openValveResponse(ctx context.Context, conn *connection, frame *protocol.Frame) error {
	var response protocol.OpenValveResponse
	if err := frame.Into(&response); err != nil {
		return err
	}

	corr, known := h.completeIrrigation("", response.PlantID)

	if response.Status != protocol.StatusSuccess {
		valveBlocked := isValveBlockedError(response.ErrorMessage)
		if valveBlocked {
			if err := h.broker.Store.Plants().SetValveBlocked(ctx, response.PlantID, true); err != nil {
				conn.log.Error(err, "Cannot set valve-blocked flag", "plantID", response.PlantID)
			}
			_ = h.broker.Broadcaster.Broadcast(ctx, conn.gardenID, protocol.TypeGardenValveBlocked, map[string]any{
				"plantId": response.PlantID,
				"reason":  response.ErrorMessage,
			}, "")
		}
		if known {
			code := protocol.CodeInvalidRequest
			if valveBlocked {
				code = protocol.CodeValveBlocked
			}
			h.broker.SendToClient(corr.Email, protocol.NewFailure(protocol.TypeOpenValve, code, response.ErrorMessage))
		}
		return nil
	}

	now := h.broker.Clock.Now()
	endAt := now.Add(time.Duration(response.TimeMinutes) * time.Minute)
	state := core.IrrigationState{
		Mode:    core.IrrigationModeManual,
		StartAt: &now,
		EndAt:   &endAt,
	}
	if err := h.broker.Store.States().Set(ctx, response.PlantID, state); err != nil {
		conn.log.Error(err, "Cannot persist manual irrigation state", "plantID", response.PlantID)
	}

	event := &core.IrrigationEvent{
		PlantID: response.PlantID,
		Status:  core.EventStatusValveOpened,
		Reason:  "manual open",
	}
	if err := h.broker.Store.Events().Append(ctx, event); err != nil {
		conn.log.Error(err, "Cannot append valve_opened event", "plantID", response.PlantID)
	}

	except := ""
	if known {
		except = corr.Email
		h.broker.SendToClient(corr.Email, protocol.NewSuccess(protocol.TypeOpenValve, map[string]any{
			"plantId":     response.PlantID,
			"plantName":   corr.PlantName,
			"timeMinutes": response.TimeMinutes,
			"endAt":       endAt,
		}))
	}

	_ = h.broker.Broadcaster.Broadcast(ctx, conn.gardenID, protocol.TypeGardenIrrigationStarted, map[string]any{
		"plantId": response.PlantID,
		"mode":    core.IrrigationModeManual,
		"endAt":   endAt,
	}, except)

	h.broker.UpdateGauges()
	return nil
}

// closeValveResponse clears the manual state. The originator is notified when
// known; auto-closes reach the garden via the stop broadcast.
func (h *Handler) closeValveResponse(ctx context.Context, conn *connection, frame *protocol.Frame) error {
	var response protocol.SimpleResponse
	if err := frame.Into(&response); err != nil {
		return err
	}

	corr, known := h.completeIrrigation("", response.PlantID)

	if response.Status != protocol.StatusSuccess {
		if known {
			h.broker.SendToClient(corr.Email, protocol.NewFailure(protocol.TypeCloseValve, protocol.CodeInvalidRequest, response.ErrorMessage))
		}
		return nil
	}

	event := &core.IrrigationEvent{
		PlantID: response.PlantID,
		Status:  core.EventStatusValveClosed,
	}
	if err := h.broker.Store.Events().Append(ctx, event); err != nil {
		conn.log.Error(err, "Cannot append valve_closed event", "plantID", response.PlantID)
	}

	if err := h.broker.Store.States().Clear(ctx, response.PlantID); err != nil {
		conn.log.Error(err, "Cannot clear irrigation state", "plantID", response.PlantID)
	}

	except := ""
	if known {
		except = corr.Email
		h.broker.SendToClient(corr.Email, protocol.NewSuccess(protocol.TypeCloseValve, map[string]any{
			"plantId":   response.PlantID,
			"plantName": corr.PlantName,
		}))
	}

	_ = h.broker.Broadcaster.Broadcast(ctx, conn.gardenID, protocol.TypeGardenIrrigationStopped, map[string]any{
		"plantId": response.PlantID,
	}, except)

	h.broker.UpdateGauges()
	return nil
}

// restartValveResponse clears the blocked flag on success; on failure the flag
// stays set.
func (h *Handler) restartValveResponse(ctx context.Context, conn *connection, frame *protocol.Frame) error {
	var response protocol.SimpleResponse
	if err := frame.Into(&response); err != nil {
		return err
	}

	corr, known := h.completeIrrigation("", response.PlantID)

	if response.Status != protocol.StatusSuccess {
		if known {
			h.broker.SendToClient(corr.Email, protocol.NewFailure(protocol.TypeRestartValve, protocol.CodeValveBlocked, response.ErrorMessage))
		}
		return nil
	}

	if err := h.broker.Store.Plants().SetValveBlocked(ctx, response.PlantID, false); err != nil {
		conn.log.Error(err, "Cannot clear valve-blocked flag", "plantID", response.PlantID)
	}

	except := ""
	if known {
		except = corr.Email
		h.broker.SendToClient(corr.Email, protocol.NewSuccess(protocol.TypeRestartValve, map[string]any{
			"plantId":   response.PlantID,
			"plantName": corr.PlantName,
		}))
	}

	_ = h.broker.Broadcaster.Broadcast(ctx, conn.gardenID, protocol.TypeGardenValveUnblocked, map[string]any{
		"plantId": response.PlantID,
	}, except)

	h.broker.UpdateGauges()
	return nil
}

// valveStatusResponse notifies the originator, using VALVE_BLOCKED for blocked
// valves and VALVE_STATUS otherwise.
func (h *Handler) valveStatusResponse(_ context.Context, conn *connection, frame *protocol.Frame) error {
	var response protocol.ValveStatusResponse
	if err := frame.Into(&response); err != nil {
		return err
	}

	corr, known := h.completeIrrigation("", response.PlantID)
	if !known {
		conn.log.V(1).Info("Valve status without correlation dropped", "plantID", response.PlantID)
		return nil
	}

	frameType := protocol.TypeValveStatus
	if response.Blocked {
		frameType = protocol.TypeValveBlocked
	}
	h.broker.SendToClient(corr.Email, protocol.New(frameType, map[string]any{
		"plantId":   response.PlantID,
		"plantName": corr.PlantName,
		"blocked":   response.Blocked,
		"open":      response.Open,
	}))

	h.broker.UpdateGauges()
	return nil
}
