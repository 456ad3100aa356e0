// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package pi

import (
	"context"
	"strings"
	"time"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/broker/pending"
	"github.com/gardener/sprinkler/pkg/protocol"
)

// valveBlockedMessages are controller error messages that mean the valve is
// physically blocked and must not accept new smart irrigation.
var valveBlockedMessages = map[string]struct{}{
	"water_limit_reached_target_not_met": {},
	"valve_blocked":                      {},
	"valve_stuck":                        {},
}

func isValveBlockedError(message string) bool {
	message = strings.ToLower(strings.TrimSpace(message))
	if _, ok := valveBlockedMessages[message]; ok {
		return true
	}
	return strings.HasPrefix(message, "valve")
}

// completeIrrigation resolves an irrigation correlation, session-id match first.
func (h *Handler) completeIrrigation(sessionID string, plantID int64) (pending.Context, bool) {
	if sessionID != "" {
		if corr, ok := h.broker.Irrigation().CompleteBySession(sessionID); ok {
			return corr, true
		}
	}
	return h.broker.Irrigation().Complete(pending.PlantKey(plantID))
}

// peekIrrigation looks up an irrigation correlation without consuming it.
func (h *Handler) peekIrrigation(plantID int64) (pending.Context, bool) {
	return h.broker.Irrigation().Peek(pending.PlantKey(plantID))
}

// irrigationDecision handles the controller's verdict on a smart irrigation
// request. An affirmative decision arms the smart state; the correlation stays
// registered until the terminal response.
func (h *Handler) irrigationDecision(ctx context.Context, conn *connection, frame *protocol.Frame) error {
	var decision protocol.IrrigationDecision
	if err := frame.Into(&decision); err != nil {
		return err
	}

	if decision.WillIrrigate {
		now := h.broker.Clock.Now()
		sessionID := decision.SessionID
		state := core.IrrigationState{
			Mode:      core.IrrigationModeSmart,
			StartAt:   &now,
			SessionID: &sessionID,
		}
		if err := h.broker.Store.States().Set(ctx, decision.PlantID, state); err != nil {
			conn.log.Error(err, "Cannot persist smart irrigation state", "plantID", decision.PlantID)
		}

		h.broker.Irrigation().TouchBySession(decision.SessionID)

		corr, known := h.peekIrrigation(decision.PlantID)
		if known {
			h.broker.SendToClient(corr.Email, protocol.New(protocol.TypeIrrigationStarted, map[string]any{
				"plantId":   decision.PlantID,
				"plantName": corr.PlantName,
				"sessionId": decision.SessionID,
				"current":   decision.Current,
				"target":    decision.Target,
				"gap":       decision.Gap,
			}))
		}

		except := ""
		if known {
			except = corr.Email
		}
		_ = h.broker.Broadcaster.Broadcast(ctx, conn.gardenID, protocol.TypeGardenIrrigationStarted, map[string]any{
			"plantId":   decision.PlantID,
			"mode":      core.IrrigationModeSmart,
			"sessionId": decision.SessionID,
		}, except)
		return nil
	}

	// Negative decision: nothing started, the round trip ends here.
	corr, known := h.completeIrrigation(decision.SessionID, decision.PlantID)
	if err := h.broker.Store.States().Clear(ctx, decision.PlantID); err != nil {
		conn.log.Error(err, "Cannot clear irrigation state", "plantID", decision.PlantID)
	}
	if known {
		h.broker.SendToClient(corr.Email, protocol.New(protocol.TypeIrrigateSkipped, map[string]any{
			"plantId":   decision.PlantID,
			"plantName": corr.PlantName,
			"reason":    decision.Reason,
			"current":   decision.Current,
			"target":    decision.Target,
		}))
	}
	h.broker.UpdateGauges()
	return nil
}

// irrigationStarted covers scheduled runs the controller starts on its own.
func (h *Handler) irrigationStarted(ctx context.Context, conn *connection, frame *protocol.Frame) error {
	var started protocol.IrrigationDecision
	if err := frame.Into(&started); err != nil {
		return err
	}
	return h.broker.Broadcaster.Broadcast(ctx, conn.gardenID, protocol.TypeGardenIrrigationStarted, map[string]any{
		"plantId":   started.PlantID,
		"mode":      core.IrrigationModeSmart,
		"sessionId": started.SessionID,
		"scheduled": true,
	}, "")
}

// irrigationProgress forwards a progress pulse verbatim to the originator, if
// known, and refreshes the correlation's liveness. The first pulse additionally
// triggers the notification hook.
func (h *Handler) irrigationProgress(ctx context.Context, conn *connection, frame *protocol.Frame) error {
	var progress protocol.IrrigationProgress
	if err := frame.Into(&progress); err != nil {
		return err
	}

	if progress.SessionID != "" {
		h.broker.Irrigation().TouchBySession(progress.SessionID)
	} else {
		h.broker.Irrigation().Touch(pending.PlantKey(progress.PlantID))
	}

	corr, known := h.peekIrrigation(progress.PlantID)
	if !known {
		conn.log.V(1).Info("Progress for unknown correlation dropped", "plantID", progress.PlantID, "sessionID", progress.SessionID)
		return nil
	}

	h.broker.SendToClient(corr.Email, &protocol.Frame{Type: protocol.TypeIrrigationProgress, Data: frame.Data})

	if progress.Pulse == 1 {
		if err := h.broker.Notifier.NotifyIrrigationStarted(ctx, corr.Email, corr.PlantName); err != nil {
			conn.log.Error(err, "Irrigation notification failed", "email", corr.Email)
		}
	}
	return nil
}

// irrigatePlantResponse integrates the terminal result of a smart session:
// exactly one event row, state cleared, originator notified with the
// family-appropriate result, valve-blocked errors flagged and broadcast.
func (h *Handler) irrigatePlantResponse(ctx context.Context, conn *connection, frame *protocol.Frame) error {
	var response protocol.IrrigateResponse
	if err := frame.Into(&response); err != nil {
		return err
	}

	corr, known := h.completeIrrigation(response.SessionID, response.PlantID)

	event := &core.IrrigationEvent{
		PlantID:         response.PlantID,
		Reason:          response.ErrorMessage,
		InitialMoisture: response.Moisture,
		FinalMoisture:   response.FinalMoisture,
		Liters:          response.WaterAddedLiters,
	}
	switch response.Status {
	case protocol.StatusSuccess:
		event.Status = core.EventStatusDone
	case protocol.StatusSkipped:
		event.Status = core.EventStatusSkipped
	case protocol.StatusCancelled:
		event.Status = core.EventStatusCancelled
	default:
		event.Status = core.EventStatusError
	}
	if response.HardwareTime != "" {
		if hardwareTime, err := time.Parse(time.RFC3339, response.HardwareTime); err == nil {
			event.HardwareTime = &hardwareTime
		}
	}

	if err := h.broker.Store.Events().Append(ctx, event); err != nil {
		conn.log.Error(err, "Cannot append irrigation event", "plantID", response.PlantID)
		// best-effort notification still happens below
	}

	if err := h.broker.Store.States().Clear(ctx, response.PlantID); err != nil {
		conn.log.Error(err, "Cannot clear irrigation state", "plantID", response.PlantID)
	}

	valveBlocked := response.Status == protocol.StatusError && isValveBlockedError(response.ErrorMessage)
	if valveBlocked {
		if err := h.broker.Store.Plants().SetValveBlocked(ctx, response.PlantID, true); err != nil {
			conn.log.Error(err, "Cannot set valve-blocked flag", "plantID", response.PlantID)
		}
	}

	if known {
		h.notifyIrrigationResult(corr.Email, corr.PlantName, &response, valveBlocked)
	}

	if valveBlocked {
		_ = h.broker.Broadcaster.Broadcast(ctx, conn.gardenID, protocol.TypeGardenValveBlocked, map[string]any{
			"plantId": response.PlantID,
			"reason":  response.ErrorMessage,
		}, "")
		_ = h.broker.Broadcaster.Broadcast(ctx, conn.gardenID, protocol.TypeGardenIrrigationStopped, map[string]any{
			"plantId": response.PlantID,
		}, "")
	}

	h.broker.UpdateGauges()
	return nil
}

// notifyIrrigationResult maps the controller status to the client-facing result
// frame.
func (h *Handler) notifyIrrigationResult(email, plantName string, response *protocol.IrrigateResponse, valveBlocked bool) {
	payload := map[string]any{
		"plantId":       response.PlantID,
		"plantName":     plantName,
		"sessionId":     response.SessionID,
		"moisture":      response.Moisture,
		"finalMoisture": response.FinalMoisture,
		"liters":        response.WaterAddedLiters,
	}

	var frameType string
	switch {
	case response.Status == protocol.StatusSuccess:
		frameType = protocol.TypeIrrigateSuccess
	case response.Status == protocol.StatusSkipped:
		frameType = protocol.TypeIrrigateSkipped
	case response.Status == protocol.StatusCancelled:
		frameType = protocol.TypeIrrigationCancelled
	case valveBlocked:
		frameType = protocol.TypeValveBlocked
		payload["message"] = "the valve is blocked; water limit was reached without hitting the target moisture"
	default:
		frameType = protocol.TypeIrrigateFail
		payload["message"] = response.ErrorMessage
	}

	h.broker.SendToClient(email, protocol.New(frameType, payload))
}

// stopIrrigationResponse appends the stopped row, notifies the originator and
// broadcasts the stop. A stop that the controller did not act on (no active
// session) produces no event row.
func (h *Handler) stopIrrigationResponse(ctx context.Context, conn *connection, frame *protocol.Frame) error {
	var response protocol.SimpleResponse
	if err := frame.Into(&response); err != nil {
		return err
	}

	corr, known := h.completeIrrigation(response.SessionID, response.PlantID)

	if response.Status != protocol.StatusSuccess {
		if known {
			h.broker.SendToClient(corr.Email, protocol.NewFailure(corr.Operation, protocol.CodeInvalidRequest, response.ErrorMessage))
		}
		return nil
	}

	event := &core.IrrigationEvent{
		PlantID: response.PlantID,
		Status:  core.EventStatusStopped,
		Reason:  "stopped by user",
	}
	if err := h.broker.Store.Events().Append(ctx, event); err != nil {
		conn.log.Error(err, "Cannot append stopped event", "plantID", response.PlantID)
	}

	if err := h.broker.Store.States().Clear(ctx, response.PlantID); err != nil {
		conn.log.Error(err, "Cannot clear irrigation state", "plantID", response.PlantID)
	}

	except := ""
	if known {
		except = corr.Email
		h.broker.SendToClient(corr.Email, protocol.NewSuccess(protocol.TypeStopIrrigation, map[string]any{
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
