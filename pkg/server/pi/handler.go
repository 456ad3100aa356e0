// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package pi implements the controller protocol handler: it integrates hardware
// events into persisted state, resolves pending correlations and triggers
// garden broadcasts.
package pi

import (
	"context"
	"errors"

	"github.com/go-logr/logr"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/broker"
	"github.com/gardener/sprinkler/pkg/broker/metrics"
	"github.com/gardener/sprinkler/pkg/protocol"
	"github.com/gardener/sprinkler/pkg/store"
	"github.com/gardener/sprinkler/pkg/utils"
)

type handlerFn func(ctx context.Context, conn *connection, frame *protocol.Frame) error

// connection is the per-frame context of a controller channel.
type connection struct {
	channel  protocol.Channel
	gardenID int64
	log      logr.Logger
}

// Handler is the controller protocol handler.
type Handler struct {
	broker   *broker.Broker
	log      logr.Logger
	handlers map[string]handlerFn
	// preConnect lists the frame types allowed before the controller is bound
	// to a garden.
	preConnect map[string]struct{}
}

// NewHandler builds the handler with its compile-time dispatch table.
func NewHandler(b *broker.Broker, log logr.Logger) *Handler {
	h := &Handler{
		broker: b,
		log:    log.WithName("pi-handler"),
		preConnect: map[string]struct{}{
			protocol.TypeHelloPi:   {},
			protocol.TypePiConnect: {},
		},
	}

	h.handlers = map[string]handlerFn{
		protocol.TypeHelloPi:   h.hello,
		protocol.TypePiConnect: h.connect,
		protocol.TypePing:      h.ping,

		protocol.TypeAddPlantResponse:    h.addPlantResponse,
		protocol.TypeUpdatePlantResponse: h.updatePlantResponse,
		protocol.TypeRemovePlantResponse: h.removePlantResponse,

		protocol.TypeIrrigationDecision:      h.irrigationDecision,
		protocol.TypeIrrigationStarted:       h.irrigationStarted,
		protocol.TypeIrrigationProgress:      h.irrigationProgress,
		protocol.TypeIrrigatePlantResponse:   h.irrigatePlantResponse,
		protocol.TypeStopIrrigationResponse:  h.stopIrrigationResponse,

		protocol.TypeOpenValveResponse:    h.openValveResponse,
		protocol.TypeCloseValveResponse:   h.closeValveResponse,
		protocol.TypeRestartValveResponse: h.restartValveResponse,
		protocol.TypeValveStatusResponse:  h.valveStatusResponse,

		protocol.TypePlantMoistureResponse: h.plantMoistureResponse,
		protocol.TypeAllMoistureResponse:   h.allMoistureResponse,

		protocol.TypePowerSupplyResponse:    h.diagnosticResponse,
		protocol.TypeSensorConnResponse:     h.diagnosticResponse,
		protocol.TypeValveMechanismResponse: h.diagnosticResponse,

		protocol.TypeSensorAssigned: h.assignmentInfo,
		protocol.TypeValveAssigned:  h.assignmentInfo,
		protocol.TypePiLog:          h.piLog,
	}

	return h
}

// HandleFrame processes one raw inbound frame from a controller channel.
func (h *Handler) HandleFrame(ctx context.Context, channel protocol.Channel, raw []byte) {
	frame, err := protocol.Decode(raw)
	if err != nil {
		_ = channel.Send(protocol.New(protocol.TypeError, protocol.Failure{
			Code:    protocol.CodeInvalidJSON,
			Message: "malformed frame",
		}))
		return
	}

	metrics.FramesHandled.WithLabelValues("controller", frame.Type).Inc()

	handler, known := h.handlers[frame.Type]
	if !known {
		_ = channel.Send(protocol.New(protocol.TypeError, protocol.Failure{
			Code:    protocol.CodeUnknownType,
			Message: "unknown message type " + frame.Type,
		}))
		return
	}

	conn := &connection{channel: channel, log: h.log.WithValues("type", frame.Type)}

	if _, open := h.preConnect[frame.Type]; !open {
		gardenID, bound := h.broker.Registry.GardenByController(channel)
		if !bound {
			// Responses from unbound controllers have nowhere to go; keep them
			// for forensics only.
			conn.log.Info("Dropping frame from unbound controller channel", "channelID", channel.ID())
			return
		}
		conn.gardenID = gardenID
		conn.log = conn.log.WithValues("gardenID", gardenID)
	}

	if err := handler(ctx, conn, frame); err != nil {
		conn.log.Error(err, "Controller frame handling failed")
	}
}

// HandleClose unbinds a closed controller channel. In-flight correlations of
// its garden are left to expire; clients observe timeouts.
func (h *Handler) HandleClose(channel protocol.Channel) {
	h.broker.Registry.UnbindController(channel)
	h.broker.UpdateGauges()
}

func (h *Handler) hello(_ context.Context, conn *connection, _ *protocol.Frame) error {
	return conn.channel.Send(protocol.New(protocol.TypeWelcome, nil))
}

// connect resolves the garden by its family (invite) code, binds the controller
// and answers with the garden snapshot.
func (h *Handler) connect(ctx context.Context, conn *connection, frame *protocol.Frame) error {
	var payload protocol.ConnectRequest
	if err := frame.Into(&payload); err != nil || payload.FamilyCode == "" {
		return conn.channel.Send(protocol.NewFailure(frame.Type, protocol.CodeInvalidRequest, "family_code is required"))
	}

	garden, err := h.broker.Store.Gardens().GetActiveByInviteCode(ctx, utils.NormalizeInviteCode(payload.FamilyCode))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return conn.channel.Send(protocol.NewFailure(frame.Type, protocol.CodeGardenNotFound, "no active garden with this family code"))
		}
		return conn.channel.Send(protocol.NewFailure(frame.Type, protocol.CodeDatabaseError, "cannot resolve garden"))
	}

	h.broker.Registry.BindController(garden.ID, conn.channel, payload.FamilyCode)
	h.broker.UpdateGauges()

	sync, err := h.gardenSync(ctx, garden)
	if err != nil {
		return conn.channel.Send(protocol.NewFailure(frame.Type, protocol.CodeDatabaseError, "cannot build garden snapshot"))
	}

	conn.log.Info("Controller bound to garden", "gardenID", garden.ID)
	return conn.channel.Send(sync)
}

func (h *Handler) ping(_ context.Context, conn *connection, _ *protocol.Frame) error {
	h.broker.Registry.Heartbeat(conn.gardenID, conn.channel)
	return conn.channel.Send(protocol.New(protocol.TypePong, nil))
}

// gardenSync builds the GARDEN_SYNC snapshot: the garden descriptor plus every
// plant with fully assigned hardware, each with its schedule and the garden's
// resolved coordinates.
func (h *Handler) gardenSync(ctx context.Context, garden *core.Garden) (*protocol.Frame, error) {
	plants, err := h.broker.Store.Plants().ListByGarden(ctx, garden.ID)
	if err != nil {
		return nil, err
	}

	type syncPlant struct {
		PlantID       int64                     `json:"plant_id"`
		Name          string                    `json:"name"`
		IdealMoisture float64                   `json:"ideal_moisture"`
		WaterLimit    float64                   `json:"water_limit"`
		DripperType   string                    `json:"dripper_type,omitempty"`
		SensorPort    int                       `json:"sensor_port"`
		ValveID       int                       `json:"valve_id"`
		Schedule      *protocol.SchedulePayload `json:"schedule,omitempty"`
	}

	syncPlants := make([]syncPlant, 0, len(plants))
	for i := range plants {
		plant := &plants[i]
		if !plant.HardwareAssigned() {
			continue
		}
		entry := syncPlant{
			PlantID:       plant.ID,
			Name:          plant.Name,
			IdealMoisture: plant.IdealMoisture,
			WaterLimit:    plant.WaterLimit,
			DripperType:   plant.DripperType,
			SensorPort:    *plant.SensorPort,
			ValveID:       *plant.ValveID,
		}
		if plant.Schedule != nil {
			entry.Schedule = &protocol.SchedulePayload{Days: plant.Schedule.Days, Time: plant.Schedule.Time}
		}
		syncPlants = append(syncPlants, entry)
	}

	return protocol.New(protocol.TypeGardenSync, map[string]any{
		"garden": map[string]any{
			"id":   garden.ID,
			"name": garden.Name,
		},
		"lat":    garden.Latitude,
		"lon":    garden.Longitude,
		"plants": syncPlants,
	}), nil
}
