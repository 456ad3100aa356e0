// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/broker/pending"
	"github.com/gardener/sprinkler/pkg/protocol"
	"github.com/gardener/sprinkler/pkg/store"
	"github.com/gardener/sprinkler/pkg/utils"
)

type addPlantRequest struct {
	PlantName     string         `json:"plantName"`
	IdealMoisture float64        `json:"idealMoisture"`
	WaterLimit    float64        `json:"waterLimit"`
	DripperType   string         `json:"dripperType"`
	Schedule      *core.Schedule `json:"schedule"`
}

// addPlant persists the plant record, then asks the controller to assign
// hardware. The terminal response is produced by the controller handler once
// ADD_PLANT_RESPONSE arrives; only early failures answer here.
func (h *Handler) addPlant(ctx context.Context, req *request) error {
	var payload addPlantRequest
	if err := req.frame.Into(&payload); err != nil {
		return req.fail(protocol.CodeInvalidRequest, "invalid payload")
	}
	if payload.PlantName == "" {
		return req.fail(protocol.CodeInvalidRequest, "plantName is required")
	}
	if payload.IdealMoisture <= 0 || payload.IdealMoisture > 100 {
		return req.fail(protocol.CodeInvalidRequest, "idealMoisture must be within (0, 100]")
	}
	if payload.WaterLimit <= 0 {
		return req.fail(protocol.CodeInvalidRequest, "waterLimit must be positive")
	}
	if payload.Schedule != nil {
		if err := utils.ValidateSchedule(payload.Schedule.Days, payload.Schedule.Time); err != nil {
			return req.fail(protocol.CodeInvalidRequest, err.Error())
		}
	}

	membership, err := h.broker.Store.Memberships().ActiveByUser(ctx, req.user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return req.fail(protocol.CodeNotMember, "you are not a member of any garden")
		}
		return req.fail(protocol.CodeDatabaseError, "cannot load membership")
	}

	if _, err := h.broker.Store.Plants().GetByName(ctx, membership.GardenID, payload.PlantName); err == nil {
		return req.fail(protocol.CodeInvalidRequest, "a plant with this name already exists in your garden")
	} else if !errors.Is(err, store.ErrNotFound) {
		return req.fail(protocol.CodeDatabaseError, "cannot check plant name")
	}

	plant := &core.Plant{
		GardenID:      membership.GardenID,
		UserID:        req.user.ID,
		Name:          payload.PlantName,
		IdealMoisture: payload.IdealMoisture,
		WaterLimit:    payload.WaterLimit,
		DripperType:   payload.DripperType,
		Schedule:      payload.Schedule,
		State:         core.NoIrrigation(),
	}
	if err := h.broker.Store.Plants().Create(ctx, plant); err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot create plant")
	}

	garden, err := h.broker.Store.Gardens().GetByID(ctx, membership.GardenID)
	if err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot load garden")
	}

	command := protocol.AddPlantCommand{
		PlantID:       plant.ID,
		Name:          plant.Name,
		IdealMoisture: plant.IdealMoisture,
		WaterLimit:    plant.WaterLimit,
		DripperType:   plant.DripperType,
		Lat:           garden.Latitude,
		Lon:           garden.Longitude,
	}
	if plant.Schedule != nil {
		command.Schedule = &protocol.SchedulePayload{Days: plant.Schedule.Days, Time: plant.Schedule.Time}
	}

	// The correlation is registered before the send so a fast controller
	// response cannot race past it.
	h.broker.Assignment().Register(pending.PlantKey(plant.ID), pending.Context{
		Email:     req.user.Email,
		Operation: req.frame.Type,
		GardenID:  membership.GardenID,
		PlantID:   plant.ID,
		PlantName: plant.Name,
	})

	if err := h.broker.SendToController(membership.GardenID, protocol.New(protocol.TypeAddPlant, command)); err != nil {
		// The record is retained; the client is told assignment failed.
		h.broker.Assignment().Complete(pending.PlantKey(plant.ID))
		return req.fail(protocol.CodeControllerOffline, "plant saved, but the garden controller is offline; hardware assignment failed")
	}

	h.broker.UpdateGauges()
	req.log.Info("Plant created, hardware assignment pending", "plantID", plant.ID)
	return nil
}

type updatePlantRequest struct {
	PlantName     string  `json:"plantName"`
	NewName       string  `json:"newName"`
	IdealMoisture float64 `json:"idealMoisture"`
	WaterLimit    float64 `json:"waterLimit"`
	DripperType   string  `json:"dripperType"`
}

func (h *Handler) updatePlantDetails(ctx context.Context, req *request) error {
	var payload updatePlantRequest
	if err := req.frame.Into(&payload); err != nil || payload.PlantName == "" {
		return req.fail(protocol.CodeInvalidRequest, "plantName is required")
	}

	plant, err := h.plantOfCaller(ctx, req, payload.PlantName)
	if err != nil {
		return err
	}

	if payload.NewName != "" {
		plant.Name = payload.NewName
	}
	if payload.IdealMoisture > 0 {
		if payload.IdealMoisture > 100 {
			return req.fail(protocol.CodeInvalidRequest, "idealMoisture must be within (0, 100]")
		}
		plant.IdealMoisture = payload.IdealMoisture
	}
	if payload.WaterLimit > 0 {
		plant.WaterLimit = payload.WaterLimit
	}
	if payload.DripperType != "" {
		plant.DripperType = payload.DripperType
	}

	if err := h.broker.Store.Plants().Update(ctx, plant); err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot update plant")
	}

	h.broker.Update().Register(pending.PlantKey(plant.ID), pending.Context{
		Email:     req.user.Email,
		Operation: req.frame.Type,
		GardenID:  plant.GardenID,
		PlantID:   plant.ID,
		PlantName: plant.Name,
	})

	command := protocol.UpdatePlantCommand{
		PlantID:       plant.ID,
		Name:          plant.Name,
		IdealMoisture: plant.IdealMoisture,
		WaterLimit:    plant.WaterLimit,
		DripperType:   plant.DripperType,
	}
	if err := h.broker.SendToController(plant.GardenID, protocol.New(protocol.TypeUpdatePlant, command)); err != nil {
		h.broker.Update().Complete(pending.PlantKey(plant.ID))
		// The database update already happened; report success with a hint.
		return req.succeed(map[string]any{
			"plant":   newPlantView(plant),
			"warning": "controller offline, hardware not yet updated",
		})
	}

	h.broker.UpdateGauges()
	return nil
}

type plantScopedRequest struct {
	PlantName string `json:"plantName"`
}

// deletePlant persists nothing itself. The plant row and its history are
// removed only after the controller confirms hardware removal.
func (h *Handler) deletePlant(ctx context.Context, req *request) error {
	var payload plantScopedRequest
	if err := req.frame.Into(&payload); err != nil || payload.PlantName == "" {
		return req.fail(protocol.CodeInvalidRequest, "plantName is required")
	}

	plant, err := h.plantOfCaller(ctx, req, payload.PlantName)
	if err != nil {
		return err
	}

	h.broker.Deletion().Register(pending.PlantKey(plant.ID), pending.Context{
		Email:     req.user.Email,
		Operation: req.frame.Type,
		GardenID:  plant.GardenID,
		PlantID:   plant.ID,
		PlantName: plant.Name,
	})

	if err := h.broker.SendToController(plant.GardenID, protocol.New(protocol.TypeRemovePlant, protocol.PlantCommand{PlantID: plant.ID})); err != nil {
		h.broker.Deletion().Complete(pending.PlantKey(plant.ID))
		return req.fail(protocol.CodeControllerOffline, "the garden controller is offline; the plant was not deleted")
	}

	h.broker.UpdateGauges()
	req.log.Info("Plant deletion pending controller confirmation", "plantID", plant.ID)
	return nil
}

type updateScheduleRequest struct {
	PlantName string   `json:"plantName"`
	Days      []string `json:"days"`
	Time      string   `json:"time"`
}

// updatePlantSchedule stores the schedule and forwards it; no correlation is
// kept for schedule pushes.
func (h *Handler) updatePlantSchedule(ctx context.Context, req *request) error {
	var payload updateScheduleRequest
	if err := req.frame.Into(&payload); err != nil || payload.PlantName == "" {
		return req.fail(protocol.CodeInvalidRequest, "plantName is required")
	}
	if err := utils.ValidateSchedule(payload.Days, payload.Time); err != nil {
		return req.fail(protocol.CodeInvalidRequest, err.Error())
	}

	plant, err := h.plantOfCaller(ctx, req, payload.PlantName)
	if err != nil {
		return err
	}

	schedule := &core.Schedule{Days: payload.Days, Time: payload.Time}
	if err := h.broker.Store.Plants().SetSchedule(ctx, plant.ID, schedule); err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot store schedule")
	}

	frame := protocol.New(protocol.TypeUpdatePlantSched, map[string]any{
		"plant_id": plant.ID,
		"schedule": protocol.SchedulePayload{Days: schedule.Days, Time: schedule.Time},
	})
	if err := h.broker.SendToController(plant.GardenID, frame); err != nil {
		req.log.Info("Schedule push to controller skipped", "plantID", plant.ID, "reason", err.Error())
	}

	return req.succeed(map[string]any{"plantName": plant.Name, "schedule": schedule})
}

type irrigationResultRequest struct {
	PlantName string `json:"plantName"`
	Limit     int    `json:"limit"`
}

func (h *Handler) getIrrigationResult(ctx context.Context, req *request) error {
	var payload irrigationResultRequest
	if err := req.frame.Into(&payload); err != nil || payload.PlantName == "" {
		return req.fail(protocol.CodeInvalidRequest, "plantName is required")
	}
	if payload.Limit <= 0 {
		payload.Limit = 20
	}

	plant, err := h.plantOfCaller(ctx, req, payload.PlantName)
	if err != nil {
		return err
	}

	events, err := h.broker.Store.Events().ListByPlant(ctx, plant.ID, payload.Limit)
	if err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot load irrigation events")
	}
	return req.succeed(map[string]any{
		"plantName": plant.Name,
		"events":    newEventViews(events),
	})
}
