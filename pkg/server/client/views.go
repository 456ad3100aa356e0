// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"time"

	"github.com/gardener/sprinkler/pkg/apis/core"
)

// gardenView is the client-facing projection of a garden.
type gardenView struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	InviteCode string `json:"inviteCode,omitempty"`
	Country    string `json:"country"`
	City       string `json:"city"`
	MaxMembers int    `json:"maxMembers"`
	IsAdmin    bool   `json:"isAdmin"`
}

func newGardenView(garden *core.Garden, userID int64) gardenView {
	view := gardenView{
		ID:         garden.ID,
		Name:       garden.Name,
		Country:    garden.Country,
		City:       garden.City,
		MaxMembers: garden.MaxMembers,
		IsAdmin:    garden.AdminUserID == userID,
	}
	// the invite code is only shared with members
	view.InviteCode = garden.InviteCode
	return view
}

// plantView is the client-facing projection of a plant, including the
// irrigation state used by the app to restore its active-watering overlay.
type plantView struct {
	ID            int64                `json:"id"`
	Name          string               `json:"name"`
	IdealMoisture float64              `json:"idealMoisture"`
	WaterLimit    float64              `json:"waterLimit"`
	DripperType   string               `json:"dripperType,omitempty"`
	Schedule      *core.Schedule       `json:"schedule,omitempty"`
	SensorPort    *int                 `json:"sensorPort,omitempty"`
	ValveID       *int                 `json:"valveId,omitempty"`
	ValveBlocked  bool                 `json:"valveBlocked"`
	Version       int64                `json:"version"`
	State         core.IrrigationState `json:"irrigationState"`
}

func newPlantView(plant *core.Plant) plantView {
	return plantView{
		ID:            plant.ID,
		Name:          plant.Name,
		IdealMoisture: plant.IdealMoisture,
		WaterLimit:    plant.WaterLimit,
		DripperType:   plant.DripperType,
		Schedule:      plant.Schedule,
		SensorPort:    plant.SensorPort,
		ValveID:       plant.ValveID,
		ValveBlocked:  plant.ValveBlocked,
		Version:       plant.Version,
		State:         plant.State,
	}
}

// eventView is the client-facing projection of an irrigation event row.
type eventView struct {
	ID              int64     `json:"id"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason,omitempty"`
	InitialMoisture float64   `json:"initialMoisture"`
	FinalMoisture   float64   `json:"finalMoisture"`
	Liters          float64   `json:"liters"`
	CreatedAt       time.Time `json:"createdAt"`
}

func newEventViews(events []core.IrrigationEvent) []eventView {
	views := make([]eventView, 0, len(events))
	for _, event := range events {
		views = append(views, eventView{
			ID:              event.ID,
			Status:          string(event.Status),
			Reason:          event.Reason,
			InitialMoisture: event.InitialMoisture,
			FinalMoisture:   event.FinalMoisture,
			Liters:          event.Liters,
			CreatedAt:       event.CreatedAt,
		})
	}
	return views
}
