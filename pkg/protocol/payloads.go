// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package protocol

import "encoding/json"

// Controller payloads use snake_case field names on the wire.

// Status tokens used by controller responses.
const (
	StatusSuccess   = "success"
	StatusSkipped   = "skipped"
	StatusCancelled = "cancelled"
	StatusError     = "error"
)

// SchedulePayload is a watering schedule on the controller wire.
type SchedulePayload struct {
	Days []string `json:"days"`
	Time string   `json:"time"`
}

// AddPlantCommand is the server→controller ADD_PLANT payload.
type AddPlantCommand struct {
	PlantID       int64            `json:"plant_id"`
	Name          string           `json:"name"`
	IdealMoisture float64          `json:"ideal_moisture"`
	WaterLimit    float64          `json:"water_limit"`
	DripperType   string           `json:"dripper_type,omitempty"`
	Schedule      *SchedulePayload `json:"schedule,omitempty"`
	Lat           *float64         `json:"lat,omitempty"`
	Lon           *float64         `json:"lon,omitempty"`
}

// UpdatePlantCommand is the server→controller UPDATE_PLANT payload.
type UpdatePlantCommand struct {
	PlantID       int64   `json:"plant_id"`
	Name          string  `json:"name,omitempty"`
	IdealMoisture float64 `json:"ideal_moisture,omitempty"`
	WaterLimit    float64 `json:"water_limit,omitempty"`
	DripperType   string  `json:"dripper_type,omitempty"`
}

// PlantCommand addresses a single plant, e.g. REMOVE_PLANT or CLOSE_VALVE.
type PlantCommand struct {
	PlantID int64 `json:"plant_id"`
}

// IrrigateCommand is the server→controller IRRIGATE_PLANT payload.
type IrrigateCommand struct {
	PlantID       int64   `json:"plant_id"`
	SessionID     string  `json:"session_id"`
	IdealMoisture float64 `json:"ideal_moisture"`
	WaterLimit    float64 `json:"water_limit"`
}

// OpenValveCommand is the server→controller OPEN_VALVE payload.
type OpenValveCommand struct {
	PlantID     int64 `json:"plant_id"`
	TimeMinutes int   `json:"time_minutes"`
}

// ConnectRequest is the controller→server PI_CONNECT payload.
type ConnectRequest struct {
	FamilyCode string `json:"family_code"`
}

// AddPlantResponse is the controller→server hardware assignment result.
type AddPlantResponse struct {
	Status        string `json:"status"`
	PlantID       int64  `json:"plant_id"`
	SensorPort    *int   `json:"sensor_port"`
	AssignedValve *int   `json:"assigned_valve"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// UpdatePlantResponse is the controller→server plant update result.
type UpdatePlantResponse struct {
	Success bool   `json:"success"`
	PlantID int64  `json:"plant_id"`
	Message string `json:"message,omitempty"`
}

// IrrigationDecision is the controller's verdict on a smart irrigation request.
type IrrigationDecision struct {
	PlantID      int64   `json:"plant_id"`
	SessionID    string  `json:"session_id"`
	WillIrrigate bool    `json:"will_irrigate"`
	Current      float64 `json:"current"`
	Target       float64 `json:"target"`
	Gap          float64 `json:"gap"`
	Reason       string  `json:"reason,omitempty"`
}

// IrrigationProgress is one streamed progress pulse of a running session.
type IrrigationProgress struct {
	PlantID    int64           `json:"plant_id"`
	SessionID  string          `json:"session_id"`
	Stage      string          `json:"stage,omitempty"`
	Pulse      int             `json:"pulse"`
	Current    float64         `json:"current"`
	Target     float64         `json:"target"`
	TotalWater float64         `json:"total_water"`
	Extra      json.RawMessage `json:"extra,omitempty"`
}

// IrrigateResponse is the terminal result of a smart irrigation session.
type IrrigateResponse struct {
	Status           string  `json:"status"`
	PlantID          int64   `json:"plant_id"`
	SessionID        string  `json:"session_id,omitempty"`
	Moisture         float64 `json:"moisture"`
	FinalMoisture    float64 `json:"final_moisture"`
	WaterAddedLiters float64 `json:"water_added_liters"`
	HardwareTime     string  `json:"hardware_time,omitempty"`
	ErrorMessage     string  `json:"error_message,omitempty"`
}

// SimpleResponse covers controller responses that carry only a status for one
// plant (stop, close valve, restart valve, remove plant, diagnostics).
type SimpleResponse struct {
	Status       string `json:"status"`
	PlantID      int64  `json:"plant_id"`
	SessionID    string `json:"session_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// OpenValveResponse is the controller→server manual open result.
type OpenValveResponse struct {
	Status       string `json:"status"`
	PlantID      int64  `json:"plant_id"`
	TimeMinutes  int    `json:"time_minutes"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// MoistureResponse is a single-plant moisture reading.
type MoistureResponse struct {
	Status       string  `json:"status"`
	PlantID      int64   `json:"plant_id"`
	Moisture     float64 `json:"moisture"`
	Temperature  float64 `json:"temperature"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// AllMoistureResponse carries readings for every plant of the garden.
type AllMoistureResponse struct {
	Readings []MoistureResponse `json:"readings"`
}

// ValveStatusResponse is the controller→server valve diagnostic result.
type ValveStatusResponse struct {
	Status       string `json:"status"`
	PlantID      int64  `json:"plant_id"`
	Blocked      bool   `json:"blocked"`
	Open         bool   `json:"open"`
	ErrorMessage string `json:"error_message,omitempty"`
}
