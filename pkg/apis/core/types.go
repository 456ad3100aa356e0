// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"encoding/json"
	"time"
)

// IrrigationMode describes whether and how a plant is currently being watered.
type IrrigationMode string

const (
	// IrrigationModeNone means no irrigation is in progress.
	IrrigationModeNone IrrigationMode = "none"
	// IrrigationModeSmart means a sensor-driven irrigation session is in progress.
	IrrigationModeSmart IrrigationMode = "smart"
	// IrrigationModeManual means the valve was opened manually for a fixed duration.
	IrrigationModeManual IrrigationMode = "manual"
)

// Role is the role of a user within a garden.
type Role string

const (
	// RoleAdmin is the garden administrator.
	RoleAdmin Role = "admin"
	// RoleMember is a regular garden member.
	RoleMember Role = "member"
)

// EventStatus is the terminal status of an irrigation event as reported by the controller.
type EventStatus string

const (
	EventStatusDone        EventStatus = "done"
	EventStatusSkipped     EventStatus = "skipped"
	EventStatusStopped     EventStatus = "stopped"
	EventStatusCancelled   EventStatus = "cancelled"
	EventStatusError       EventStatus = "error"
	EventStatusValveOpened EventStatus = "valve_opened"
	EventStatusValveClosed EventStatus = "valve_closed"
)

// User is a registered account. Emails are case-folded on all reads and writes.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	DisplayName  string
	Country      string
	City         string
	CreatedAt    time.Time
}

// Garden is a tenancy grouping plants, users and one controller.
type Garden struct {
	ID          int64
	Name        string
	AdminUserID int64
	InviteCode  string
	Country     string
	City        string
	Latitude    *float64
	Longitude   *float64
	Active      bool
	MaxMembers  int
	CreatedAt   time.Time
}

// Membership links a user to a garden. A user has at most one active membership
// across all gardens.
type Membership struct {
	UserID   int64
	GardenID int64
	Role     Role
	Active   bool
	JoinedAt time.Time
}

// Member is the projection of a membership joined with its user, as returned to clients.
type Member struct {
	UserID      int64     `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Schedule is a plant watering schedule.
type Schedule struct {
	Days []string `json:"days"`
	Time string   `json:"time"`
}

// Plant is a single plant managed by a garden's controller. SensorPort and ValveID
// are assigned by the controller and remain nil until assignment succeeds.
type Plant struct {
	ID            int64
	GardenID      int64
	UserID        int64
	Name          string
	IdealMoisture float64
	WaterLimit    float64
	DripperType   string
	Schedule      *Schedule
	SensorPort    *int
	ValveID       *int
	ValveBlocked  bool
	Version       int64
	State         IrrigationState
}

// HardwareAssigned reports whether the controller has assigned both a sensor port
// and a valve to the plant.
func (p *Plant) HardwareAssigned() bool {
	return p.SensorPort != nil && p.ValveID != nil
}

// IrrigationEvent is one row of the append-only irrigation log, written once per
// terminal transition reported by the controller.
type IrrigationEvent struct {
	ID              int64
	PlantID         int64
	Status          EventStatus
	Reason          string
	InitialMoisture float64
	FinalMoisture   float64
	Liters          float64
	HardwareTime    *time.Time
	Extra           json.RawMessage
	CreatedAt       time.Time
}

// IrrigationState is the per-plant record used for UI rehydration after reconnect.
// Mode none implies a nil session and a nil end time; manual mode carries a finite
// end time; smart mode has no end time until completion.
type IrrigationState struct {
	Mode      IrrigationMode `json:"mode"`
	StartAt   *time.Time     `json:"startAt,omitempty"`
	EndAt     *time.Time     `json:"endAt,omitempty"`
	SessionID *string        `json:"sessionId,omitempty"`
}

// NoIrrigation is the cleared irrigation state.
func NoIrrigation() IrrigationState {
	return IrrigationState{Mode: IrrigationModeNone}
}

// IsNone reports whether no irrigation is in progress.
func (s IrrigationState) IsNone() bool {
	return s.Mode == IrrigationModeNone || s.Mode == ""
}

// Coordinates is a resolved geographic location.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}
