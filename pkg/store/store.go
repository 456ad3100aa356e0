// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"

	"github.com/gardener/sprinkler/pkg/apis/core"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflicting record exists")

// Interface bundles all repositories of the relational store.
type Interface interface {
	Users() Users
	Gardens() Gardens
	Memberships() Memberships
	Plants() Plants
	Events() Events
	States() States
}

// Users is the repository for user accounts. Emails are case-folded by the
// implementation on all reads and writes.
type Users interface {
	Create(ctx context.Context, user *core.User) error
	GetByEmail(ctx context.Context, email string) (*core.User, error)
	GetByID(ctx context.Context, id int64) (*core.User, error)
}

// Gardens is the repository for gardens. Invite codes are unique among active
// gardens only.
type Gardens interface {
	Create(ctx context.Context, garden *core.Garden) error
	GetByID(ctx context.Context, id int64) (*core.Garden, error)
	GetActiveByInviteCode(ctx context.Context, code string) (*core.Garden, error)
	GetActiveByAdmin(ctx context.Context, adminUserID int64) (*core.Garden, error)
	Update(ctx context.Context, garden *core.Garden) error
	InviteCodeInUse(ctx context.Context, code string) (bool, error)
}

// Memberships is the repository for user↔garden links.
type Memberships interface {
	Create(ctx context.Context, membership *core.Membership) error
	Get(ctx context.Context, userID, gardenID int64) (*core.Membership, error)
	SetActive(ctx context.Context, userID, gardenID int64, active bool) error
	ActiveByUser(ctx context.Context, userID int64) (*core.Membership, error)
	ActiveMembers(ctx context.Context, gardenID int64) ([]core.Member, error)
	ActiveMemberEmails(ctx context.Context, gardenID int64) ([]string, error)
	CountActive(ctx context.Context, gardenID int64) (int, error)
	GardensOfUser(ctx context.Context, userID int64) ([]core.Garden, error)
}

// Plants is the repository for plants. Every mutation increments the plant's
// monotonic version.
type Plants interface {
	Create(ctx context.Context, plant *core.Plant) error
	GetByID(ctx context.Context, id int64) (*core.Plant, error)
	GetByName(ctx context.Context, gardenID int64, name string) (*core.Plant, error)
	ListByGarden(ctx context.Context, gardenID int64) ([]core.Plant, error)
	Update(ctx context.Context, plant *core.Plant) error
	SetHardware(ctx context.Context, id int64, sensorPort, valveID int) error
	SetValveBlocked(ctx context.Context, id int64, blocked bool) error
	SetSchedule(ctx context.Context, id int64, schedule *core.Schedule) error
	Delete(ctx context.Context, id int64) error
}

// Events is the append-only irrigation event log.
type Events interface {
	Append(ctx context.Context, event *core.IrrigationEvent) error
	ListByPlant(ctx context.Context, plantID int64, limit int) ([]core.IrrigationEvent, error)
	DeleteByPlant(ctx context.Context, plantID int64) error
}

// States is the per-plant irrigation state used for UI rehydration. Writes are
// atomic at the row level.
type States interface {
	Set(ctx context.Context, plantID int64, state core.IrrigationState) error
	Get(ctx context.Context, plantID int64) (core.IrrigationState, error)
	Clear(ctx context.Context, plantID int64) error
}
