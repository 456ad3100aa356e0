// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/protocol"
	"github.com/gardener/sprinkler/pkg/store"
	"github.com/gardener/sprinkler/pkg/utils"
)

// inviteCodeAttempts bounds the invite code uniqueness retry loop. With a
// 31-character dictionary and 6 positions a single collision is already below
// one in 10^6 for realistic garden counts.
const inviteCodeAttempts = 5

type createGardenRequest struct {
	Name       string `json:"name"`
	Country    string `json:"country"`
	City       string `json:"city"`
	MaxMembers int    `json:"maxMembers"`
}

func (h *Handler) createGarden(ctx context.Context, req *request) error {
	var payload createGardenRequest
	if err := req.frame.Into(&payload); err != nil {
		return req.fail(protocol.CodeInvalidRequest, "invalid payload")
	}
	if payload.Name == "" || payload.Country == "" || payload.City == "" {
		return req.fail(protocol.CodeInvalidRequest, "name, country and city are required")
	}
	if payload.MaxMembers <= 0 {
		payload.MaxMembers = 4
	}

	if _, err := h.broker.Store.Gardens().GetActiveByAdmin(ctx, req.user.ID); err == nil {
		return req.fail(protocol.CodeUserAlreadyAdmin, "you already administrate an active garden")
	} else if !errors.Is(err, store.ErrNotFound) {
		return req.fail(protocol.CodeDatabaseError, "cannot check existing gardens")
	}
	if _, err := h.broker.Store.Memberships().ActiveByUser(ctx, req.user.ID); err == nil {
		return req.fail(protocol.CodeAlreadyInGarden, "you are already a member of a garden")
	} else if !errors.Is(err, store.ErrNotFound) {
		return req.fail(protocol.CodeDatabaseError, "cannot check existing memberships")
	}

	coordinates, err := h.broker.Geocoder.Resolve(ctx, payload.City, payload.Country)
	if err != nil {
		return req.fail(protocol.CodeInvalidLocation, fmt.Sprintf("cannot resolve location %s, %s", payload.City, payload.Country))
	}

	garden := &core.Garden{
		Name:        payload.Name,
		AdminUserID: req.user.ID,
		Country:     payload.Country,
		City:        payload.City,
		Latitude:    &coordinates.Latitude,
		Longitude:   &coordinates.Longitude,
		Active:      true,
		MaxMembers:  payload.MaxMembers,
	}

	// Codes are unique among active gardens; retry on the rare collision.
	created := false
	for attempt := 0; attempt < inviteCodeAttempts && !created; attempt++ {
		code, err := utils.GenerateInviteCode()
		if err != nil {
			return req.fail(protocol.CodeDatabaseError, "cannot generate invite code")
		}
		garden.InviteCode = code

		switch err := h.broker.Store.Gardens().Create(ctx, garden); {
		case err == nil:
			created = true
		case errors.Is(err, store.ErrConflict):
			continue
		default:
			return req.fail(protocol.CodeDatabaseError, "cannot create garden")
		}
	}
	if !created {
		return req.fail(protocol.CodeDatabaseError, "cannot allocate a unique invite code")
	}

	membership := &core.Membership{
		UserID:   req.user.ID,
		GardenID: garden.ID,
		Role:     core.RoleAdmin,
		Active:   true,
		JoinedAt: h.broker.Clock.Now(),
	}
	if err := h.broker.Store.Memberships().Create(ctx, membership); err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot create admin membership")
	}

	req.log.Info("Garden created", "gardenID", garden.ID, "inviteCode", garden.InviteCode)
	return req.succeed(newGardenView(garden, req.user.ID))
}

func (h *Handler) getUserGardens(ctx context.Context, req *request) error {
	gardens, err := h.broker.Store.Memberships().GardensOfUser(ctx, req.user.ID)
	if err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot load gardens")
	}

	views := make([]gardenView, 0, len(gardens))
	for i := range gardens {
		views = append(views, newGardenView(&gardens[i], req.user.ID))
	}
	return req.succeed(map[string]any{"gardens": views})
}

type gardenScopedRequest struct {
	GardenID int64 `json:"gardenId"`
}

func (h *Handler) getGardenDetails(ctx context.Context, req *request) error {
	var payload gardenScopedRequest
	if err := req.frame.Into(&payload); err != nil || payload.GardenID == 0 {
		return req.fail(protocol.CodeInvalidRequest, "gardenId is required")
	}

	if _, err := h.requireMembership(ctx, req, payload.GardenID); err != nil {
		return err
	}

	garden, err := h.broker.Store.Gardens().GetByID(ctx, payload.GardenID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return req.fail(protocol.CodeGardenNotFound, "garden not found")
		}
		return req.fail(protocol.CodeDatabaseError, "cannot load garden")
	}

	plants, err := h.broker.Store.Plants().ListByGarden(ctx, garden.ID)
	if err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot load plants")
	}
	plantViews := make([]plantView, 0, len(plants))
	for i := range plants {
		plantViews = append(plantViews, h.withState(ctx, &plants[i]))
	}

	memberCount, err := h.broker.Store.Memberships().CountActive(ctx, garden.ID)
	if err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot count members")
	}

	return req.succeed(map[string]any{
		"garden":      newGardenView(garden, req.user.ID),
		"plants":      plantViews,
		"memberCount": memberCount,
	})
}

type searchGardenRequest struct {
	InviteCode string `json:"inviteCode"`
}

func (h *Handler) searchGardenByCode(ctx context.Context, req *request) error {
	var payload searchGardenRequest
	if err := req.frame.Into(&payload); err != nil || payload.InviteCode == "" {
		return req.fail(protocol.CodeInvalidRequest, "inviteCode is required")
	}

	garden, err := h.broker.Store.Gardens().GetActiveByInviteCode(ctx, utils.NormalizeInviteCode(payload.InviteCode))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return req.fail(protocol.CodeGardenNotFound, "no garden with this invite code")
		}
		return req.fail(protocol.CodeDatabaseError, "cannot search garden")
	}

	memberCount, err := h.broker.Store.Memberships().CountActive(ctx, garden.ID)
	if err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot count members")
	}

	// search results carry no invite code; the caller already knows it
	return req.succeed(map[string]any{
		"id":          garden.ID,
		"name":        garden.Name,
		"country":     garden.Country,
		"city":        garden.City,
		"memberCount": memberCount,
		"maxMembers":  garden.MaxMembers,
	})
}

func (h *Handler) joinGarden(ctx context.Context, req *request) error {
	var payload searchGardenRequest
	if err := req.frame.Into(&payload); err != nil || payload.InviteCode == "" {
		return req.fail(protocol.CodeInvalidRequest, "inviteCode is required")
	}

	garden, err := h.broker.Store.Gardens().GetActiveByInviteCode(ctx, utils.NormalizeInviteCode(payload.InviteCode))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return req.fail(protocol.CodeGardenNotFound, "no garden with this invite code")
		}
		return req.fail(protocol.CodeDatabaseError, "cannot look up garden")
	}

	if existing, err := h.broker.Store.Memberships().ActiveByUser(ctx, req.user.ID); err == nil {
		if existing.GardenID == garden.ID {
			return req.fail(protocol.CodeUserAlreadyMembr, "you are already a member of this garden")
		}
		return req.fail(protocol.CodeAlreadyInGarden, "you are already a member of another garden")
	} else if !errors.Is(err, store.ErrNotFound) {
		return req.fail(protocol.CodeDatabaseError, "cannot check memberships")
	}

	memberCount, err := h.broker.Store.Memberships().CountActive(ctx, garden.ID)
	if err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot count members")
	}
	if garden.MaxMembers > 0 && memberCount >= garden.MaxMembers {
		return req.fail(protocol.CodeGardenFull, "the garden has reached its member limit")
	}

	// A previously left membership is reactivated instead of inserting a
	// duplicate row.
	if _, err := h.broker.Store.Memberships().Get(ctx, req.user.ID, garden.ID); err == nil {
		if err := h.broker.Store.Memberships().SetActive(ctx, req.user.ID, garden.ID, true); err != nil {
			return req.fail(protocol.CodeDatabaseError, "cannot rejoin garden")
		}
	} else if errors.Is(err, store.ErrNotFound) {
		membership := &core.Membership{
			UserID:   req.user.ID,
			GardenID: garden.ID,
			Role:     core.RoleMember,
			Active:   true,
			JoinedAt: h.broker.Clock.Now(),
		}
		if err := h.broker.Store.Memberships().Create(ctx, membership); err != nil {
			return req.fail(protocol.CodeDatabaseError, "cannot join garden")
		}
	} else {
		return req.fail(protocol.CodeDatabaseError, "cannot check membership")
	}

	req.log.Info("User joined garden", "gardenID", garden.ID)
	return req.succeed(newGardenView(garden, req.user.ID))
}

func (h *Handler) getGardenMembers(ctx context.Context, req *request) error {
	var payload gardenScopedRequest
	if err := req.frame.Into(&payload); err != nil || payload.GardenID == 0 {
		return req.fail(protocol.CodeInvalidRequest, "gardenId is required")
	}

	if _, err := h.requireMembership(ctx, req, payload.GardenID); err != nil {
		return err
	}

	members, err := h.broker.Store.Memberships().ActiveMembers(ctx, payload.GardenID)
	if err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot load members")
	}
	return req.succeed(map[string]any{"members": members})
}

func (h *Handler) leaveGarden(ctx context.Context, req *request) error {
	var payload gardenScopedRequest
	if err := req.frame.Into(&payload); err != nil || payload.GardenID == 0 {
		return req.fail(protocol.CodeInvalidRequest, "gardenId is required")
	}

	membership, err := h.requireMembership(ctx, req, payload.GardenID)
	if err != nil {
		return err
	}
	if membership.Role == core.RoleAdmin {
		return req.fail(protocol.CodeAdminCannotLeave, "the garden admin cannot leave the garden")
	}

	if err := h.broker.Store.Memberships().SetActive(ctx, req.user.ID, payload.GardenID, false); err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot leave garden")
	}

	req.log.Info("User left garden", "gardenID", payload.GardenID)
	return req.succeed(map[string]any{"gardenId": payload.GardenID})
}

type updateGardenRequest struct {
	GardenID   int64  `json:"gardenId"`
	Name       string `json:"name"`
	Country    string `json:"country"`
	City       string `json:"city"`
	MaxMembers int    `json:"maxMembers"`
}

func (h *Handler) updateGarden(ctx context.Context, req *request) error {
	var payload updateGardenRequest
	if err := req.frame.Into(&payload); err != nil || payload.GardenID == 0 {
		return req.fail(protocol.CodeInvalidRequest, "gardenId is required")
	}

	membership, err := h.requireMembership(ctx, req, payload.GardenID)
	if err != nil {
		return err
	}
	if membership.Role != core.RoleAdmin {
		return req.fail(protocol.CodeUnauthorized, "only the garden admin can update the garden")
	}

	garden, err := h.broker.Store.Gardens().GetByID(ctx, payload.GardenID)
	if err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot load garden")
	}

	if payload.Name != "" {
		garden.Name = payload.Name
	}
	if payload.MaxMembers > 0 {
		garden.MaxMembers = payload.MaxMembers
	}

	locationChanged := (payload.City != "" && payload.City != garden.City) ||
		(payload.Country != "" && payload.Country != garden.Country)
	if locationChanged {
		if payload.City != "" {
			garden.City = payload.City
		}
		if payload.Country != "" {
			garden.Country = payload.Country
		}
		coordinates, err := h.broker.Geocoder.Resolve(ctx, garden.City, garden.Country)
		if err != nil {
			return req.fail(protocol.CodeInvalidLocation, fmt.Sprintf("cannot resolve location %s, %s", garden.City, garden.Country))
		}
		garden.Latitude = &coordinates.Latitude
		garden.Longitude = &coordinates.Longitude
	}

	if err := h.broker.Store.Gardens().Update(ctx, garden); err != nil {
		return req.fail(protocol.CodeDatabaseError, "cannot update garden")
	}

	if locationChanged {
		h.pushLocationToController(ctx, req, garden)
	}

	req.log.Info("Garden updated", "gardenID", garden.ID, "locationChanged", locationChanged)
	return req.succeed(newGardenView(garden, req.user.ID))
}

// pushLocationToController forwards the new coordinates to the controller for
// every plant of the garden, best-effort.
func (h *Handler) pushLocationToController(ctx context.Context, req *request, garden *core.Garden) {
	plants, err := h.broker.Store.Plants().ListByGarden(ctx, garden.ID)
	if err != nil {
		req.log.Error(err, "Cannot load plants for location push", "gardenID", garden.ID)
		return
	}
	for i := range plants {
		frame := protocol.New(protocol.TypeUpdatePlantLocation, map[string]any{
			"plant_id": plants[i].ID,
			"lat":      garden.Latitude,
			"lon":      garden.Longitude,
		})
		if err := h.broker.SendToController(garden.ID, frame); err != nil {
			req.log.Info("Location push to controller skipped", "gardenID", garden.ID, "reason", err.Error())
			return
		}
	}
}
