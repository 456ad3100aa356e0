// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package fake provides an in-memory store.Interface for tests.
package fake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/store"
	"github.com/gardener/sprinkler/pkg/utils"
)

// Store is an in-memory implementation of store.Interface.
type Store struct {
	lock sync.Mutex

	users       map[int64]*core.User
	gardens     map[int64]*core.Garden
	memberships map[[2]int64]*core.Membership
	plants      map[int64]*core.Plant
	events      map[int64][]core.IrrigationEvent
	states      map[int64]core.IrrigationState

	nextUserID   int64
	nextGardenID int64
	nextPlantID  int64
	nextEventID  int64

	// Err, when set, is returned by every operation, for exercising the
	// DATABASE_ERROR paths.
	Err error
}

var _ store.Interface = &Store{}

// NewStore creates an empty fake store.
func NewStore() *Store {
	return &Store{
		users:       make(map[int64]*core.User),
		gardens:     make(map[int64]*core.Garden),
		memberships: make(map[[2]int64]*core.Membership),
		plants:      make(map[int64]*core.Plant),
		events:      make(map[int64][]core.IrrigationEvent),
		states:      make(map[int64]core.IrrigationState),
	}
}

func (s *Store) Users() store.Users             { return users{s} }
func (s *Store) Gardens() store.Gardens         { return gardens{s} }
func (s *Store) Memberships() store.Memberships { return memberships{s} }
func (s *Store) Plants() store.Plants           { return plants{s} }
func (s *Store) Events() store.Events           { return events{s} }
func (s *Store) States() store.States           { return states{s} }

type users struct{ s *Store }

func (u users) Create(_ context.Context, user *core.User) error {
	u.s.lock.Lock()
	defer u.s.lock.Unlock()
	if u.s.Err != nil {
		return u.s.Err
	}

	user.Email = utils.NormalizeEmail(user.Email)
	for _, existing := range u.s.users {
		if existing.Email == user.Email {
			return store.ErrConflict
		}
	}
	u.s.nextUserID++
	user.ID = u.s.nextUserID
	copied := *user
	u.s.users[user.ID] = &copied
	return nil
}

func (u users) GetByEmail(_ context.Context, email string) (*core.User, error) {
	u.s.lock.Lock()
	defer u.s.lock.Unlock()
	if u.s.Err != nil {
		return nil, u.s.Err
	}

	email = utils.NormalizeEmail(email)
	for _, user := range u.s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (u users) GetByID(_ context.Context, id int64) (*core.User, error) {
	u.s.lock.Lock()
	defer u.s.lock.Unlock()
	if u.s.Err != nil {
		return nil, u.s.Err
	}

	user, ok := u.s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

type gardens struct{ s *Store }

func (g gardens) Create(_ context.Context, garden *core.Garden) error {
	g.s.lock.Lock()
	defer g.s.lock.Unlock()
	if g.s.Err != nil {
		return g.s.Err
	}

	for _, existing := range g.s.gardens {
		if existing.Active && existing.InviteCode == garden.InviteCode {
			return store.ErrConflict
		}
	}
	g.s.nextGardenID++
	garden.ID = g.s.nextGardenID
	garden.CreatedAt = time.Now()
	copied := *garden
	g.s.gardens[garden.ID] = &copied
	return nil
}

func (g gardens) GetByID(_ context.Context, id int64) (*core.Garden, error) {
	g.s.lock.Lock()
	defer g.s.lock.Unlock()
	if g.s.Err != nil {
		return nil, g.s.Err
	}

	garden, ok := g.s.gardens[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *garden
	return &copied, nil
}

func (g gardens) GetActiveByInviteCode(_ context.Context, code string) (*core.Garden, error) {
	g.s.lock.Lock()
	defer g.s.lock.Unlock()
	if g.s.Err != nil {
		return nil, g.s.Err
	}

	// exact match, like the store; callers normalize codes before lookup
	for _, garden := range g.s.gardens {
		if garden.Active && garden.InviteCode == code {
			copied := *garden
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (g gardens) GetActiveByAdmin(_ context.Context, adminUserID int64) (*core.Garden, error) {
	g.s.lock.Lock()
	defer g.s.lock.Unlock()
	if g.s.Err != nil {
		return nil, g.s.Err
	}

	for _, garden := range g.s.gardens {
		if garden.Active && garden.AdminUserID == adminUserID {
			copied := *garden
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (g gardens) Update(_ context.Context, garden *core.Garden) error {
	g.s.lock.Lock()
	defer g.s.lock.Unlock()
	if g.s.Err != nil {
		return g.s.Err
	}

	if _, ok := g.s.gardens[garden.ID]; !ok {
		return store.ErrNotFound
	}
	copied := *garden
	g.s.gardens[garden.ID] = &copied
	return nil
}

func (g gardens) InviteCodeInUse(_ context.Context, code string) (bool, error) {
	g.s.lock.Lock()
	defer g.s.lock.Unlock()
	if g.s.Err != nil {
		return false, g.s.Err
	}

	for _, garden := range g.s.gardens {
		if garden.Active && garden.InviteCode == code {
			return true, nil
		}
	}
	return false, nil
}

type memberships struct{ s *Store }

func (m memberships) Create(_ context.Context, membership *core.Membership) error {
	m.s.lock.Lock()
	defer m.s.lock.Unlock()
	if m.s.Err != nil {
		return m.s.Err
	}

	key := [2]int64{membership.UserID, membership.GardenID}
	if _, ok := m.s.memberships[key]; ok {
		return store.ErrConflict
	}
	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = time.Now()
	}
	copied := *membership
	m.s.memberships[key] = &copied
	return nil
}

func (m memberships) Get(_ context.Context, userID, gardenID int64) (*core.Membership, error) {
	m.s.lock.Lock()
	defer m.s.lock.Unlock()
	if m.s.Err != nil {
		return nil, m.s.Err
	}

	membership, ok := m.s.memberships[[2]int64{userID, gardenID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *membership
	return &copied, nil
}

func (m memberships) SetActive(_ context.Context, userID, gardenID int64, active bool) error {
	m.s.lock.Lock()
	defer m.s.lock.Unlock()
	if m.s.Err != nil {
		return m.s.Err
	}

	membership, ok := m.s.memberships[[2]int64{userID, gardenID}]
	if !ok {
		return store.ErrNotFound
	}
	membership.Active = active
	return nil
}

func (m memberships) ActiveByUser(_ context.Context, userID int64) (*core.Membership, error) {
	m.s.lock.Lock()
	defer m.s.lock.Unlock()
	if m.s.Err != nil {
		return nil, m.s.Err
	}

	for _, membership := range m.s.memberships {
		if membership.UserID == userID && membership.Active {
			copied := *membership
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m memberships) ActiveMembers(_ context.Context, gardenID int64) ([]core.Member, error) {
	m.s.lock.Lock()
	defer m.s.lock.Unlock()
	if m.s.Err != nil {
		return nil, m.s.Err
	}

	var members []core.Member
	for _, membership := range m.s.memberships {
		if membership.GardenID != gardenID || !membership.Active {
			continue
		}
		member := core.Member{UserID: membership.UserID, Role: membership.Role, JoinedAt: membership.JoinedAt}
		if user, ok := m.s.users[membership.UserID]; ok {
			member.Email = user.Email
			member.DisplayName = user.DisplayName
		}
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members, nil
}

func (m memberships) ActiveMemberEmails(ctx context.Context, gardenID int64) ([]string, error) {
	members, err := m.ActiveMembers(ctx, gardenID)
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(members))
	for _, member := range members {
		emails = append(emails, member.Email)
	}
	return emails, nil
}

func (m memberships) CountActive(_ context.Context, gardenID int64) (int, error) {
	m.s.lock.Lock()
	defer m.s.lock.Unlock()
	if m.s.Err != nil {
		return 0, m.s.Err
	}

	count := 0
	for _, membership := range m.s.memberships {
		if membership.GardenID == gardenID && membership.Active {
			count++
		}
	}
	return count, nil
}

func (m memberships) GardensOfUser(_ context.Context, userID int64) ([]core.Garden, error) {
	m.s.lock.Lock()
	defer m.s.lock.Unlock()
	if m.s.Err != nil {
		return nil, m.s.Err
	}

	var result []core.Garden
	for _, membership := range m.s.memberships {
		if membership.UserID != userID || !membership.Active {
			continue
		}
		if garden, ok := m.s.gardens[membership.GardenID]; ok && garden.Active {
			result = append(result, *garden)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type plants struct{ s *Store }

func (p plants) Create(_ context.Context, plant *core.Plant) error {
	p.s.lock.Lock()
	defer p.s.lock.Unlock()
	if p.s.Err != nil {
		return p.s.Err
	}

	p.s.nextPlantID++
	plant.ID = p.s.nextPlantID
	plant.Version = 1
	copied := *plant
	p.s.plants[plant.ID] = &copied
	return nil
}

func (p plants) GetByID(_ context.Context, id int64) (*core.Plant, error) {
	p.s.lock.Lock()
	defer p.s.lock.Unlock()
	if p.s.Err != nil {
		return nil, p.s.Err
	}

	plant, ok := p.s.plants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *plant
	return &copied, nil
}

func (p plants) GetByName(_ context.Context, gardenID int64, name string) (*core.Plant, error) {
	p.s.lock.Lock()
	defer p.s.lock.Unlock()
	if p.s.Err != nil {
		return nil, p.s.Err
	}

	// exact match, like the store's name equality
	for _, plant := range p.s.plants {
		if plant.GardenID == gardenID && plant.Name == name {
			copied := *plant
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (p plants) ListByGarden(_ context.Context, gardenID int64) ([]core.Plant, error) {
	p.s.lock.Lock()
	defer p.s.lock.Unlock()
	if p.s.Err != nil {
		return nil, p.s.Err
	}

	var result []core.Plant
	for _, plant := range p.s.plants {
		if plant.GardenID == gardenID {
			result = append(result, *plant)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (p plants) Update(_ context.Context, plant *core.Plant) error {
	p.s.lock.Lock()
	defer p.s.lock.Unlock()
	if p.s.Err != nil {
		return p.s.Err
	}

	existing, ok := p.s.plants[plant.ID]
	if !ok {
		return store.ErrNotFound
	}
	plant.Version = existing.Version + 1
	copied := *plant
	p.s.plants[plant.ID] = &copied
	return nil
}

func (p plants) SetHardware(_ context.Context, id int64, sensorPort, valveID int) error {
	p.s.lock.Lock()
	defer p.s.lock.Unlock()
	if p.s.Err != nil {
		return p.s.Err
	}

	plant, ok := p.s.plants[id]
	if !ok {
		return store.ErrNotFound
	}
	plant.SensorPort = &sensorPort
	plant.ValveID = &valveID
	plant.Version++
	return nil
}

func (p plants) SetValveBlocked(_ context.Context, id int64, blocked bool) error {
	p.s.lock.Lock()
	defer p.s.lock.Unlock()
	if p.s.Err != nil {
		return p.s.Err
	}

	plant, ok := p.s.plants[id]
	if !ok {
		return store.ErrNotFound
	}
	plant.ValveBlocked = blocked
	plant.Version++
	return nil
}

func (p plants) SetSchedule(_ context.Context, id int64, schedule *core.Schedule) error {
	p.s.lock.Lock()
	defer p.s.lock.Unlock()
	if p.s.Err != nil {
		return p.s.Err
	}

	plant, ok := p.s.plants[id]
	if !ok {
		return store.ErrNotFound
	}
	plant.Schedule = schedule
	plant.Version++
	return nil
}

func (p plants) Delete(_ context.Context, id int64) error {
	p.s.lock.Lock()
	defer p.s.lock.Unlock()
	if p.s.Err != nil {
		return p.s.Err
	}

	if _, ok := p.s.plants[id]; !ok {
		return store.ErrNotFound
	}
	delete(p.s.plants, id)
	delete(p.s.states, id)
	return nil
}

type events struct{ s *Store }

func (e events) Append(_ context.Context, event *core.IrrigationEvent) error {
	e.s.lock.Lock()
	defer e.s.lock.Unlock()
	if e.s.Err != nil {
		return e.s.Err
	}

	e.s.nextEventID++
	event.ID = e.s.nextEventID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	e.s.events[event.PlantID] = append(e.s.events[event.PlantID], *event)
	return nil
}

func (e events) ListByPlant(_ context.Context, plantID int64, limit int) ([]core.IrrigationEvent, error) {
	e.s.lock.Lock()
	defer e.s.lock.Unlock()
	if e.s.Err != nil {
		return nil, e.s.Err
	}

	all := e.s.events[plantID]
	// newest first
	result := make([]core.IrrigationEvent, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		result = append(result, all[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (e events) DeleteByPlant(_ context.Context, plantID int64) error {
	e.s.lock.Lock()
	defer e.s.lock.Unlock()
	if e.s.Err != nil {
		return e.s.Err
	}

	delete(e.s.events, plantID)
	return nil
}

type states struct{ s *Store }

func (st states) Set(_ context.Context, plantID int64, state core.IrrigationState) error {
	st.s.lock.Lock()
	defer st.s.lock.Unlock()
	if st.s.Err != nil {
		return st.s.Err
	}

	st.s.states[plantID] = state
	if plant, ok := st.s.plants[plantID]; ok {
		plant.State = state
	}
	return nil
}

func (st states) Get(_ context.Context, plantID int64) (core.IrrigationState, error) {
	st.s.lock.Lock()
	defer st.s.lock.Unlock()
	if st.s.Err != nil {
		return core.IrrigationState{}, st.s.Err
	}

	state, ok := st.s.states[plantID]
	if !ok {
		return core.NoIrrigation(), nil
	}
	return state, nil
}

func (st states) Clear(ctx context.Context, plantID int64) error {
	return st.Set(ctx, plantID, core.NoIrrigation())
}
