// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package pending

import (
	"strconv"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Family is the operation family a correlation table serves.
type Family string

const (
	FamilyIrrigation Family = "irrigation"
	FamilyMoisture   Family = "moisture"
	FamilyAssignment Family = "assignment"
	FamilyUpdate     Family = "update"
	FamilyDeletion   Family = "deletion"
)

// Context links a command in flight to its originating client. It deliberately
// holds the identity only, not the channel; channels are resolved through the
// session registry at delivery time.
type Context struct {
	// Email identifies the originating client.
	Email string
	// Operation is the client request type the correlation belongs to, used to
	// derive the *_FAIL frame on timeout.
	Operation string
	// GardenID and PlantID locate the request target.
	GardenID int64
	PlantID  int64
	// PlantName is the client-facing name snapshot at request time.
	PlantName string
	// SessionID is set for irrigation correlations registered by session.
	SessionID string
	// CreatedAt is the registration time; LastActive is refreshed by Touch.
	CreatedAt  time.Time
	LastActive time.Time
}

// Expired is an entry removed by Sweep.
type Expired struct {
	Key     string
	Context Context
}

// Table is one correlation table. Entries are evicted when their liveness
// exceeds the family's TTL.
type Table struct {
	family Family
	ttl    time.Duration
	clock  clock.Clock

	// lock guards byKey and keyBySession.
	lock         sync.Mutex
	byKey        map[string]*Context
	keyBySession map[string]string
}

// NewTable creates an empty table for the given family and deadline.
func NewTable(family Family, ttl time.Duration, clk clock.Clock) *Table {
	return &Table{
		family:       family,
		ttl:          ttl,
		clock:        clk,
		byKey:        make(map[string]*Context),
		keyBySession: make(map[string]string),
	}
}

// Family returns the family this table serves.
func (t *Table) Family() Family { return t.family }

// PlantKey derives the table key for a plant identifier.
func PlantKey(plantID int64) string { return strconv.FormatInt(plantID, 10) }

// Register inserts a correlation for the given key, replacing any previous one.
func (t *Table) Register(key string, ctx Context) {
	now := t.clock.Now()
	ctx.CreatedAt = now
	ctx.LastActive = now

	t.lock.Lock()
	defer t.lock.Unlock()
	t.replaceLocked(key, &ctx)
}

// RegisterBySession inserts a correlation reachable both by key and by an
// out-of-band session identifier.
func (t *Table) RegisterBySession(sessionID, key string, ctx Context) {
	ctx.SessionID = sessionID

	t.lock.Lock()
	now := t.clock.Now()
	ctx.CreatedAt = now
	ctx.LastActive = now
	t.replaceLocked(key, &ctx)
	t.keyBySession[sessionID] = key
	t.lock.Unlock()
}

// replaceLocked installs the entry, dropping the session alias of any entry it
// replaces so a dead session's identifier can never resolve a later correlation
// for the same key.
func (t *Table) replaceLocked(key string, ctx *Context) {
	if old, ok := t.byKey[key]; ok && old.SessionID != "" {
		delete(t.keyBySession, old.SessionID)
	}
	t.byKey[key] = ctx
}

// Peek returns the correlation for the key without removing it.
func (t *Table) Peek(key string) (Context, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	entry, ok := t.byKey[key]
	if !ok {
		return Context{}, false
	}
	return *entry, true
}

// Complete atomically reads and removes the correlation for the key.
func (t *Table) Complete(key string) (Context, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.completeLocked(key)
}

// CompleteBySession atomically reads and removes the correlation registered for
// the given session identifier. Session matches take precedence over plant-key
// matches; callers try this first.
func (t *Table) CompleteBySession(sessionID string) (Context, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	key, ok := t.keyBySession[sessionID]
	if !ok {
		return Context{}, false
	}
	return t.completeLocked(key)
}

func (t *Table) completeLocked(key string) (Context, bool) {
	entry, ok := t.byKey[key]
	if !ok {
		return Context{}, false
	}
	delete(t.byKey, key)
	if entry.SessionID != "" {
		delete(t.keyBySession, entry.SessionID)
	}
	return *entry, true
}

// Touch refreshes the liveness of the correlation for the key, e.g. on progress
// frames, so long-running operations are not swept at the idle ceiling.
func (t *Table) Touch(key string) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if entry, ok := t.byKey[key]; ok {
		entry.LastActive = t.clock.Now()
	}
}

// TouchBySession is Touch keyed by session identifier.
func (t *Table) TouchBySession(sessionID string) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if key, ok := t.keyBySession[sessionID]; ok {
		if entry, ok := t.byKey[key]; ok {
			entry.LastActive = t.clock.Now()
		}
	}
}

// Sweep removes and returns all entries whose liveness exceeds the table's TTL.
func (t *Table) Sweep() []Expired {
	now := t.clock.Now()

	t.lock.Lock()
	defer t.lock.Unlock()

	var expired []Expired
	for key, entry := range t.byKey {
		if now.Sub(entry.LastActive) > t.ttl {
			expired = append(expired, Expired{Key: key, Context: *entry})
			delete(t.byKey, key)
			if entry.SessionID != "" {
				delete(t.keyBySession, entry.SessionID)
			}
		}
	}
	return expired
}

// Len returns the number of live correlations.
func (t *Table) Len() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.byKey)
}
