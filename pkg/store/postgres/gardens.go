// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/store"
)

type gardens struct {
	pool *pgxpool.Pool
}

const gardenColumns = `id, name, admin_user_id, invite_code, country, city, latitude, longitude, active, max_members, created_at`

func (r gardens) Create(ctx context.Context, garden *core.Garden) error {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO gardens (name, admin_user_id, invite_code, country, city, latitude, longitude, active, max_members)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		garden.Name, garden.AdminUserID, garden.InviteCode, garden.Country, garden.City,
		garden.Latitude, garden.Longitude, garden.Active, garden.MaxMembers)
	return translate(row.Scan(&garden.ID, &garden.CreatedAt))
}

func (r gardens) GetByID(ctx context.Context, id int64) (*core.Garden, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+gardenColumns+` FROM gardens WHERE id = $1`, id))
}

func (r gardens) GetActiveByInviteCode(ctx context.Context, code string) (*core.Garden, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+gardenColumns+` FROM gardens WHERE invite_code = $1 AND active`, code))
}

func (r gardens) GetActiveByAdmin(ctx context.Context, adminUserID int64) (*core.Garden, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+gardenColumns+` FROM gardens WHERE admin_user_id = $1 AND active`, adminUserID))
}

func (r gardens) Update(ctx context.Context, garden *core.Garden) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE gardens
		 SET name = $2, country = $3, city = $4, latitude = $5, longitude = $6, active = $7, max_members = $8
		 WHERE id = $1`,
		garden.ID, garden.Name, garden.Country, garden.City, garden.Latitude, garden.Longitude, garden.Active, garden.MaxMembers)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r gardens) InviteCodeInUse(ctx context.Context, code string) (bool, error) {
	var inUse bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM gardens WHERE invite_code = $1 AND active)`, code).Scan(&inUse)
	return inUse, translate(err)
}

func (r gardens) scan(row rowScanner) (*core.Garden, error) {
	garden := &core.Garden{}
	if err := row.Scan(&garden.ID, &garden.Name, &garden.AdminUserID, &garden.InviteCode, &garden.Country, &garden.City,
		&garden.Latitude, &garden.Longitude, &garden.Active, &garden.MaxMembers, &garden.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return garden, nil
}
