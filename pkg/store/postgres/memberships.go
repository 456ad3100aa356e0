// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/store"
)

type memberships struct {
	pool *pgxpool.Pool
}

func (r memberships) Create(ctx context.Context, membership *core.Membership) error {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO memberships (user_id, garden_id, role, active)
		 VALUES ($1, $2, $3, $4)
		 RETURNING joined_at`,
		membership.UserID, membership.GardenID, membership.Role, membership.Active)
	return translate(row.Scan(&membership.JoinedAt))
}

func (r memberships) Get(ctx context.Context, userID, gardenID int64) (*core.Membership, error) {
	membership := &core.Membership{}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, garden_id, role, active, joined_at
		 FROM memberships WHERE user_id = $1 AND garden_id = $2`,
		userID, gardenID).
		Scan(&membership.UserID, &membership.GardenID, &membership.Role, &membership.Active, &membership.JoinedAt)
	if err != nil {
		return nil, translate(err)
	}
	return membership, nil
}

func (r memberships) SetActive(ctx context.Context, userID, gardenID int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE memberships SET active = $3 WHERE user_id = $1 AND garden_id = $2`,
		userID, gardenID, active)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r memberships) ActiveByUser(ctx context.Context, userID int64) (*core.Membership, error) {
	membership := &core.Membership{}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, garden_id, role, active, joined_at
		 FROM memberships WHERE user_id = $1 AND active`, userID).
		Scan(&membership.UserID, &membership.GardenID, &membership.Role, &membership.Active, &membership.JoinedAt)
	if err != nil {
		return nil, translate(err)
	}
	return membership, nil
}

func (r memberships) ActiveMembers(ctx context.Context, gardenID int64) ([]core.Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.email, u.display_name, m.role, m.joined_at
		 FROM memberships m JOIN users u ON u.id = m.user_id
		 WHERE m.garden_id = $1 AND m.active
		 ORDER BY m.joined_at`, gardenID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		var member core.Member
		if err := rows.Scan(&member.UserID, &member.Email, &member.DisplayName, &member.Role, &member.JoinedAt); err != nil {
			return nil, translate(err)
		}
		members = append(members, member)
	}
	return members, translate(rows.Err())
}

func (r memberships) ActiveMemberEmails(ctx context.Context, gardenID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.email
		 FROM memberships m JOIN users u ON u.id = m.user_id
		 WHERE m.garden_id = $1 AND m.active`, gardenID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r memberships) CountActive(ctx context.Context, gardenID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM memberships WHERE garden_id = $1 AND active`, gardenID).Scan(&count)
	return count, translate(err)
}

func (r memberships) GardensOfUser(ctx context.Context, userID int64) ([]core.Garden, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+qualifiedGardenColumns+`
		 FROM memberships m JOIN gardens g ON g.id = m.garden_id
		 WHERE m.user_id = $1 AND m.active AND g.active
		 ORDER BY g.created_at`, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []core.Garden
	for rows.Next() {
		var garden core.Garden
		if err := rows.Scan(&garden.ID, &garden.Name, &garden.AdminUserID, &garden.InviteCode, &garden.Country, &garden.City,
			&garden.Latitude, &garden.Longitude, &garden.Active, &garden.MaxMembers, &garden.CreatedAt); err != nil {
			return nil, translate(err)
		}
		result = append(result, garden)
	}
	return result, translate(rows.Err())
}

const qualifiedGardenColumns = `g.id, g.name, g.admin_user_id, g.invite_code, g.country, g.city, g.latitude, g.longitude, g.active, g.max_members, g.created_at`
