// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/utils"
)

type users struct {
	pool *pgxpool.Pool
}

func (r users) Create(ctx context.Context, user *core.User) error {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, display_name, country, city)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		utils.NormalizeEmail(user.Email), user.PasswordHash, user.DisplayName, user.Country, user.City)
	return translate(row.Scan(&user.ID, &user.CreatedAt))
}

func (r users) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, display_name, country, city, created_at
		 FROM users WHERE email = $1`,
		utils.NormalizeEmail(email)))
}

func (r users) GetByID(ctx context.Context, id int64) (*core.User, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, display_name, country, city, created_at
		 FROM users WHERE id = $1`, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r users) scan(row rowScanner) (*core.User, error) {
	user := &core.User{}
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.Country, &user.City, &user.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return user, nil
}
