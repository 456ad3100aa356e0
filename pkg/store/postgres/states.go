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

type states struct {
	pool *pgxpool.Pool
}

func (r states) Set(ctx context.Context, plantID int64, state core.IrrigationState) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE plants
		 SET irrigation_mode = $2, irrigation_start_at = $3, irrigation_end_at = $4, irrigation_session_id = $5
		 WHERE id = $1`,
		plantID, state.Mode, state.StartAt, state.EndAt, state.SessionID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r states) Get(ctx context.Context, plantID int64) (core.IrrigationState, error) {
	var state core.IrrigationState
	err := r.pool.QueryRow(ctx,
		`SELECT irrigation_mode, irrigation_start_at, irrigation_end_at, irrigation_session_id
		 FROM plants WHERE id = $1`, plantID).
		Scan(&state.Mode, &state.StartAt, &state.EndAt, &state.SessionID)
	if err != nil {
		return core.NoIrrigation(), translate(err)
	}
	if state.IsNone() {
		return core.NoIrrigation(), nil
	}
	return state, nil
}

func (r states) Clear(ctx context.Context, plantID int64) error {
	return r.Set(ctx, plantID, core.NoIrrigation())
}
