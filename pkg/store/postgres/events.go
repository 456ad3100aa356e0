// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gardener/sprinkler/pkg/apis/core"
)

type events struct {
	pool *pgxpool.Pool
}

func (r events) Append(ctx context.Context, event *core.IrrigationEvent) error {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO irrigation_events (plant_id, status, reason, initial_moisture, final_moisture, liters, hardware_time, extra)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		event.PlantID, event.Status, event.Reason, event.InitialMoisture, event.FinalMoisture, event.Liters,
		event.HardwareTime, event.Extra)
	return translate(row.Scan(&event.ID, &event.CreatedAt))
}

func (r events) ListByPlant(ctx context.Context, plantID int64, limit int) ([]core.IrrigationEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, plant_id, status, reason, initial_moisture, final_moisture, liters, hardware_time, extra, created_at
		 FROM irrigation_events WHERE plant_id = $1
		 ORDER BY created_at DESC LIMIT $2`, plantID, limit)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []core.IrrigationEvent
	for rows.Next() {
		var event core.IrrigationEvent
		if err := rows.Scan(&event.ID, &event.PlantID, &event.Status, &event.Reason, &event.InitialMoisture,
			&event.FinalMoisture, &event.Liters, &event.HardwareTime, &event.Extra, &event.CreatedAt); err != nil {
			return nil, translate(err)
		}
		result = append(result, event)
	}
	return result, translate(rows.Err())
}

func (r events) DeleteByPlant(ctx context.Context, plantID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM irrigation_events WHERE plant_id = $1`, plantID)
	return translate(err)
}
