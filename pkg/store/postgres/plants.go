// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/store"
)

type plants struct {
	pool *pgxpool.Pool
}

// The irrigation state lives on the plants row so state writes and plant reads
// stay a single statement.
const plantColumns = `id, garden_id, user_id, name, ideal_moisture, water_limit, dripper_type, schedule,
	sensor_port, valve_id, valve_blocked, version,
	irrigation_mode, irrigation_start_at, irrigation_end_at, irrigation_session_id`

func (r plants) Create(ctx context.Context, plant *core.Plant) error {
	schedule, err := marshalSchedule(plant.Schedule)
	if err != nil {
		return err
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO plants (garden_id, user_id, name, ideal_moisture, water_limit, dripper_type, schedule, version, irrigation_mode)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 1, 'none')
		 RETURNING id, version`,
		plant.GardenID, plant.UserID, plant.Name, plant.IdealMoisture, plant.WaterLimit, plant.DripperType, schedule)
	return translate(row.Scan(&plant.ID, &plant.Version))
}

func (r plants) GetByID(ctx context.Context, id int64) (*core.Plant, error) {
	return r.scan(r.pool.QueryRow(ctx, `SELECT `+plantColumns+` FROM plants WHERE id = $1`, id))
}

func (r plants) GetByName(ctx context.Context, gardenID int64, name string) (*core.Plant, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+plantColumns+` FROM plants WHERE garden_id = $1 AND name = $2`, gardenID, name))
}

func (r plants) ListByGarden(ctx context.Context, gardenID int64) ([]core.Plant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+plantColumns+` FROM plants WHERE garden_id = $1 ORDER BY id`, gardenID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []core.Plant
	for rows.Next() {
		plant, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *plant)
	}
	return result, translate(rows.Err())
}

func (r plants) Update(ctx context.Context, plant *core.Plant) error {
	schedule, err := marshalSchedule(plant.Schedule)
	if err != nil {
		return err
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE plants
		 SET name = $2, ideal_moisture = $3, water_limit = $4, dripper_type = $5, schedule = $6, version = version + 1
		 WHERE id = $1
		 RETURNING version`,
		plant.ID, plant.Name, plant.IdealMoisture, plant.WaterLimit, plant.DripperType, schedule)
	return translate(row.Scan(&plant.Version))
}

func (r plants) SetHardware(ctx context.Context, id int64, sensorPort, valveID int) error {
	return r.bump(ctx,
		`UPDATE plants SET sensor_port = $2, valve_id = $3, version = version + 1 WHERE id = $1`,
		id, sensorPort, valveID)
}

func (r plants) SetValveBlocked(ctx context.Context, id int64, blocked bool) error {
	return r.bump(ctx,
		`UPDATE plants SET valve_blocked = $2, version = version + 1 WHERE id = $1`, id, blocked)
}

func (r plants) SetSchedule(ctx context.Context, id int64, schedule *core.Schedule) error {
	encoded, err := marshalSchedule(schedule)
	if err != nil {
		return err
	}
	return r.bump(ctx,
		`UPDATE plants SET schedule = $2, version = version + 1 WHERE id = $1`, id, encoded)
}

func (r plants) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM plants WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r plants) bump(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r plants) scan(row rowScanner) (*core.Plant, error) {
	var (
		plant    core.Plant
		schedule []byte
	)
	if err := row.Scan(&plant.ID, &plant.GardenID, &plant.UserID, &plant.Name, &plant.IdealMoisture, &plant.WaterLimit,
		&plant.DripperType, &schedule, &plant.SensorPort, &plant.ValveID, &plant.ValveBlocked, &plant.Version,
		&plant.State.Mode, &plant.State.StartAt, &plant.State.EndAt, &plant.State.SessionID); err != nil {
		return nil, translate(err)
	}
	if len(schedule) > 0 {
		plant.Schedule = &core.Schedule{}
		if err := json.Unmarshal(schedule, plant.Schedule); err != nil {
			return nil, fmt.Errorf("cannot decode schedule of plant %d: %w", plant.ID, err)
		}
	}
	return &plant, nil
}

func marshalSchedule(schedule *core.Schedule) ([]byte, error) {
	if schedule == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(schedule)
	if err != nil {
		return nil, fmt.Errorf("cannot encode schedule: %w", err)
	}
	return encoded, nil
}
