// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package postgres implements the store interfaces on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gardener/sprinkler/pkg/apis/config"
	"github.com/gardener/sprinkler/pkg/store"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// Store implements store.Interface on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Interface = &Store{}

// New connects a pool using the configured coordinates and limits.
func New(ctx context.Context, cfg config.DatabaseConfiguration) (*Store, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot parse database configuration: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConnections
	poolConfig.MaxConnIdleTime = cfg.MaxIdleTime.Duration
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout.Duration

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("cannot create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot reach database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Users() store.Users             { return users{s.pool} }
func (s *Store) Gardens() store.Gardens         { return gardens{s.pool} }
func (s *Store) Memberships() store.Memberships { return memberships{s.pool} }
func (s *Store) Plants() store.Plants           { return plants{s.pool} }
func (s *Store) Events() store.Events           { return events{s.pool} }
func (s *Store) States() store.States           { return states{s.pool} }

// translate maps driver errors onto the store error vocabulary.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrConflict
	}
	return err
}
