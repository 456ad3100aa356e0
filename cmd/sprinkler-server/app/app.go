// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package app provides the sprinkler-server command.
package app

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/gardener/sprinkler/pkg/apis/config"
	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/broker"
	"github.com/gardener/sprinkler/pkg/broker/metrics"
	"github.com/gardener/sprinkler/pkg/logger"
	"github.com/gardener/sprinkler/pkg/mail"
	"github.com/gardener/sprinkler/pkg/server"
	"github.com/gardener/sprinkler/pkg/server/client"
	"github.com/gardener/sprinkler/pkg/server/pi"
	"github.com/gardener/sprinkler/pkg/store/postgres"
	"github.com/gardener/sprinkler/pkg/supervisor"
	"github.com/gardener/sprinkler/pkg/weather"
)

// Name is the name of the binary.
const Name = "sprinkler-server"

// NewCommand creates the sprinkler-server command.
func NewCommand() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   Name,
		Short: "Command broker and irrigation state engine for smart gardens",

		SilenceErrors: true,
		SilenceUsage:  true,

		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Complete(); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}

			logLevel, logFormat := opts.LogConfig()
			log := logger.MustNewZapLogger(logLevel, logFormat).WithName(Name)
			log.Info("Starting " + Name)

			return run(cmd.Context(), log, opts.config)
		},
	}

	opts.AddFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, log logr.Logger, cfg *config.ServerConfiguration) error {
	st, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("cannot connect to database: %w", err)
	}
	defer st.Close()
	log.Info("Connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	var geocoder weather.Geocoder
	if cfg.SimulationMode {
		geocoder = &weather.StaticGeocoder{Coordinates: core.Coordinates{}}
		log.Info("Simulation mode enabled, using static geocoder")
	} else {
		geocoder = weather.NewHTTPGeocoder(cfg.Weather.APIKey, cfg.Weather.BaseURL)
	}

	var notifier mail.Notifier
	if cfg.Mail.Enabled {
		notifier = mail.NewSMTPNotifier(cfg.Mail, log)
	} else {
		notifier = &mail.LogNotifier{Log: log.WithName("mail")}
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	b := broker.New(st, geocoder, notifier, clock.RealClock{}, broker.Deadlines{
		Irrigation: cfg.Pending.IrrigationTTL.Duration,
		Moisture:   cfg.Pending.MoistureTTL.Duration,
		Assignment: cfg.Pending.AssignmentTTL.Duration,
		Update:     cfg.Pending.UpdateTTL.Duration,
		Deletion:   cfg.Pending.DeletionTTL.Duration,
	}, log)

	clientHandler := client.NewHandler(b, log)
	piHandler := pi.NewHandler(b, log)

	sup := supervisor.New(b, supervisor.Options{
		SweepInterval:         cfg.Pending.SweepInterval.Duration,
		EvictStaleControllers: cfg.Controllers.EvictStale,
		StaleThreshold:        cfg.Controllers.StaleThreshold.Duration,
	}, log)
	go sup.Start(ctx)

	srv := server.New(cfg.Server, clientHandler, piHandler, log)
	return srv.Start(ctx, registry)
}
