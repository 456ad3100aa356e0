// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/gardener/sprinkler/pkg/logger"
)

// SetDefaults sets default values on the given configuration.
func SetDefaults(cfg *ServerConfiguration) {
	if cfg.Server.BindAddress == "" {
		cfg.Server.BindAddress = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 2718
	}
	if cfg.Server.HealthPort == 0 {
		cfg.Server.HealthPort = 2719
	}

	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 10
	}
	if cfg.Database.MaxIdleTime.Duration == 0 {
		cfg.Database.MaxIdleTime = metav1.Duration{Duration: 5 * time.Minute}
	}
	if cfg.Database.ConnectTimeout.Duration == 0 {
		cfg.Database.ConnectTimeout = metav1.Duration{Duration: 10 * time.Second}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = logger.InfoLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = logger.FormatJSON
	}

	if cfg.Pending.SweepInterval.Duration == 0 {
		cfg.Pending.SweepInterval = metav1.Duration{Duration: time.Minute}
	}
	if cfg.Pending.IrrigationTTL.Duration == 0 {
		cfg.Pending.IrrigationTTL = metav1.Duration{Duration: 120 * time.Second}
	}
	if cfg.Pending.MoistureTTL.Duration == 0 {
		cfg.Pending.MoistureTTL = metav1.Duration{Duration: 30 * time.Second}
	}
	if cfg.Pending.AssignmentTTL.Duration == 0 {
		cfg.Pending.AssignmentTTL = metav1.Duration{Duration: 300 * time.Second}
	}
	if cfg.Pending.UpdateTTL.Duration == 0 {
		cfg.Pending.UpdateTTL = metav1.Duration{Duration: 300 * time.Second}
	}
	if cfg.Pending.DeletionTTL.Duration == 0 {
		cfg.Pending.DeletionTTL = metav1.Duration{Duration: 300 * time.Second}
	}

	if cfg.Controllers.StaleThreshold.Duration == 0 {
		cfg.Controllers.StaleThreshold = metav1.Duration{Duration: 10 * time.Minute}
	}
}
