// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package validation

import (
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/gardener/sprinkler/pkg/apis/config"
	"github.com/gardener/sprinkler/pkg/logger"
)

// ValidateServerConfiguration validates the given ServerConfiguration.
func ValidateServerConfiguration(cfg *config.ServerConfiguration) field.ErrorList {
	allErrs := field.ErrorList{}

	allErrs = append(allErrs, validatePort(cfg.Server.Port, field.NewPath("server", "port"))...)
	allErrs = append(allErrs, validatePort(cfg.Server.MetricsPort, field.NewPath("server", "metricsPort"))...)
	allErrs = append(allErrs, validatePort(cfg.Server.HealthPort, field.NewPath("server", "healthPort"))...)

	dbPath := field.NewPath("database")
	if cfg.Database.Host == "" {
		allErrs = append(allErrs, field.Required(dbPath.Child("host"), "database host is required"))
	}
	if cfg.Database.Name == "" {
		allErrs = append(allErrs, field.Required(dbPath.Child("name"), "database name is required"))
	}
	if cfg.Database.User == "" {
		allErrs = append(allErrs, field.Required(dbPath.Child("user"), "database user is required"))
	}
	allErrs = append(allErrs, validatePort(cfg.Database.Port, dbPath.Child("port"))...)
	if cfg.Database.MaxConnections < 1 {
		allErrs = append(allErrs, field.Invalid(dbPath.Child("maxConnections"), cfg.Database.MaxConnections, "must be at least 1"))
	}

	logPath := field.NewPath("logging")
	switch cfg.Logging.Level {
	case logger.DebugLevel, logger.InfoLevel, logger.ErrorLevel:
	default:
		allErrs = append(allErrs, field.NotSupported(logPath.Child("level"), cfg.Logging.Level, []string{logger.DebugLevel, logger.InfoLevel, logger.ErrorLevel}))
	}
	switch cfg.Logging.Format {
	case logger.FormatJSON, logger.FormatText:
	default:
		allErrs = append(allErrs, field.NotSupported(logPath.Child("format"), cfg.Logging.Format, []string{logger.FormatJSON, logger.FormatText}))
	}

	pendingPath := field.NewPath("pending")
	for _, d := range []struct {
		name  string
		value int64
	}{
		{"sweepInterval", int64(cfg.Pending.SweepInterval.Duration)},
		{"irrigationTTL", int64(cfg.Pending.IrrigationTTL.Duration)},
		{"moistureTTL", int64(cfg.Pending.MoistureTTL.Duration)},
		{"assignmentTTL", int64(cfg.Pending.AssignmentTTL.Duration)},
		{"updateTTL", int64(cfg.Pending.UpdateTTL.Duration)},
		{"deletionTTL", int64(cfg.Pending.DeletionTTL.Duration)},
	} {
		if d.value <= 0 {
			allErrs = append(allErrs, field.Invalid(pendingPath.Child(d.name), d.value, "must be greater than zero"))
		}
	}

	if cfg.Controllers.EvictStale && cfg.Controllers.StaleThreshold.Duration <= 0 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("controllers", "staleThreshold"), cfg.Controllers.StaleThreshold.Duration, "must be greater than zero when eviction is enabled"))
	}

	return allErrs
}

func validatePort(port int, fldPath *field.Path) field.ErrorList {
	allErrs := field.ErrorList{}
	if port < 1 || port > 65535 {
		allErrs = append(allErrs, field.Invalid(fldPath, port, "must be a valid port"))
	}
	return allErrs
}
