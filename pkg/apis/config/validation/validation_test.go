// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package validation_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/gardener/sprinkler/pkg/apis/config"
	. "github.com/gardener/sprinkler/pkg/apis/config/validation"
)

var _ = Describe("#ValidateServerConfiguration", func() {
	var cfg *config.ServerConfiguration

	BeforeEach(func() {
		cfg = &config.ServerConfiguration{
			Database: config.DatabaseConfiguration{
				Host: "localhost",
				Name: "sprinkler",
				User: "sprinkler",
			},
		}
		config.SetDefaults(cfg)
	})

	It("should pass for a defaulted configuration", func() {
		Expect(ValidateServerConfiguration(cfg)).To(BeEmpty())
	})

	It("should fail for out-of-range ports", func() {
		cfg.Server.Port = 0
		cfg.Server.MetricsPort = 70000
		cfg.Database.Port = -1

		errorList := ValidateServerConfiguration(cfg)

		Expect(errorList).To(ConsistOf(
			PointTo(MatchFields(IgnoreExtras, Fields{
				"Type":  Equal(field.ErrorTypeInvalid),
				"Field": Equal("server.port"),
			})),
			PointTo(MatchFields(IgnoreExtras, Fields{
				"Type":  Equal(field.ErrorTypeInvalid),
				"Field": Equal("server.metricsPort"),
			})),
			PointTo(MatchFields(IgnoreExtras, Fields{
				"Type":  Equal(field.ErrorTypeInvalid),
				"Field": Equal("database.port"),
			})),
		))
	})

	It("should require the database coordinates", func() {
		cfg.Database.Host = ""
		cfg.Database.Name = ""
		cfg.Database.User = ""

		errorList := ValidateServerConfiguration(cfg)

		Expect(errorList).To(ConsistOf(
			PointTo(MatchFields(IgnoreExtras, Fields{
				"Type":  Equal(field.ErrorTypeRequired),
				"Field": Equal("database.host"),
			})),
			PointTo(MatchFields(IgnoreExtras, Fields{
				"Type":  Equal(field.ErrorTypeRequired),
				"Field": Equal("database.name"),
			})),
			PointTo(MatchFields(IgnoreExtras, Fields{
				"Type":  Equal(field.ErrorTypeRequired),
				"Field": Equal("database.user"),
			})),
		))
	})

	It("should fail for an empty connection pool", func() {
		cfg.Database.MaxConnections = 0

		Expect(ValidateServerConfiguration(cfg)).To(ConsistOf(
			PointTo(MatchFields(IgnoreExtras, Fields{
				"Type":  Equal(field.ErrorTypeInvalid),
				"Field": Equal("database.maxConnections"),
			})),
		))
	})

	It("should reject unsupported log levels and formats", func() {
		cfg.Logging.Level = "warning"
		cfg.Logging.Format = "logfmt"

		errorList := ValidateServerConfiguration(cfg)

		Expect(errorList).To(ConsistOf(
			PointTo(MatchFields(IgnoreExtras, Fields{
				"Type":  Equal(field.ErrorTypeNotSupported),
				"Field": Equal("logging.level"),
			})),
			PointTo(MatchFields(IgnoreExtras, Fields{
				"Type":  Equal(field.ErrorTypeNotSupported),
				"Field": Equal("logging.format"),
			})),
		))
	})

	It("should reject non-positive correlation deadlines", func() {
		cfg.Pending.MoistureTTL = metav1.Duration{Duration: -time.Second}

		Expect(ValidateServerConfiguration(cfg)).To(ConsistOf(
			PointTo(MatchFields(IgnoreExtras, Fields{
				"Type":  Equal(field.ErrorTypeInvalid),
				"Field": Equal("pending.moistureTTL"),
			})),
		))
	})

	It("should require a stale threshold only when eviction is enabled", func() {
		cfg.Controllers.EvictStale = false
		cfg.Controllers.StaleThreshold = metav1.Duration{}
		Expect(ValidateServerConfiguration(cfg)).To(BeEmpty())

		cfg.Controllers.EvictStale = true
		Expect(ValidateServerConfiguration(cfg)).To(ConsistOf(
			PointTo(MatchFields(IgnoreExtras, Fields{
				"Type":  Equal(field.ErrorTypeInvalid),
				"Field": Equal("controllers.staleThreshold"),
			})),
		))
	})
})
