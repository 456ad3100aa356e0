// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	. "github.com/gardener/sprinkler/pkg/apis/config"
	"github.com/gardener/sprinkler/pkg/logger"
)

var _ = Describe("#SetDefaults", func() {
	var cfg *ServerConfiguration

	BeforeEach(func() {
		cfg = &ServerConfiguration{}
	})

	It("should default the server settings", func() {
		SetDefaults(cfg)

		Expect(cfg.Server.BindAddress).To(Equal("0.0.0.0"))
		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.Server.MetricsPort).To(Equal(2718))
		Expect(cfg.Server.HealthPort).To(Equal(2719))
	})

	It("should default the database pool settings", func() {
		SetDefaults(cfg)

		Expect(cfg.Database.Port).To(Equal(5432))
		Expect(cfg.Database.MaxConnections).To(Equal(int32(10)))
		Expect(cfg.Database.MaxIdleTime).To(Equal(metav1.Duration{Duration: 5 * time.Minute}))
		Expect(cfg.Database.ConnectTimeout).To(Equal(metav1.Duration{Duration: 10 * time.Second}))
	})

	It("should default logging to info/json", func() {
		SetDefaults(cfg)

		Expect(cfg.Logging.Level).To(Equal(logger.InfoLevel))
		Expect(cfg.Logging.Format).To(Equal(logger.FormatJSON))
	})

	It("should default the correlation deadlines", func() {
		SetDefaults(cfg)

		Expect(cfg.Pending.SweepInterval).To(Equal(metav1.Duration{Duration: time.Minute}))
		Expect(cfg.Pending.IrrigationTTL).To(Equal(metav1.Duration{Duration: 120 * time.Second}))
		Expect(cfg.Pending.MoistureTTL).To(Equal(metav1.Duration{Duration: 30 * time.Second}))
		Expect(cfg.Pending.AssignmentTTL).To(Equal(metav1.Duration{Duration: 300 * time.Second}))
		Expect(cfg.Pending.UpdateTTL).To(Equal(metav1.Duration{Duration: 300 * time.Second}))
		Expect(cfg.Pending.DeletionTTL).To(Equal(metav1.Duration{Duration: 300 * time.Second}))
	})

	It("should not overwrite explicit values", func() {
		cfg.Server.Port = 9090
		cfg.Logging.Level = logger.DebugLevel
		cfg.Pending.MoistureTTL = metav1.Duration{Duration: time.Minute}

		SetDefaults(cfg)

		Expect(cfg.Server.Port).To(Equal(9090))
		Expect(cfg.Logging.Level).To(Equal(logger.DebugLevel))
		Expect(cfg.Pending.MoistureTTL).To(Equal(metav1.Duration{Duration: time.Minute}))
	})

	It("should keep stale-controller eviction disabled by default", func() {
		SetDefaults(cfg)

		Expect(cfg.Controllers.EvictStale).To(BeFalse())
		Expect(cfg.Controllers.StaleThreshold).To(Equal(metav1.Duration{Duration: 10 * time.Minute}))
	})
})
