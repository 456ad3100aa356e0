// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package supervisor_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	testclock "k8s.io/utils/clock/testing"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/broker"
	"github.com/gardener/sprinkler/pkg/broker/pending"
	"github.com/gardener/sprinkler/pkg/mail"
	"github.com/gardener/sprinkler/pkg/protocol"
	"github.com/gardener/sprinkler/pkg/protocol/fake"
	fakestore "github.com/gardener/sprinkler/pkg/store/fake"
	"github.com/gardener/sprinkler/pkg/supervisor"
	"github.com/gardener/sprinkler/pkg/weather"
)

var _ = Describe("Supervisor", func() {
	var (
		ctx = context.Background()

		st    *fakestore.Store
		clock *testclock.FakeClock
		b     *broker.Broker
		sup   *supervisor.Supervisor

		annaCh *fake.Channel
	)

	BeforeEach(func() {
		st = fakestore.NewStore()
		clock = testclock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
		b = broker.New(st, &weather.StaticGeocoder{}, &mail.LogNotifier{Log: logr.Discard()}, clock, broker.Deadlines{
			Irrigation: 2 * time.Minute,
			Moisture:   30 * time.Second,
			Assignment: 5 * time.Minute,
			Update:     5 * time.Minute,
			Deletion:   5 * time.Minute,
		}, logr.Discard())
		sup = supervisor.New(b, supervisor.Options{
			SweepInterval:  time.Minute,
			StaleThreshold: 10 * time.Minute,
		}, logr.Discard())

		annaCh = fake.NewChannel("client-anna")
		b.Registry.AttachClient(annaCh, "anna@example.com")
	})

	Describe("SweepOnce", func() {
		It("should leave live correlations alone", func() {
			b.Irrigation().Register(pending.PlantKey(1), pending.Context{Email: "anna@example.com", Operation: protocol.TypeIrrigatePlant, PlantID: 1})

			clock.Step(time.Minute)
			sup.SweepOnce(ctx)

			Expect(b.Irrigation().Len()).To(Equal(1))
			Expect(annaCh.Frames()).To(BeEmpty())
		})

		It("should evict expired correlations and synthesize the timeout failure", func() {
			b.Irrigation().Register(pending.PlantKey(1), pending.Context{Email: "anna@example.com", Operation: protocol.TypeIrrigatePlant, PlantID: 1})

			clock.Step(3 * time.Minute)
			sup.SweepOnce(ctx)

			Expect(b.Irrigation().Len()).To(BeZero())

			failures := annaCh.FramesOfType("IRRIGATE_PLANT_FAIL")
			Expect(failures).To(HaveLen(1))
			var failure protocol.Failure
			Expect(json.Unmarshal(failures[0].Data, &failure)).To(Succeed())
			Expect(failure.Code).To(Equal(protocol.CodeTimeout))
		})

		It("should apply each table's own deadline", func() {
			b.Irrigation().Register(pending.PlantKey(1), pending.Context{Email: "anna@example.com", Operation: protocol.TypeIrrigatePlant, PlantID: 1})
			b.Moisture().Register(pending.PlantKey(1), pending.Context{Email: "anna@example.com", Operation: protocol.TypeGetPlantMoisture, PlantID: 1})

			clock.Step(time.Minute)
			sup.SweepOnce(ctx)

			Expect(b.Irrigation().Len()).To(Equal(1), "irrigation deadline not yet reached")
			Expect(b.Moisture().Len()).To(BeZero(), "moisture deadline exceeded")
			Expect(annaCh.FramesOfType("GET_PLANT_MOISTURE_FAIL")).To(HaveLen(1))
		})

		It("should respect refreshed liveness", func() {
			b.Irrigation().RegisterBySession("session-1", pending.PlantKey(1), pending.Context{Email: "anna@example.com", Operation: protocol.TypeIrrigatePlant, PlantID: 1})

			clock.Step(90 * time.Second)
			b.Irrigation().TouchBySession("session-1")
			clock.Step(90 * time.Second)
			sup.SweepOnce(ctx)

			Expect(b.Irrigation().Len()).To(Equal(1))
		})

		It("should clear the irrigation state of evicted irrigation correlations", func() {
			plant := &core.Plant{GardenID: 42, UserID: 1, Name: "basil", IdealMoisture: 60, WaterLimit: 2}
			Expect(st.Plants().Create(ctx, plant)).To(Succeed())
			now := clock.Now()
			sessionID := "session-1"
			Expect(st.States().Set(ctx, plant.ID, core.IrrigationState{Mode: core.IrrigationModeSmart, StartAt: &now, SessionID: &sessionID})).To(Succeed())

			b.Irrigation().RegisterBySession(sessionID, pending.PlantKey(plant.ID), pending.Context{
				Email: "anna@example.com", Operation: protocol.TypeIrrigatePlant, PlantID: plant.ID,
			})

			clock.Step(3 * time.Minute)
			sup.SweepOnce(ctx)

			state, err := st.States().Get(ctx, plant.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.IsNone()).To(BeTrue(), "a reconnecting client must not rehydrate an armed state")
			Expect(annaCh.FramesOfType("IRRIGATE_PLANT_FAIL")).To(HaveLen(1))
		})

		It("should leave irrigation state alone for other families", func() {
			plant := &core.Plant{GardenID: 42, UserID: 1, Name: "basil", IdealMoisture: 60, WaterLimit: 2}
			Expect(st.Plants().Create(ctx, plant)).To(Succeed())
			now := clock.Now()
			Expect(st.States().Set(ctx, plant.ID, core.IrrigationState{Mode: core.IrrigationModeSmart, StartAt: &now})).To(Succeed())

			b.Moisture().Register(pending.PlantKey(plant.ID), pending.Context{
				Email: "anna@example.com", Operation: protocol.TypeGetPlantMoisture, PlantID: plant.ID,
			})

			clock.Step(time.Minute)
			sup.SweepOnce(ctx)

			state, err := st.States().Get(ctx, plant.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Mode).To(Equal(core.IrrigationModeSmart))
		})

		It("should skip notification for absent originators", func() {
			b.Deletion().Register(pending.PlantKey(2), pending.Context{Email: "gone@example.com", Operation: protocol.TypeDeletePlant, PlantID: 2})

			clock.Step(6 * time.Minute)
			Expect(func() { sup.SweepOnce(ctx) }).NotTo(Panic())
			Expect(b.Deletion().Len()).To(BeZero())
		})
	})

	Describe("EvictStaleControllers", func() {
		It("should close controllers whose heartbeat is too old", func() {
			controllerCh := fake.NewChannel("pi-1")
			b.Registry.BindController(42, controllerCh, "ABC234")

			clock.Step(11 * time.Minute)
			sup.EvictStaleControllers()

			Expect(controllerCh.IsOpen()).To(BeFalse())
			Expect(controllerCh.CloseCode()).To(Equal(protocol.CloseCodeStale))
			Expect(b.Registry.ControllerByGarden(42)).To(BeNil())
		})

		It("should keep controllers with a recent heartbeat", func() {
			controllerCh := fake.NewChannel("pi-1")
			b.Registry.BindController(42, controllerCh, "ABC234")

			clock.Step(9 * time.Minute)
			b.Registry.Heartbeat(42, controllerCh)
			clock.Step(9 * time.Minute)
			sup.EvictStaleControllers()

			Expect(controllerCh.IsOpen()).To(BeTrue())
			Expect(b.Registry.ControllerByGarden(42)).NotTo(BeNil())
		})
	})
})
