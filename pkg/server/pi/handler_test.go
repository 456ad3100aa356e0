// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package pi_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"
	testclock "k8s.io/utils/clock/testing"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/broker"
	"github.com/gardener/sprinkler/pkg/broker/pending"
	"github.com/gardener/sprinkler/pkg/protocol"
	"github.com/gardener/sprinkler/pkg/protocol/fake"
	"github.com/gardener/sprinkler/pkg/server/pi"
	fakestore "github.com/gardener/sprinkler/pkg/store/fake"
	"github.com/gardener/sprinkler/pkg/weather"
)

// recordingNotifier captures notification calls.
type recordingNotifier struct {
	lock  sync.Mutex
	calls []string
}

func (n *recordingNotifier) NotifyIrrigationStarted(_ context.Context, email, plantName string) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.calls = append(n.calls, email+"/"+plantName)
	return nil
}

func (n *recordingNotifier) Calls() []string {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]string(nil), n.calls...)
}

var _ = Describe("Handler", func() {
	var (
		ctx = context.Background()

		st       *fakestore.Store
		clock    *testclock.FakeClock
		notifier *recordingNotifier
		b        *broker.Broker
		handler  *pi.Handler

		controllerCh *fake.Channel
		annaCh       *fake.Channel
		benCh        *fake.Channel

		garden *core.Garden
		plant  *core.Plant
	)

	send := func(frameType string, payload any) {
		raw, err := json.Marshal(map[string]any{"type": frameType, "data": payload})
		Expect(err).NotTo(HaveOccurred())
		handler.HandleFrame(ctx, controllerCh, raw)
	}

	eventsOf := func(plantID int64) []core.IrrigationEvent {
		events, err := st.Events().ListByPlant(ctx, plantID, 0)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return events
	}

	stateOf := func(plantID int64) core.IrrigationState {
		state, err := st.States().Get(ctx, plantID)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return state
	}

	BeforeEach(func() {
		st = fakestore.NewStore()
		clock = testclock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
		notifier = &recordingNotifier{}
		b = broker.New(st, &weather.StaticGeocoder{}, notifier, clock, broker.Deadlines{
			Irrigation: 2 * time.Minute,
			Moisture:   30 * time.Second,
			Assignment: 5 * time.Minute,
			Update:     5 * time.Minute,
			Deletion:   5 * time.Minute,
		}, logr.Discard())
		handler = pi.NewHandler(b, logr.Discard())

		anna := &core.User{Email: "anna@example.com"}
		Expect(st.Users().Create(ctx, anna)).To(Succeed())
		ben := &core.User{Email: "ben@example.com"}
		Expect(st.Users().Create(ctx, ben)).To(Succeed())

		lat, lon := 32.1, 34.8
		garden = &core.Garden{Name: "backyard", AdminUserID: anna.ID, InviteCode: "ABC234", Latitude: &lat, Longitude: &lon, Active: true, MaxMembers: 4}
		Expect(st.Gardens().Create(ctx, garden)).To(Succeed())
		Expect(st.Memberships().Create(ctx, &core.Membership{UserID: anna.ID, GardenID: garden.ID, Role: core.RoleAdmin, Active: true})).To(Succeed())
		Expect(st.Memberships().Create(ctx, &core.Membership{UserID: ben.ID, GardenID: garden.ID, Role: core.RoleMember, Active: true})).To(Succeed())

		sensorPort, valveID := 1, 2
		plant = &core.Plant{
			GardenID: garden.ID, UserID: anna.ID, Name: "basil",
			IdealMoisture: 60, WaterLimit: 2,
			SensorPort: &sensorPort, ValveID: &valveID,
		}
		Expect(st.Plants().Create(ctx, plant)).To(Succeed())

		annaCh = fake.NewChannel("client-anna")
		benCh = fake.NewChannel("client-ben")
		b.Registry.AttachClient(annaCh, "anna@example.com")
		b.Registry.AttachClient(benCh, "ben@example.com")

		controllerCh = fake.NewChannel("pi-1")
		send(protocol.TypePiConnect, map[string]string{"family_code": "ABC234"})
		Expect(controllerCh.FramesOfType(protocol.TypeGardenSync)).To(HaveLen(1))
	})

	registerIrrigation := func(sessionID string) {
		b.Irrigation().RegisterBySession(sessionID, pending.PlantKey(plant.ID), pending.Context{
			Email:     "anna@example.com",
			Operation: protocol.TypeIrrigatePlant,
			GardenID:  garden.ID,
			PlantID:   plant.ID,
			PlantName: plant.Name,
		})
	}

	Describe("connection handling", func() {
		It("should answer HELLO_PI with WELCOME", func() {
			ch := fake.NewChannel("pi-2")
			handler.HandleFrame(ctx, ch, []byte(`{"type":"HELLO_PI"}`))
			Expect(ch.LastFrame().Type).To(Equal(protocol.TypeWelcome))
		})

		It("should reject unknown family codes", func() {
			ch := fake.NewChannel("pi-2")
			handler.HandleFrame(ctx, ch, []byte(`{"type":"PI_CONNECT","data":{"family_code":"ZZZZZZ"}}`))
			Expect(ch.LastFrame().Type).To(Equal("PI_CONNECT_FAIL"))
		})

		It("should bind regardless of family code casing", func() {
			ch := fake.NewChannel("pi-2")
			handler.HandleFrame(ctx, ch, []byte(`{"type":"PI_CONNECT","data":{"family_code":"abc234"}}`))
			Expect(ch.FramesOfType(protocol.TypeGardenSync)).To(HaveLen(1))
		})

		It("should include only hardware-assigned plants in the sync snapshot", func() {
			unassigned := &core.Plant{GardenID: garden.ID, UserID: 1, Name: "mint", IdealMoisture: 50, WaterLimit: 1}
			Expect(st.Plants().Create(ctx, unassigned)).To(Succeed())

			ch := fake.NewChannel("pi-2")
			handler.HandleFrame(ctx, ch, []byte(`{"type":"PI_CONNECT","data":{"family_code":"ABC234"}}`))

			sync := ch.FramesOfType(protocol.TypeGardenSync)
			Expect(sync).To(HaveLen(1))

			var payload struct {
				Lat    *float64 `json:"lat"`
				Plants []struct {
					PlantID int64 `json:"plant_id"`
				} `json:"plants"`
			}
			Expect(sync[0].Into(&payload)).To(Succeed())
			Expect(*payload.Lat).To(Equal(32.1))
			Expect(payload.Plants).To(HaveLen(1))
			Expect(payload.Plants[0].PlantID).To(Equal(plant.ID))
		})

		It("should answer PING with PONG", func() {
			send(protocol.TypePing, nil)
			Expect(controllerCh.LastFrame().Type).To(Equal(protocol.TypePong))
		})

		It("should drop post-connect frames from unbound channels", func() {
			ch := fake.NewChannel("pi-2")
			handler.HandleFrame(ctx, ch, []byte(`{"type":"PING"}`))
			Expect(ch.Frames()).To(BeEmpty())
		})
	})

	Describe("IRRIGATION_DECISION", func() {
		It("should arm the smart state and notify originator and garden on a positive verdict", func() {
			registerIrrigation("session-1")

			send(protocol.TypeIrrigationDecision, map[string]any{
				"plant_id": plant.ID, "session_id": "session-1", "will_irrigate": true,
				"current": 40.0, "target": 60.0, "gap": 20.0,
			})

			state := stateOf(plant.ID)
			Expect(state.Mode).To(Equal(core.IrrigationModeSmart))
			Expect(state.SessionID).To(PointTo(Equal("session-1")))

			Expect(annaCh.FramesOfType(protocol.TypeIrrigationStarted)).To(HaveLen(1))
			Expect(benCh.FramesOfType(protocol.TypeGardenIrrigationStarted)).To(HaveLen(1))
			Expect(annaCh.FramesOfType(protocol.TypeGardenIrrigationStarted)).To(BeEmpty(), "originator is excluded from the broadcast")

			_, stillPending := b.Irrigation().Peek(pending.PlantKey(plant.ID))
			Expect(stillPending).To(BeTrue(), "correlation must stay until the terminal response")
		})

		It("should finish the round trip without an event row on a negative verdict", func() {
			registerIrrigation("session-1")

			send(protocol.TypeIrrigationDecision, map[string]any{
				"plant_id": plant.ID, "session_id": "session-1", "will_irrigate": false, "reason": "soil moist enough",
			})

			Expect(annaCh.FramesOfType(protocol.TypeIrrigateSkipped)).To(HaveLen(1))
			Expect(eventsOf(plant.ID)).To(BeEmpty())
			Expect(stateOf(plant.ID).IsNone()).To(BeTrue())
			Expect(b.Irrigation().Len()).To(BeZero())
		})
	})

	Describe("IRRIGATION_PROGRESS", func() {
		It("should refresh liveness, forward the pulse and notify on the first pulse only", func() {
			registerIrrigation("session-1")

			send(protocol.TypeIrrigationProgress, map[string]any{
				"plant_id": plant.ID, "session_id": "session-1", "pulse": 1, "current": 45.0, "target": 60.0,
			})
			send(protocol.TypeIrrigationProgress, map[string]any{
				"plant_id": plant.ID, "session_id": "session-1", "pulse": 2, "current": 50.0, "target": 60.0,
			})

			Expect(annaCh.FramesOfType(protocol.TypeIrrigationProgress)).To(HaveLen(2))
			Expect(notifier.Calls()).To(ConsistOf("anna@example.com/basil"))
		})

		It("should keep a long-running session alive past the idle ceiling", func() {
			registerIrrigation("session-1")

			clock.Step(90 * time.Second)
			send(protocol.TypeIrrigationProgress, map[string]any{"plant_id": plant.ID, "session_id": "session-1", "pulse": 3})
			clock.Step(90 * time.Second)

			Expect(b.Irrigation().Sweep()).To(BeEmpty())
		})
	})

	Describe("IRRIGATE_PLANT_RESPONSE", func() {
		It("should append exactly one done row, clear the state and notify the originator on success", func() {
			registerIrrigation("session-1")
			now := clock.Now()
			Expect(st.States().Set(ctx, plant.ID, core.IrrigationState{Mode: core.IrrigationModeSmart, StartAt: &now})).To(Succeed())

			send(protocol.TypeIrrigatePlantResponse, map[string]any{
				"status": "success", "plant_id": plant.ID, "session_id": "session-1",
				"moisture": 40.0, "final_moisture": 61.0, "water_added_liters": 1.2,
			})

			events := eventsOf(plant.ID)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Status).To(Equal(core.EventStatusDone))
			Expect(events[0].Liters).To(Equal(1.2))

			Expect(stateOf(plant.ID).IsNone()).To(BeTrue())
			Expect(annaCh.FramesOfType(protocol.TypeIrrigateSuccess)).To(HaveLen(1))
			Expect(benCh.FramesOfType(protocol.TypeGardenIrrigationStopped)).To(BeEmpty(), "plain success broadcasts nothing")
			Expect(b.Irrigation().Len()).To(BeZero())
		})

		It("should flag the valve and broadcast on a valve-blocked error", func() {
			registerIrrigation("session-1")

			send(protocol.TypeIrrigatePlantResponse, map[string]any{
				"status": "error", "plant_id": plant.ID, "session_id": "session-1",
				"error_message": "water_limit_reached_target_not_met",
			})

			refreshed, err := st.Plants().GetByID(ctx, plant.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(refreshed.ValveBlocked).To(BeTrue())

			events := eventsOf(plant.ID)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Status).To(Equal(core.EventStatusError))

			Expect(annaCh.FramesOfType(protocol.TypeValveBlocked)).To(HaveLen(1))
			Expect(benCh.FramesOfType(protocol.TypeGardenValveBlocked)).To(HaveLen(1))
			Expect(benCh.FramesOfType(protocol.TypeGardenIrrigationStopped)).To(HaveLen(1))
		})

		It("should record a skipped session as skipped", func() {
			registerIrrigation("session-1")

			send(protocol.TypeIrrigatePlantResponse, map[string]any{
				"status": "skipped", "plant_id": plant.ID, "session_id": "session-1",
			})

			events := eventsOf(plant.ID)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Status).To(Equal(core.EventStatusSkipped))
			Expect(annaCh.FramesOfType(protocol.TypeIrrigateSkipped)).To(HaveLen(1))
		})

		It("should integrate the result even when the originator is gone", func() {
			send(protocol.TypeIrrigatePlantResponse, map[string]any{
				"status": "success", "plant_id": plant.ID,
			})

			Expect(eventsOf(plant.ID)).To(HaveLen(1))
		})
	})

	Describe("STOP_IRRIGATION_RESPONSE", func() {
		It("should append a stopped row, notify the originator and broadcast the stop", func() {
			b.Irrigation().Register(pending.PlantKey(plant.ID), pending.Context{
				Email: "anna@example.com", Operation: protocol.TypeStopIrrigation, PlantID: plant.ID, PlantName: plant.Name,
			})

			send(protocol.TypeStopIrrigationResponse, map[string]any{"status": "success", "plant_id": plant.ID})

			events := eventsOf(plant.ID)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Status).To(Equal(core.EventStatusStopped))

			Expect(annaCh.FramesOfType("STOP_IRRIGATION_SUCCESS")).To(HaveLen(1))
			Expect(benCh.FramesOfType(protocol.TypeGardenIrrigationStopped)).To(HaveLen(1))
			Expect(annaCh.FramesOfType(protocol.TypeGardenIrrigationStopped)).To(BeEmpty())
		})

		It("should write no event row when the controller had nothing to stop", func() {
			b.Irrigation().Register(pending.PlantKey(plant.ID), pending.Context{
				Email: "anna@example.com", Operation: protocol.TypeStopIrrigation, PlantID: plant.ID,
			})

			send(protocol.TypeStopIrrigationResponse, map[string]any{
				"status": "error", "plant_id": plant.ID, "error_message": "no active session",
			})

			Expect(eventsOf(plant.ID)).To(BeEmpty())
			Expect(annaCh.FramesOfType("STOP_IRRIGATION_FAIL")).To(HaveLen(1))
		})
	})
})
