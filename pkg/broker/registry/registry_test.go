// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package registry_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	testclock "k8s.io/utils/clock/testing"

	"github.com/gardener/sprinkler/pkg/broker/registry"
	"github.com/gardener/sprinkler/pkg/protocol"
	"github.com/gardener/sprinkler/pkg/protocol/fake"
)

var _ = Describe("SessionRegistry", func() {
	var (
		clock *testclock.FakeClock
		reg   *registry.SessionRegistry
	)

	BeforeEach(func() {
		clock = testclock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
		reg = registry.New(clock)
	})

	Describe("client attachment", func() {
		It("should resolve the channel by normalized email", func() {
			channel := fake.NewChannel("c1")
			Expect(reg.AttachClient(channel, "Anna@Example.com")).To(BeNil())

			Expect(reg.ChannelByEmail("anna@example.com")).To(Equal(channel))
			Expect(reg.EmailByChannel(channel)).To(Equal("anna@example.com"))
		})

		It("should close a replaced channel with the replacement code", func() {
			oldChannel, newChannel := fake.NewChannel("c1"), fake.NewChannel("c2")
			reg.AttachClient(oldChannel, "anna@example.com")

			replaced := reg.AttachClient(newChannel, "anna@example.com")
			Expect(replaced).To(Equal(oldChannel))
			Expect(oldChannel.IsOpen()).To(BeFalse())
			Expect(oldChannel.CloseCode()).To(Equal(protocol.CloseCodeReplaced))
			Expect(reg.ChannelByEmail("anna@example.com")).To(Equal(newChannel))
		})

		It("should not rebind when the same channel attaches twice", func() {
			channel := fake.NewChannel("c1")
			reg.AttachClient(channel, "anna@example.com")
			Expect(reg.AttachClient(channel, "anna@example.com")).To(BeNil())
			Expect(channel.IsOpen()).To(BeTrue())
		})

		It("should not return closed channels", func() {
			channel := fake.NewChannel("c1")
			reg.AttachClient(channel, "anna@example.com")
			Expect(channel.Close(1000, "")).To(Succeed())

			Expect(reg.ChannelByEmail("anna@example.com")).To(BeNil())
		})

		It("should detach idempotently and keep a newer binding intact", func() {
			oldChannel, newChannel := fake.NewChannel("c1"), fake.NewChannel("c2")
			reg.AttachClient(oldChannel, "anna@example.com")
			reg.AttachClient(newChannel, "anna@example.com")

			// late close notification of the replaced channel
			reg.DetachClient(oldChannel)
			reg.DetachClient(oldChannel)
			Expect(reg.ChannelByEmail("anna@example.com")).To(Equal(newChannel))

			reg.DetachClient(newChannel)
			Expect(reg.ChannelByEmail("anna@example.com")).To(BeNil())
			Expect(reg.ClientCount()).To(BeZero())
		})
	})

	Describe("controller binding", func() {
		It("should bind a controller to its garden", func() {
			channel := fake.NewChannel("p1")
			reg.BindController(42, channel, "ABC234")

			Expect(reg.ControllerByGarden(42)).To(Equal(channel))
			gardenID, bound := reg.GardenByController(channel)
			Expect(bound).To(BeTrue())
			Expect(gardenID).To(Equal(int64(42)))
		})

		It("should close a replaced controller channel", func() {
			oldChannel, newChannel := fake.NewChannel("p1"), fake.NewChannel("p2")
			reg.BindController(42, oldChannel, "ABC234")
			reg.BindController(42, newChannel, "ABC234")

			Expect(oldChannel.IsOpen()).To(BeFalse())
			Expect(oldChannel.CloseCode()).To(Equal(protocol.CloseCodeReplaced))
			Expect(reg.ControllerByGarden(42)).To(Equal(newChannel))
		})

		It("should unbind idempotently and keep a newer binding intact", func() {
			oldChannel, newChannel := fake.NewChannel("p1"), fake.NewChannel("p2")
			reg.BindController(42, oldChannel, "ABC234")
			reg.BindController(42, newChannel, "ABC234")

			reg.UnbindController(oldChannel)
			Expect(reg.ControllerByGarden(42)).To(Equal(newChannel))

			reg.UnbindController(newChannel)
			Expect(reg.ControllerByGarden(42)).To(BeNil())
			Expect(reg.ControllerCount()).To(BeZero())
		})
	})

	Describe("heartbeats and staleness", func() {
		It("should report controllers whose last heartbeat is too old", func() {
			fresh, stale := fake.NewChannel("p1"), fake.NewChannel("p2")
			reg.BindController(1, stale, "AAAAAA")
			clock.Step(8 * time.Minute)
			reg.BindController(2, fresh, "BBBBBB")

			clock.Step(4 * time.Minute)
			reg.Heartbeat(2, fresh)

			staleInfos := reg.StaleControllers(10 * time.Minute)
			Expect(staleInfos).To(HaveLen(1))
			Expect(staleInfos[0].GardenID).To(Equal(int64(1)))
			Expect(staleInfos[0].ChannelID).To(Equal("p2"))
		})

		It("should ignore heartbeats from channels that are no longer bound", func() {
			oldChannel, newChannel := fake.NewChannel("p1"), fake.NewChannel("p2")
			reg.BindController(1, oldChannel, "AAAAAA")
			clock.Step(time.Hour)
			reg.BindController(1, newChannel, "AAAAAA")

			reg.Heartbeat(1, oldChannel)
			Expect(reg.StaleControllers(10 * time.Minute)).To(BeEmpty())
		})
	})

	Describe("#EvictController", func() {
		It("should close the controller with the stale code", func() {
			channel := fake.NewChannel("p1")
			reg.BindController(1, channel, "AAAAAA")

			reg.EvictController(1, "p1")
			Expect(channel.IsOpen()).To(BeFalse())
			Expect(channel.CloseCode()).To(Equal(protocol.CloseCodeStale))
			Expect(reg.ControllerByGarden(1)).To(BeNil())
		})

		It("should not evict a channel that was replaced in the meantime", func() {
			oldChannel, newChannel := fake.NewChannel("p1"), fake.NewChannel("p2")
			reg.BindController(1, oldChannel, "AAAAAA")
			reg.BindController(1, newChannel, "AAAAAA")

			reg.EvictController(1, "p1")
			Expect(newChannel.IsOpen()).To(BeTrue())
			Expect(reg.ControllerByGarden(1)).To(Equal(newChannel))
		})
	})
})
