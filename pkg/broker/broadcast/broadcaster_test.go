// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package broadcast_test

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/utils/clock"

	"github.com/gardener/sprinkler/pkg/apis/core"
	"github.com/gardener/sprinkler/pkg/broker/broadcast"
	"github.com/gardener/sprinkler/pkg/broker/registry"
	"github.com/gardener/sprinkler/pkg/protocol/fake"
	fakestore "github.com/gardener/sprinkler/pkg/store/fake"
)

var _ = Describe("Broadcaster", func() {
	var (
		ctx = context.Background()

		st          *fakestore.Store
		reg         *registry.SessionRegistry
		broadcaster *broadcast.Broadcaster

		gardenID int64
	)

	BeforeEach(func() {
		st = fakestore.NewStore()
		reg = registry.New(clock.RealClock{})
		broadcaster = broadcast.New(st.Memberships(), reg, logr.Discard())

		garden := &core.Garden{Name: "backyard", AdminUserID: 1, InviteCode: "ABC234", Active: true, MaxMembers: 10}
		Expect(st.Gardens().Create(ctx, garden)).To(Succeed())
		gardenID = garden.ID

		for _, email := range []string{"anna@example.com", "ben@example.com", "cleo@example.com"} {
			user := &core.User{Email: email}
			Expect(st.Users().Create(ctx, user)).To(Succeed())
			Expect(st.Memberships().Create(ctx, &core.Membership{
				UserID: user.ID, GardenID: gardenID, Role: core.RoleMember, Active: true,
			})).To(Succeed())
		}
	})

	It("should deliver the event to every attached member", func() {
		anna, ben := fake.NewChannel("c1"), fake.NewChannel("c2")
		reg.AttachClient(anna, "anna@example.com")
		reg.AttachClient(ben, "ben@example.com")

		Expect(broadcaster.Broadcast(ctx, gardenID, "GARDEN_MOISTURE_UPDATE", map[string]any{"plantId": 1}, "")).To(Succeed())

		Expect(anna.Frames()).To(HaveLen(1))
		Expect(anna.LastFrame().Type).To(Equal("GARDEN_MOISTURE_UPDATE"))
		Expect(ben.Frames()).To(HaveLen(1))
	})

	It("should skip the excluded initiator", func() {
		anna, ben := fake.NewChannel("c1"), fake.NewChannel("c2")
		reg.AttachClient(anna, "anna@example.com")
		reg.AttachClient(ben, "ben@example.com")

		Expect(broadcaster.Broadcast(ctx, gardenID, "GARDEN_IRRIGATION_STARTED", nil, "Anna@Example.com")).To(Succeed())

		Expect(anna.Frames()).To(BeEmpty())
		Expect(ben.Frames()).To(HaveLen(1))
	})

	It("should skip members without an open channel", func() {
		anna := fake.NewChannel("c1")
		reg.AttachClient(anna, "anna@example.com")

		Expect(broadcaster.Broadcast(ctx, gardenID, "GARDEN_VALVE_BLOCKED", nil, "")).To(Succeed())
		Expect(anna.Frames()).To(HaveLen(1))
	})

	It("should keep delivering after a per-channel failure", func() {
		anna, ben := fake.NewChannel("c1"), fake.NewChannel("c2")
		anna.SendErr = errors.New("boom")
		reg.AttachClient(anna, "anna@example.com")
		reg.AttachClient(ben, "ben@example.com")

		err := broadcaster.Broadcast(ctx, gardenID, "GARDEN_IRRIGATION_STOPPED", nil, "")
		Expect(err).To(HaveOccurred(), "aggregated error is reported for observability")
		Expect(ben.Frames()).To(HaveLen(1))
	})

	It("should propagate membership resolution failures", func() {
		st.Err = errors.New("database down")
		Expect(broadcaster.Broadcast(ctx, gardenID, "GARDEN_MOISTURE_UPDATE", nil, "")).NotTo(Succeed())
	})
})
