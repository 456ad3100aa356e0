// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package pending_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	testclock "k8s.io/utils/clock/testing"

	"github.com/gardener/sprinkler/pkg/broker/pending"
)

var _ = Describe("Table", func() {
	var (
		clock *testclock.FakeClock
		table *pending.Table
	)

	BeforeEach(func() {
		clock = testclock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
		table = pending.NewTable(pending.FamilyIrrigation, 2*time.Minute, clock)
	})

	Describe("#Register and #Complete", func() {
		It("should complete exactly once", func() {
			table.Register(pending.PlantKey(7), pending.Context{Email: "anna@example.com", Operation: "IRRIGATE_PLANT"})

			corr, ok := table.Complete(pending.PlantKey(7))
			Expect(ok).To(BeTrue())
			Expect(corr.Email).To(Equal("anna@example.com"))

			_, ok = table.Complete(pending.PlantKey(7))
			Expect(ok).To(BeFalse())
		})

		It("should replace an earlier correlation for the same key", func() {
			table.Register(pending.PlantKey(7), pending.Context{Email: "first@example.com"})
			table.Register(pending.PlantKey(7), pending.Context{Email: "second@example.com"})

			corr, ok := table.Complete(pending.PlantKey(7))
			Expect(ok).To(BeTrue())
			Expect(corr.Email).To(Equal("second@example.com"))
			Expect(table.Len()).To(BeZero())
		})

		It("should peek without removing", func() {
			table.Register(pending.PlantKey(7), pending.Context{Email: "anna@example.com"})

			_, ok := table.Peek(pending.PlantKey(7))
			Expect(ok).To(BeTrue())
			Expect(table.Len()).To(Equal(1))
		})
	})

	Describe("#RegisterBySession", func() {
		It("should complete by session and drop the plant key alias", func() {
			table.RegisterBySession("session-1", pending.PlantKey(7), pending.Context{Email: "anna@example.com"})

			corr, ok := table.CompleteBySession("session-1")
			Expect(ok).To(BeTrue())
			Expect(corr.SessionID).To(Equal("session-1"))

			_, ok = table.Complete(pending.PlantKey(7))
			Expect(ok).To(BeFalse())
		})

		It("should clean up the session alias when completed by plant key", func() {
			table.RegisterBySession("session-1", pending.PlantKey(7), pending.Context{Email: "anna@example.com"})

			_, ok := table.Complete(pending.PlantKey(7))
			Expect(ok).To(BeTrue())

			_, ok = table.CompleteBySession("session-1")
			Expect(ok).To(BeFalse())
		})

		It("should drop the session alias when a key-only registration replaces the entry", func() {
			table.RegisterBySession("session-1", pending.PlantKey(7), pending.Context{Email: "anna@example.com"})
			table.Register(pending.PlantKey(7), pending.Context{Email: "anna@example.com", Operation: "STOP_IRRIGATION"})

			_, ok := table.Complete(pending.PlantKey(7))
			Expect(ok).To(BeTrue())
			Expect(table.Len()).To(BeZero())

			// a later session for the same plant must be invisible to the dead
			// session's identifier
			table.RegisterBySession("session-2", pending.PlantKey(7), pending.Context{Email: "ben@example.com"})

			_, ok = table.CompleteBySession("session-1")
			Expect(ok).To(BeFalse())

			corr, ok := table.CompleteBySession("session-2")
			Expect(ok).To(BeTrue())
			Expect(corr.Email).To(Equal("ben@example.com"))
		})

		It("should drop the session alias when a new session replaces the entry", func() {
			table.RegisterBySession("session-1", pending.PlantKey(7), pending.Context{Email: "anna@example.com"})
			table.RegisterBySession("session-2", pending.PlantKey(7), pending.Context{Email: "ben@example.com"})

			_, ok := table.CompleteBySession("session-1")
			Expect(ok).To(BeFalse())

			corr, ok := table.CompleteBySession("session-2")
			Expect(ok).To(BeTrue())
			Expect(corr.Email).To(Equal("ben@example.com"))
			Expect(table.Len()).To(BeZero())
		})
	})

	Describe("#Sweep", func() {
		It("should evict entries idle beyond the deadline", func() {
			table.Register(pending.PlantKey(7), pending.Context{Email: "anna@example.com", Operation: "IRRIGATE_PLANT"})

			clock.Step(2*time.Minute + time.Second)
			expired := table.Sweep()
			Expect(expired).To(HaveLen(1))
			Expect(expired[0].Key).To(Equal(pending.PlantKey(7)))
			Expect(expired[0].Context.Email).To(Equal("anna@example.com"))
			Expect(table.Len()).To(BeZero())
		})

		It("should keep entries within the deadline", func() {
			table.Register(pending.PlantKey(7), pending.Context{})

			clock.Step(time.Minute)
			Expect(table.Sweep()).To(BeEmpty())
			Expect(table.Len()).To(Equal(1))
		})

		It("should treat Touch as fresh liveness", func() {
			table.Register(pending.PlantKey(7), pending.Context{})

			clock.Step(90 * time.Second)
			table.Touch(pending.PlantKey(7))
			clock.Step(90 * time.Second)

			Expect(table.Sweep()).To(BeEmpty(), "touched entry must survive past the original deadline")

			clock.Step(time.Minute)
			Expect(table.Sweep()).To(HaveLen(1))
		})

		It("should treat TouchBySession as fresh liveness", func() {
			table.RegisterBySession("session-1", pending.PlantKey(7), pending.Context{})

			clock.Step(90 * time.Second)
			table.TouchBySession("session-1")
			clock.Step(90 * time.Second)

			Expect(table.Sweep()).To(BeEmpty())
		})

		It("should drop the session alias of swept entries", func() {
			table.RegisterBySession("session-1", pending.PlantKey(7), pending.Context{})

			clock.Step(3 * time.Minute)
			Expect(table.Sweep()).To(HaveLen(1))

			_, ok := table.CompleteBySession("session-1")
			Expect(ok).To(BeFalse())
		})
	})
})
