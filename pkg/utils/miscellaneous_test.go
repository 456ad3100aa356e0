// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package utils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gardener/sprinkler/pkg/utils"
)

var _ = Describe("Miscellaneous", func() {
	Describe("#GenerateInviteCode", func() {
		It("should generate codes of the configured length from the unambiguous charset", func() {
			for i := 0; i < 20; i++ {
				code, err := utils.GenerateInviteCode()
				Expect(err).NotTo(HaveOccurred())
				Expect(code).To(HaveLen(utils.InviteCodeLength))
				Expect(code).To(MatchRegexp(`^[ABCDEFGHJKMNPQRSTUVWXYZ23456789]+$`))
			}
		})
	})

	Describe("#NormalizeEmail", func() {
		It("should case-fold and trim", func() {
			Expect(utils.NormalizeEmail("  Anna@Example.COM ")).To(Equal("anna@example.com"))
		})
	})

	Describe("#NormalizeInviteCode", func() {
		It("should upper-case and trim", func() {
			Expect(utils.NormalizeInviteCode(" ab23xy ")).To(Equal("AB23XY"))
		})
	})

	Describe("#ValidateSchedule", func() {
		It("should accept week days with a HH:MM time", func() {
			Expect(utils.ValidateSchedule([]string{"monday", "Friday"}, "06:30")).To(Succeed())
		})

		It("should reject an empty day list", func() {
			Expect(utils.ValidateSchedule(nil, "06:30")).NotTo(Succeed())
		})

		It("should reject unknown days", func() {
			Expect(utils.ValidateSchedule([]string{"caturday"}, "06:30")).NotTo(Succeed())
		})

		It("should reject times that are no valid time of day", func() {
			Expect(utils.ValidateSchedule([]string{"monday"}, "25:99")).NotTo(Succeed())
			Expect(utils.ValidateSchedule([]string{"monday"}, "morning")).NotTo(Succeed())
		})
	})
})
