// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package protocol_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gardener/sprinkler/pkg/protocol"
)

var _ = Describe("Frame", func() {
	Describe("#Decode", func() {
		It("should decode the canonical envelope shape", func() {
			frame, err := protocol.Decode([]byte(`{"type":"IRRIGATE_PLANT","data":{"plantName":"basil"}}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(frame.Type).To(Equal("IRRIGATE_PLANT"))

			var payload struct {
				PlantName string `json:"plantName"`
			}
			Expect(frame.Into(&payload)).To(Succeed())
			Expect(payload.PlantName).To(Equal("basil"))
		})

		It("should decode the legacy merged shape", func() {
			frame, err := protocol.Decode([]byte(`{"type":"JOIN_GARDEN","inviteCode":"ABC234"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(frame.Type).To(Equal("JOIN_GARDEN"))

			var payload struct {
				InviteCode string `json:"inviteCode"`
			}
			Expect(frame.Into(&payload)).To(Succeed())
			Expect(payload.InviteCode).To(Equal("ABC234"))
		})

		It("should prefer the data field over merged siblings", func() {
			frame, err := protocol.Decode([]byte(`{"type":"PING","data":{"a":1},"b":2}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(frame.Data)).To(MatchJSON(`{"a":1}`))
		})

		It("should decode a frame without payload", func() {
			frame, err := protocol.Decode([]byte(`{"type":"PING"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(frame.Type).To(Equal("PING"))
			Expect(frame.Data).To(BeEmpty())
		})

		It("should reject malformed JSON", func() {
			_, err := protocol.Decode([]byte(`{"type":`))
			Expect(err).To(BeAssignableToTypeOf(&protocol.ErrInvalidFrame{}))
		})

		It("should reject frames without type", func() {
			_, err := protocol.Decode([]byte(`{"data":{}}`))
			Expect(err).To(HaveOccurred())
		})

		It("should reject frames with a non-string type", func() {
			_, err := protocol.Decode([]byte(`{"type":42}`))
			Expect(err).To(HaveOccurred())
		})

		It("should reject frames with an empty type", func() {
			_, err := protocol.Decode([]byte(`{"type":""}`))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("#Success and #Fail", func() {
		It("should derive the response type names", func() {
			Expect(protocol.Success(protocol.TypeAddPlant)).To(Equal("ADD_PLANT_SUCCESS"))
			Expect(protocol.Fail(protocol.TypeAddPlant)).To(Equal("ADD_PLANT_FAIL"))
		})
	})

	Describe("#NewFailure", func() {
		It("should carry the machine-readable code", func() {
			frame := protocol.NewFailure(protocol.TypeJoinGarden, protocol.CodeGardenFull, "garden is full")
			Expect(frame.Type).To(Equal("JOIN_GARDEN_FAIL"))

			var failure protocol.Failure
			Expect(frame.Into(&failure)).To(Succeed())
			Expect(failure.Code).To(Equal(protocol.CodeGardenFull))
			Expect(failure.Message).To(Equal("garden is full"))
		})
	})

	Describe("#Marshal", func() {
		It("should round-trip through Decode", func() {
			raw, err := protocol.NewSuccess(protocol.TypeLogin, map[string]string{"email": "x@y.z"}).Marshal()
			Expect(err).NotTo(HaveOccurred())

			frame, err := protocol.Decode(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(frame.Type).To(Equal("LOGIN_SUCCESS"))
		})
	})
})
