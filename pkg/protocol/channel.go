// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package protocol

// Channel is one end of a persistent bidirectional message connection. Writes are
// serialized by the implementation; Send never blocks on slow peers longer than
// the implementation's write deadline.
type Channel interface {
	// ID returns a process-unique identifier for this channel.
	ID() string
	// Send writes a frame to the peer. It is safe for concurrent use.
	Send(frame *Frame) error
	// Close closes the channel with the given close code and reason. Idempotent.
	Close(code int, reason string) error
	// IsOpen reports whether the channel can still accept writes.
	IsOpen() bool
}
