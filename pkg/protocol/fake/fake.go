// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package fake

import (
	"errors"
	"sync"

	"github.com/gardener/sprinkler/pkg/protocol"
)

// Channel is an in-memory protocol.Channel recording everything sent to it.
type Channel struct {
	lock sync.Mutex

	id        string
	frames    []*protocol.Frame
	closed    bool
	closeCode int
	// SendErr, when set, is returned by every Send call.
	SendErr error
}

var _ protocol.Channel = &Channel{}

// NewChannel creates a fake channel with the given identifier.
func NewChannel(id string) *Channel {
	return &Channel{id: id}
}

// ID implements protocol.Channel.
func (c *Channel) ID() string { return c.id }

// Send implements protocol.Channel.
func (c *Channel) Send(frame *protocol.Frame) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.SendErr != nil {
		return c.SendErr
	}
	if c.closed {
		return errors.New("channel closed")
	}
	c.frames = append(c.frames, frame)
	return nil
}

// Close implements protocol.Channel.
func (c *Channel) Close(code int, _ string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.closed {
		c.closed = true
		c.closeCode = code
	}
	return nil
}

// IsOpen implements protocol.Channel.
func (c *Channel) IsOpen() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return !c.closed
}

// Frames returns a snapshot of all frames sent so far.
func (c *Channel) Frames() []*protocol.Frame {
	c.lock.Lock()
	defer c.lock.Unlock()
	out := make([]*protocol.Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

// LastFrame returns the most recently sent frame, or nil.
func (c *Channel) LastFrame() *protocol.Frame {
	c.lock.Lock()
	defer c.lock.Unlock()
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

// FramesOfType returns all sent frames with the given type.
func (c *Channel) FramesOfType(frameType string) []*protocol.Frame {
	c.lock.Lock()
	defer c.lock.Unlock()
	var out []*protocol.Frame
	for _, f := range c.frames {
		if f.Type == frameType {
			out = append(out, f)
		}
	}
	return out
}

// CloseCode returns the close code the channel was closed with.
func (c *Channel) CloseCode() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closeCode
}
