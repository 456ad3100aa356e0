// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gardener/sprinkler/pkg/protocol"
)

const writeTimeout = 10 * time.Second

// wsChannel adapts one WebSocket connection to protocol.Channel. Writes are
// serialized by a mutex; gorilla/websocket allows at most one concurrent writer.
type wsChannel struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

var _ protocol.Channel = &wsChannel{}

func newChannel(conn *websocket.Conn) *wsChannel {
	return &wsChannel{id: uuid.NewString(), conn: conn}
}

func (c *wsChannel) ID() string { return c.id }

func (c *wsChannel) Send(frame *protocol.Frame) error {
	raw, err := frame.Marshal()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *wsChannel) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	c.writeMu.Unlock()

	return c.conn.Close()
}

func (c *wsChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// markClosed records that the peer went away without going through Close.
func (c *wsChannel) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	_ = c.conn.Close()
}
