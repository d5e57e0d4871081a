/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package socket

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// wsSink wraps a websocket connection as a Sink. Writes are serialized, the
// connection is written from broadcast goroutines.
type wsSink struct {
	conn  *websocket.Conn
	mutex sync.Mutex
	once  sync.Once
}

func (s *wsSink) Send(payload []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSink) Close() {
	s.once.Do(func() { s.conn.Close() })
}

// WsHandler upgrades the connection and mirrors the state update stream
// over websocket, same frames as the event stream without the SSE framing.
func WsHandler(c *gin.Context) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.String(http.StatusInternalServerError, "WebSocket upgrade failed: %v", err)
		return
	}

	sink := &wsSink{conn: conn}
	subscriber := connManager.AddStateSubscriber(sink, c.ClientIP())
	defer connManager.RemoveStateSubscriber(subscriber.ID)

	// drain client frames, the stream is one way; an error means disconnect
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
