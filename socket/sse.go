/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package socket

import (
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/trunkwatch/trunkwatch-middleware/logs"
)

// sseSink queues frames for one event-stream connection. The buffer
// decouples broadcast fan-out from the client's read speed; a saturated
// subscriber loses frames instead of stalling delivery to the others.
type sseSink struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newSSESink() *sseSink {
	return &sseSink{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (s *sseSink) Send(payload []byte) error {
	select {
	case <-s.closed:
		return ErrSinkClosed
	default:
	}

	select {
	case s.frames <- payload:
		return nil
	default:
		// subscriber is not keeping up, drop the frame (best effort push)
		return nil
	}
}

func (s *sseSink) Close() {
	s.once.Do(func() { close(s.closed) })
}

// SSEHandler serves the state update stream as text/event-stream
func SSEHandler(c *gin.Context) {
	sink := newSSESink()
	subscriber := connManager.AddStateSubscriber(sink, c.ClientIP())
	defer connManager.RemoveStateSubscriber(subscriber.ID)

	serveEventStream(c, sink)
}

// SSEAudioHandler serves the audio event stream, filterable with a
// comma separated talkgroups query parameter.
func SSEAudioHandler(c *gin.Context) {
	var talkgroups []int64
	if raw := c.Query("talkgroups"); raw != "" {
		for _, field := range strings.Split(raw, ",") {
			tg, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
			if err != nil {
				logs.Log("[WARNING][SSE] Ignoring invalid talkgroup filter value: " + field)
				continue
			}
			talkgroups = append(talkgroups, tg)
		}
	}

	sink := newSSESink()
	subscriber := connManager.AddAudioSubscriber(sink, c.ClientIP(), talkgroups)
	defer connManager.RemoveAudioSubscriber(subscriber.ID)

	serveEventStream(c, sink)
}

func serveEventStream(c *gin.Context, sink *sseSink) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	for {
		select {
		case payload := <-sink.frames:
			if _, err := c.Writer.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
				return
			}
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		case <-sink.closed:
			return
		}
	}
}
