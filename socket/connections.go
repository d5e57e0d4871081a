/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package socket

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trunkwatch/trunkwatch-middleware/logs"
)

// Sink delivers one payload to a subscriber. Implementations must be safe
// for concurrent Send calls and must never block the caller indefinitely.
type Sink interface {
	Send(payload []byte) error
	Close()
}

var ErrSinkClosed = errors.New("sink closed")

// Subscriber is one connected client on the state or audio channel.
type Subscriber struct {
	ID          string
	Origin      string
	ConnectedAt time.Time
	Talkgroups  map[int64]struct{} // audio channel filter, nil means all

	sink      Sink
	lastState *sentinels

	messages int64
	bytes    int64
}

// SubscriberMetrics is the per-subscriber slice of the metrics snapshot.
type SubscriberMetrics struct {
	ID          string    `json:"id"`
	Origin      string    `json:"origin"`
	ConnectedAt time.Time `json:"connected_at"`
	Messages    int64     `json:"messages"`
	Bytes       int64     `json:"bytes"`
}

// ChannelMetrics aggregates one channel of the metrics snapshot.
type ChannelMetrics struct {
	Subscribers   []SubscriberMetrics `json:"subscribers"`
	TotalMessages int64               `json:"total_messages"`
	TotalBytes    int64               `json:"total_bytes"`
}

// MetricsSnapshot is the full delivery metrics read.
type MetricsSnapshot struct {
	State ChannelMetrics `json:"state"`
	Audio ChannelMetrics `json:"audio"`
}

// ConnectionManager tracks the two independent subscriber sets and their
// delivery metrics.
type ConnectionManager struct {
	stateSubscribers map[string]*Subscriber
	audioSubscribers map[string]*Subscriber
	mutex            sync.RWMutex

	stateTotalMessages int64
	stateTotalBytes    int64
	audioTotalMessages int64
	audioTotalBytes    int64
}

var connManager = &ConnectionManager{
	stateSubscribers: make(map[string]*Subscriber),
	audioSubscribers: make(map[string]*Subscriber),
}

// GetConnectionManager returns the global connection manager instance
func GetConnectionManager() *ConnectionManager {
	return connManager
}

// AddStateSubscriber registers a sink on the state update channel
func (cm *ConnectionManager) AddStateSubscriber(sink Sink, origin string) *Subscriber {
	subscriber := &Subscriber{
		ID:          uuid.NewString(),
		Origin:      origin,
		ConnectedAt: time.Now(),
		sink:        sink,
		lastState:   newSentinels(),
	}

	cm.mutex.Lock()
	cm.stateSubscribers[subscriber.ID] = subscriber
	cm.mutex.Unlock()

	logs.Log(fmt.Sprintf("[INFO][HUB] State subscriber connected: %s (%s)", subscriber.ID, origin))
	return subscriber
}

// AddAudioSubscriber registers a sink on the audio event channel, optionally
// filtered to a set of talkgroups.
func (cm *ConnectionManager) AddAudioSubscriber(sink Sink, origin string, talkgroups []int64) *Subscriber {
	subscriber := &Subscriber{
		ID:          uuid.NewString(),
		Origin:      origin,
		ConnectedAt: time.Now(),
		sink:        sink,
	}

	if len(talkgroups) > 0 {
		subscriber.Talkgroups = make(map[int64]struct{}, len(talkgroups))
		for _, tg := range talkgroups {
			subscriber.Talkgroups[tg] = struct{}{}
		}
	}

	cm.mutex.Lock()
	cm.audioSubscribers[subscriber.ID] = subscriber
	cm.mutex.Unlock()

	logs.Log(fmt.Sprintf("[INFO][HUB] Audio subscriber connected: %s (%s)", subscriber.ID, origin))
	return subscriber
}

// RemoveStateSubscriber drops a state subscriber and its metrics entry.
// Idempotent when the subscriber is already gone.
func (cm *ConnectionManager) RemoveStateSubscriber(id string) {
	cm.mutex.Lock()
	subscriber, ok := cm.stateSubscribers[id]
	delete(cm.stateSubscribers, id)
	cm.mutex.Unlock()

	if ok {
		subscriber.sink.Close()
		logs.Log("[INFO][HUB] State subscriber removed: " + id)
	}
}

// RemoveAudioSubscriber drops an audio subscriber, idempotent as well
func (cm *ConnectionManager) RemoveAudioSubscriber(id string) {
	cm.mutex.Lock()
	subscriber, ok := cm.audioSubscribers[id]
	delete(cm.audioSubscribers, id)
	cm.mutex.Unlock()

	if ok {
		subscriber.sink.Close()
		logs.Log("[INFO][HUB] Audio subscriber removed: " + id)
	}
}

// stateSubscriberList copies the current state subscriber set so delivery
// runs without holding the lock.
func (cm *ConnectionManager) stateSubscriberList() []*Subscriber {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	list := make([]*Subscriber, 0, len(cm.stateSubscribers))
	for _, subscriber := range cm.stateSubscribers {
		list = append(list, subscriber)
	}
	return list
}

// deliverState sends one payload to one state subscriber, removing it on
// failure so one broken connection never affects the others.
func (cm *ConnectionManager) deliverState(subscriber *Subscriber, payload []byte) {
	if err := subscriber.sink.Send(payload); err != nil {
		logs.Log(fmt.Sprintf("[WARNING][HUB] Send failed, removing state subscriber %s: %v", subscriber.ID, err))
		cm.RemoveStateSubscriber(subscriber.ID)
		return
	}

	cm.mutex.Lock()
	subscriber.messages++
	subscriber.bytes += int64(len(payload))
	cm.stateTotalMessages++
	cm.stateTotalBytes += int64(len(payload))
	cm.mutex.Unlock()
}

// BroadcastAudio fans an audio event out to every audio subscriber whose
// talkgroup filter matches. Non-matching events are skipped silently.
func (cm *ConnectionManager) BroadcastAudio(talkgroup int64, payload []byte) {
	cm.mutex.RLock()
	subscribers := make([]*Subscriber, 0, len(cm.audioSubscribers))
	for _, subscriber := range cm.audioSubscribers {
		subscribers = append(subscribers, subscriber)
	}
	cm.mutex.RUnlock()

	for _, subscriber := range subscribers {
		if subscriber.Talkgroups != nil {
			if _, ok := subscriber.Talkgroups[talkgroup]; !ok {
				continue
			}
		}

		go func(subscriber *Subscriber) {
			if err := subscriber.sink.Send(payload); err != nil {
				logs.Log(fmt.Sprintf("[WARNING][HUB] Send failed, removing audio subscriber %s: %v", subscriber.ID, err))
				cm.RemoveAudioSubscriber(subscriber.ID)
				return
			}

			cm.mutex.Lock()
			subscriber.messages++
			subscriber.bytes += int64(len(payload))
			cm.audioTotalMessages++
			cm.audioTotalBytes += int64(len(payload))
			cm.mutex.Unlock()
		}(subscriber)
	}
}

// Metrics returns a snapshot of per-subscriber and aggregate counters
func (cm *ConnectionManager) Metrics() MetricsSnapshot {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	snapshot := MetricsSnapshot{
		State: ChannelMetrics{
			Subscribers:   make([]SubscriberMetrics, 0, len(cm.stateSubscribers)),
			TotalMessages: cm.stateTotalMessages,
			TotalBytes:    cm.stateTotalBytes,
		},
		Audio: ChannelMetrics{
			Subscribers:   make([]SubscriberMetrics, 0, len(cm.audioSubscribers)),
			TotalMessages: cm.audioTotalMessages,
			TotalBytes:    cm.audioTotalBytes,
		},
	}

	for _, subscriber := range cm.stateSubscribers {
		snapshot.State.Subscribers = append(snapshot.State.Subscribers, subscriberMetrics(subscriber))
	}
	for _, subscriber := range cm.audioSubscribers {
		snapshot.Audio.Subscribers = append(snapshot.Audio.Subscribers, subscriberMetrics(subscriber))
	}

	return snapshot
}

func subscriberMetrics(subscriber *Subscriber) SubscriberMetrics {
	return SubscriberMetrics{
		ID:          subscriber.ID,
		Origin:      subscriber.Origin,
		ConnectedAt: subscriber.ConnectedAt,
		Messages:    subscriber.messages,
		Bytes:       subscriber.bytes,
	}
}
