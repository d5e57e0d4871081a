/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package mqtt

import (
	"encoding/json"
	"strings"

	"github.com/trunkwatch/trunkwatch-middleware/logs"
	"github.com/trunkwatch/trunkwatch-middleware/models"
	"github.com/trunkwatch/trunkwatch-middleware/socket"
	"github.com/trunkwatch/trunkwatch-middleware/store"
)

// SystemsMessage represents the JSON payload of the systems topic
type SystemsMessage struct {
	Type    string          `json:"type"`
	Systems []models.System `json:"systems"`
}

// RatesMessage represents the JSON payload of the rates topic
type RatesMessage struct {
	Type  string              `json:"type"`
	Rates []models.DecodeRate `json:"rates"`
}

// CallsMessage represents the JSON payload of the calls_active topic
type CallsMessage struct {
	Type  string              `json:"type"`
	Calls []models.ActiveCall `json:"calls"`
}

// RecordersMessage represents the JSON payload of the recorders topic
type RecordersMessage struct {
	Type      string             `json:"type"`
	Recorders []*models.Recorder `json:"recorders"`
}

// RecorderMessage represents the single recorder variant
type RecorderMessage struct {
	Type     string           `json:"type"`
	Recorder *models.Recorder `json:"recorder"`
}

// AudioMessage represents the JSON payload of the audio topic
type AudioMessage struct {
	Type string           `json:"type"`
	Call models.CallAudio `json:"call"`
}

// AudioEvent is the metadata-only frame pushed to audio subscribers; raw
// audio never travels on this channel.
type AudioEvent struct {
	Type      string               `json:"type"`
	CallID    string               `json:"call_id"`
	Metadata  *models.CallMetadata `json:"metadata"`
	AudioSize int                  `json:"audio_size"`
}

// handleMessage normalizes one inbound message: classify by the last topic
// segment, parse, apply to the store and signal the broadcaster. A malformed
// payload is dropped here and never reaches the store.
func handleMessage(topic string, payload []byte) {
	category := topic
	if idx := strings.LastIndex(topic, "/"); idx >= 0 {
		category = topic[idx+1:]
	}

	switch category {
	case "systems":
		var msg SystemsMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logs.Log("[ERROR][MQTT] Failed to parse systems message: " + err.Error())
			return
		}
		store.UpdateSystems(msg.Systems)
		socket.Notify(socket.CategorySystems)

	case "rates":
		var msg RatesMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logs.Log("[ERROR][MQTT] Failed to parse rates message: " + err.Error())
			return
		}
		store.UpdateRates(msg.Rates)
		socket.Notify(socket.CategoryRates)

	case "calls_active":
		var msg CallsMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logs.Log("[ERROR][MQTT] Failed to parse calls_active message: " + err.Error())
			return
		}
		store.UpdateActiveCalls(msg.Calls)
		socket.Notify(socket.CategoryCalls)

	case "recorders":
		var msg RecordersMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logs.Log("[ERROR][MQTT] Failed to parse recorders message: " + err.Error())
			return
		}
		updateRecorders(msg.Recorders)

	case "recorder":
		// single recorder update, unified into the list call path
		var msg RecorderMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logs.Log("[ERROR][MQTT] Failed to parse recorder message: " + err.Error())
			return
		}
		updateRecorders([]*models.Recorder{msg.Recorder})

	case "audio":
		var msg AudioMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logs.Log("[ERROR][MQTT] Failed to parse audio message: " + err.Error())
			return
		}
		handleCallAudio(&msg.Call)

	default:
		// unrecognized categories are not an error, the feed carries more
		// topics than this middleware consumes
	}
}

func updateRecorders(list []*models.Recorder) {
	recorders := make([]*models.Recorder, 0, len(list))
	for _, recorder := range list {
		if recorder == nil {
			continue
		}
		recorders = append(recorders, recorder)
	}
	if len(recorders) == 0 {
		return
	}

	store.UpdateRecorders(recorders)
	socket.Notify(socket.CategoryRecorders)
}

func handleCallAudio(call *models.CallAudio) {
	callID, err := store.UpdateCallAudio(call)
	if err != nil {
		logs.Log("[ERROR][MQTT] Dropping audio message: " + err.Error())
		return
	}

	socket.Notify(socket.CategoryRecentCalls)

	event := AudioEvent{
		Type:     "audio",
		CallID:   callID,
		Metadata: call.Metadata,
	}
	if stored, ok := store.GetRecentCall(callID); ok {
		event.AudioSize = stored.AudioSize
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logs.Log("[ERROR][MQTT] Failed to marshal audio event: " + err.Error())
		return
	}

	talkgroup := int64(0)
	if call.Metadata != nil {
		talkgroup = call.Metadata.Talkgroup
	}
	socket.GetConnectionManager().BroadcastAudio(talkgroup, payload)
}
