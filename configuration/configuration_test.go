/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInitDefaults(t *testing.T) {
	Init()

	assert.Equal(t, "127.0.0.1:8080", Config.ListenAddress)
	assert.Equal(t, "tcp://127.0.0.1:1883", Config.MQTTBrokerURL)
	assert.Equal(t, "tr-mqtt/main", Config.MQTTTopicPrefix)
	assert.Equal(t, 30*time.Minute, Config.CallCleanupInterval)
	assert.Equal(t, 100, Config.MaxRecentCalls)
	assert.Equal(t, 100, Config.MaxRateHistory)
	assert.Equal(t, 100*time.Millisecond, Config.BroadcastDebounce)
	assert.False(t, Config.SSEPulseMode)
}

func TestInitReadsEnvironment(t *testing.T) {
	t.Setenv("MQTT_TOPIC_PREFIX", "tr-mqtt/site2")
	t.Setenv("CALL_CLEANUP_INTERVAL", "2h")
	t.Setenv("MAX_RECENT_CALLS", "25")
	t.Setenv("SSE_PULSE_MODE", "true")

	Init()

	assert.Equal(t, "tr-mqtt/site2", Config.MQTTTopicPrefix)
	assert.Equal(t, 2*time.Hour, Config.CallCleanupInterval)
	assert.Equal(t, 25, Config.MaxRecentCalls)
	assert.True(t, Config.SSEPulseMode)
}

func TestInitRejectsNonPositiveDurations(t *testing.T) {
	// a negative cleanup interval would put the retention cutoff in the
	// future and prune every retained call on insert
	t.Setenv("CALL_CLEANUP_INTERVAL", "-30m")
	t.Setenv("BROADCAST_DEBOUNCE", "-100ms")

	Init()

	assert.Equal(t, 30*time.Minute, Config.CallCleanupInterval)
	assert.Equal(t, 100*time.Millisecond, Config.BroadcastDebounce)
}
