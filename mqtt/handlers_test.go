/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package mqtt

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trunkwatch/trunkwatch-middleware/configuration"
	"github.com/trunkwatch/trunkwatch-middleware/logs"
	"github.com/trunkwatch/trunkwatch-middleware/models"
	"github.com/trunkwatch/trunkwatch-middleware/store"
)

func TestMain(m *testing.M) {
	logs.Init("mqtt-test")
	configuration.Config.MaxRateHistory = 100
	configuration.Config.MaxRecentCalls = 100
	configuration.Config.CallCleanupInterval = 30 * time.Minute
	m.Run()
}

func TestHandleMessageSystems(t *testing.T) {
	store.Init()

	handleMessage("tr-mqtt/main/systems", []byte(`{"type":"systems","systems":[{"sys_name":"county","sys_num":0}]}`))

	snapshot := store.Snapshot()
	require.Len(t, snapshot.Systems, 1)
	assert.Equal(t, "county", snapshot.Systems[0].SysName)
}

func TestHandleMessageMalformedPayloadLeavesStoreUntouched(t *testing.T) {
	store.Init()
	handleMessage("tr-mqtt/main/systems", []byte(`{"type":"systems","systems":[{"sys_name":"county"}]}`))

	handleMessage("tr-mqtt/main/systems", []byte(`{"type":"systems","systems":`))

	snapshot := store.Snapshot()
	require.Len(t, snapshot.Systems, 1)
	assert.Equal(t, "county", snapshot.Systems[0].SysName)
}

func TestHandleMessageCallsActiveNullClears(t *testing.T) {
	store.Init()
	handleMessage("tr-mqtt/main/calls_active", []byte(`{"type":"calls_active","calls":[{"id":"1_1001_1717243200"}]}`))
	require.Len(t, store.Snapshot().Calls, 1)

	handleMessage("tr-mqtt/main/calls_active", []byte(`{"type":"calls_active","calls":null}`))
	assert.Empty(t, store.Snapshot().Calls)
}

func TestHandleMessageRecorderVariantsUnify(t *testing.T) {
	store.Init()

	handleMessage("tr-mqtt/main/recorders", []byte(`{"type":"recorders","recorders":[{"id":"0_0","rec_state_type":"IDLE"},{"id":"0_1","rec_state_type":"RECORDING"}]}`))
	require.Len(t, store.Snapshot().Recorders, 2)

	handleMessage("tr-mqtt/main/recorder", []byte(`{"type":"recorder","recorder":{"id":"0_0","rec_state_type":"RECORDING"}}`))

	snapshot := store.Snapshot()
	require.Len(t, snapshot.Recorders, 2)
	assert.Equal(t, "RECORDING", snapshot.Recorders[0].RecStateType)
	assert.Equal(t, "RECORDING", snapshot.Recorders[1].RecStateType)
}

func TestHandleMessageUnknownCategoryIgnored(t *testing.T) {
	store.Init()

	handleMessage("tr-mqtt/main/trunk_recorder/status", []byte(`{"type":"status"}`))
	handleMessage("plaintopic", []byte(`not even json`))

	snapshot := store.Snapshot()
	assert.Empty(t, snapshot.Systems)
	assert.Empty(t, snapshot.Calls)
	assert.Empty(t, snapshot.Recorders)
}

func TestHandleMessageAudioWithoutWavStoresCallWithoutDispatch(t *testing.T) {
	store.Init()
	dispatched := 0
	store.SetTranscriber(func(callID string, audio *models.CallAudio) { dispatched++ })
	defer store.SetTranscriber(func(callID string, audio *models.CallAudio) {})

	m4a := base64.StdEncoding.EncodeToString([]byte("m4a-bytes"))
	handleMessage("tr-mqtt/main/audio", []byte(`{"type":"audio","call":{"metadata":{"talkgroup":1001,"start_time":1717243200,"call_length":8},"audio_m4a_base64":"`+m4a+`"}}`))

	call, ok := store.GetRecentCall("1001-1717243200")
	require.True(t, ok)
	assert.True(t, call.HasAudio)
	assert.Nil(t, call.Transcription)
	assert.Zero(t, dispatched)
}

func TestHandleMessageAudioWithoutMetadataDropped(t *testing.T) {
	store.Init()

	handleMessage("tr-mqtt/main/audio", []byte(`{"type":"audio","call":{"audio_wav_base64":"UklGRg=="}}`))

	assert.Empty(t, store.Snapshot().RecentCalls)
}
