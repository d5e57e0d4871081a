/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package configuration

import (
	"os"
	"strconv"
	"time"
)

type Configuration struct {
	ListenAddress string `json:"listen_address"`

	MQTTBrokerURL   string `json:"mqtt_broker_url"`
	MQTTTopicPrefix string `json:"mqtt_topic_prefix"`
	MQTTUsername    string `json:"mqtt_username"`
	MQTTPassword    string `json:"mqtt_password"`

	WhisperAPIURL string `json:"whisper_api_url"`
	WhisperModel  string `json:"whisper_model"`

	CallCleanupInterval time.Duration `json:"call_cleanup_interval"`
	MaxRecentCalls      int           `json:"max_recent_calls"`
	MaxRateHistory      int           `json:"max_rate_history"`

	BroadcastDebounce time.Duration `json:"broadcast_debounce"`
	SSEPulseMode      bool          `json:"sse_pulse_mode"`
}

var Config = Configuration{}

func Init() {
	// read configuration from ENV
	if os.Getenv("LISTEN_ADDRESS") != "" {
		Config.ListenAddress = os.Getenv("LISTEN_ADDRESS")
	} else {
		Config.ListenAddress = "127.0.0.1:8080"
	}

	// set MQTT broker URL
	if os.Getenv("MQTT_BROKER_URL") != "" {
		Config.MQTTBrokerURL = os.Getenv("MQTT_BROKER_URL")
	} else {
		Config.MQTTBrokerURL = "tcp://127.0.0.1:1883"
	}

	// set MQTT topic prefix
	if os.Getenv("MQTT_TOPIC_PREFIX") != "" {
		Config.MQTTTopicPrefix = os.Getenv("MQTT_TOPIC_PREFIX")
	} else {
		Config.MQTTTopicPrefix = "tr-mqtt/main"
	}

	// MQTT credentials are optional, anonymous brokers are common on LAN setups
	Config.MQTTUsername = os.Getenv("MQTT_USERNAME")
	Config.MQTTPassword = os.Getenv("MQTT_PASSWORD")

	// set Whisper API URL
	if os.Getenv("WHISPER_API_URL") != "" {
		Config.WhisperAPIURL = os.Getenv("WHISPER_API_URL")
	} else {
		Config.WhisperAPIURL = "http://localhost:8000/v1/audio/transcriptions"
	}

	// set Whisper model
	if os.Getenv("WHISPER_MODEL") != "" {
		Config.WhisperModel = os.Getenv("WHISPER_MODEL")
	} else {
		Config.WhisperModel = "Systran/faster-distil-whisper-large-v3"
	}

	// set recent call cleanup interval
	if d, err := time.ParseDuration(os.Getenv("CALL_CLEANUP_INTERVAL")); err == nil && d > 0 {
		Config.CallCleanupInterval = d
	} else {
		Config.CallCleanupInterval = 30 * time.Minute
	}

	// set max recent calls
	if n, err := strconv.Atoi(os.Getenv("MAX_RECENT_CALLS")); err == nil && n > 0 {
		Config.MaxRecentCalls = n
	} else {
		Config.MaxRecentCalls = 100
	}

	// set max rate history
	if n, err := strconv.Atoi(os.Getenv("MAX_RATE_HISTORY")); err == nil && n > 0 {
		Config.MaxRateHistory = n
	} else {
		Config.MaxRateHistory = 100
	}

	// set broadcast debounce window
	if d, err := time.ParseDuration(os.Getenv("BROADCAST_DEBOUNCE")); err == nil && d > 0 {
		Config.BroadcastDebounce = d
	} else {
		Config.BroadcastDebounce = 100 * time.Millisecond
	}

	// set SSE pulse mode
	Config.SSEPulseMode = os.Getenv("SSE_PULSE_MODE") == "true"
}
