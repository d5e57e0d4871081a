/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/trunkwatch/trunkwatch-middleware/configuration"
	"github.com/trunkwatch/trunkwatch-middleware/logs"
)

var client mqtt.Client

// Init initializes the MQTT client and subscribes to the recorder feed
func Init() {
	// MQTT client options
	opts := mqtt.NewClientOptions()
	opts.AddBroker(configuration.Config.MQTTBrokerURL)
	opts.SetClientID("trunkwatch-middleware")
	if configuration.Config.MQTTUsername != "" {
		opts.SetUsername(configuration.Config.MQTTUsername)
		opts.SetPassword(configuration.Config.MQTTPassword)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	// Connection lost handler
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logs.Log(fmt.Sprintf("[WARNING][MQTT] Connection lost: %v", err))
	})

	// On connect handler, also fires on reconnection
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logs.Log("[INFO][MQTT] Connected to MQTT broker")
		subscribeToFeed(client)
	})

	// Create and start client
	client = mqtt.NewClient(opts)

	// Start connection in non-blocking mode
	// The client will retry automatically in background thanks to SetAutoReconnect and SetConnectRetry
	token := client.Connect()

	// Don't wait for connection to complete - let it happen in background
	// This prevents blocking the main thread if MQTT broker is unavailable
	go func() {
		if token.Wait() && token.Error() != nil {
			logs.Log(fmt.Sprintf("[ERROR][MQTT] Failed to connect to MQTT broker: %v", token.Error()))
			logs.Log("[INFO][MQTT] Will retry connection in background...")
		}
	}()

	logs.Log("[INFO][MQTT] MQTT client initialized - connecting in background")
}

// subscribeToFeed subscribes to everything under the configured topic prefix
func subscribeToFeed(client mqtt.Client) {
	topic := configuration.Config.MQTTTopicPrefix + "/#"
	token := client.Subscribe(topic, 0, func(client mqtt.Client, msg mqtt.Message) {
		handleMessage(msg.Topic(), msg.Payload())
	})

	if token.Wait() && token.Error() != nil {
		logs.Log(fmt.Sprintf("[ERROR][MQTT] Failed to subscribe to %s: %v", topic, token.Error()))
		return
	}

	logs.Log(fmt.Sprintf("[INFO][MQTT] Subscribed to topic: %s", topic))
}

// Close closes the MQTT client
func Close() {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		logs.Log("[INFO][MQTT] MQTT client disconnected")
	}
}
