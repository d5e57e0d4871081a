/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package main

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/trunkwatch/trunkwatch-middleware/configuration"
	"github.com/trunkwatch/trunkwatch-middleware/logs"
	"github.com/trunkwatch/trunkwatch-middleware/methods"
	"github.com/trunkwatch/trunkwatch-middleware/models"
	"github.com/trunkwatch/trunkwatch-middleware/mqtt"
	"github.com/trunkwatch/trunkwatch-middleware/socket"
	"github.com/trunkwatch/trunkwatch-middleware/store"
	"github.com/trunkwatch/trunkwatch-middleware/transcription"
)

func main() {
	// init logger
	logs.Init("trunkwatch-middleware")

	// init configuration
	configuration.Init()

	// init store and broadcaster
	store.Init()
	socket.InitBroadcaster()

	// wire the background transcription task: the completion point-mutation
	// is the only write that crosses back from the task into the store
	store.SetTranscriber(func(callID string, audio *models.CallAudio) {
		result, err := transcription.ProcessCallAudio(callID, audio)
		if err != nil {
			logs.Log("[ERROR][WHISPER] Transcription failed for call " + callID + ": " + err.Error())
			return
		}
		if store.AttachTranscription(callID, result) {
			socket.Notify(socket.CategoryRecentCalls)
		}
	})

	// start ingesting the recorder feed
	mqtt.Init()

	// create router
	router := createRouter()

	// create cron for the retention sweep
	c := cron.New()
	c.AddFunc("@every 1m", func() {
		store.PruneRecentCalls(time.Now())
	})
	c.Start()

	// run server
	router.Run(configuration.Config.ListenAddress)
}

func createRouter() *gin.Engine {
	// disable log to stdout when running in release mode
	if gin.Mode() == gin.ReleaseMode {
		gin.DefaultWriter = io.Discard
	}

	// init routers
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(
		gin.LoggerWithWriter(gin.DefaultWriter),
		gin.Recovery(),
	)

	// cors configuration only in debug mode GIN_MODE=debug (default)
	if gin.Mode() == gin.DebugMode {
		// gin gonic cors conf
		corsConf := cors.DefaultConfig()
		corsConf.AllowHeaders = []string{"Authorization", "Content-Type", "Accept"}
		corsConf.AllowAllOrigins = true
		router.Use(cors.New(corsConf))
	}

	// define api group
	api := router.Group("/")

	// Test endpoint
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "healthy",
			"status":  "ok",
		})
	})

	// state snapshot and metrics, compressed
	compressed := api.Group("/", gzip.Gzip(gzip.DefaultCompression))
	compressed.GET("/api/state", methods.GetState)
	compressed.GET("/api/metrics", methods.GetMetrics)

	// push channels, never compressed or buffered
	api.GET("/api/sse", socket.SSEHandler)
	api.GET("/api/sse/audio", socket.SSEAudioHandler)
	api.GET("/ws", socket.WsHandler)

	// stored call audio
	api.GET("/audio/:callId", methods.GetAudioByCallID)

	return router
}
