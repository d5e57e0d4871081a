/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package methods

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/fatih/structs"
	"github.com/gin-gonic/gin"

	"github.com/trunkwatch/trunkwatch-middleware/logs"
	"github.com/trunkwatch/trunkwatch-middleware/models"
	"github.com/trunkwatch/trunkwatch-middleware/store"
)

// GetAudioByCallID returns the stored audio of a finished call as a binary
// response. WAV is preferred, m4a is served when only that is available.
func GetAudioByCallID(c *gin.Context) {
	callID := strings.TrimSpace(c.Param("callId"))
	if callID == "" {
		c.JSON(http.StatusBadRequest, structs.Map(models.StatusBadRequest{
			Code:    http.StatusBadRequest,
			Message: "callId is required",
			Data:    nil,
		}))
		return
	}

	call, ok := store.GetRecentCall(callID)
	if !ok {
		c.JSON(http.StatusNotFound, structs.Map(models.StatusNotFound{
			Code:    http.StatusNotFound,
			Message: "call not found",
			Data:    nil,
		}))
		return
	}

	encoded, contentType := call.AudioWav, "audio/wav"
	if encoded == "" {
		encoded, contentType = call.AudioM4a, "audio/mp4"
	}
	if encoded == "" {
		c.JSON(http.StatusNotFound, structs.Map(models.StatusNotFound{
			Code:    http.StatusNotFound,
			Message: "call has no audio",
			Data:    nil,
		}))
		return
	}

	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		logs.Log("[ERROR][AUDIO] Failed to decode stored audio for call " + callID + ": " + err.Error())
		c.JSON(http.StatusInternalServerError, structs.Map(models.StatusInternalServerError{
			Code:    http.StatusInternalServerError,
			Message: "failed to decode stored audio",
			Data:    nil,
		}))
		return
	}

	c.Data(http.StatusOK, contentType, audio)
}
