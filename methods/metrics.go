/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package methods

import (
	"net/http"

	"github.com/fatih/structs"
	"github.com/gin-gonic/gin"

	"github.com/trunkwatch/trunkwatch-middleware/models"
	"github.com/trunkwatch/trunkwatch-middleware/socket"
)

// GetMetrics returns the delivery counters of both push channels
func GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, structs.Map(models.StatusOK{
		Code:    http.StatusOK,
		Message: "success",
		Data:    socket.GetConnectionManager().Metrics(),
	}))
}
