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
	"github.com/trunkwatch/trunkwatch-middleware/store"
)

// GetState returns the full state snapshot, used by clients to seed their
// view before following the update stream.
func GetState(c *gin.Context) {
	c.JSON(http.StatusOK, structs.Map(models.StatusOK{
		Code:    http.StatusOK,
		Message: "success",
		Data:    store.Snapshot(),
	}))
}
