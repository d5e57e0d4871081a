/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package logs

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

var Logs *zap.SugaredLogger

func Init(name string) {
	// init zap logger
	var logger *zap.Logger
	if strings.ToLower(os.Getenv("LOG_LEVEL")) == "debug" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}

	// unify stdlib log output with zap
	zap.RedirectStdLog(logger)

	// assign named sugared logger to Logs var
	Logs = logger.Sugar().Named(name)
}

func Log(message string) {
	Logs.Info(message)
}
