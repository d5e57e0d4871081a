/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package store

import (
	"time"

	"github.com/trunkwatch/trunkwatch-middleware/models"
)

// mergeRecorder applies an incoming recorder update on top of the stored one.
// The invariant: last_state_change moves only when rec_state_type actually
// changes; a repeated state keeps the original timestamp. New recorders start
// their state clock at now.
func mergeRecorder(old *models.Recorder, incoming models.Recorder, now time.Time) models.Recorder {
	if old == nil {
		incoming.LastStateChange = now
		return incoming
	}

	if old.RecStateType == incoming.RecStateType {
		incoming.LastStateChange = old.LastStateChange
	} else {
		incoming.LastStateChange = now
	}

	return incoming
}
