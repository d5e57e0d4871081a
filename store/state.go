/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package store

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/trunkwatch/trunkwatch-middleware/configuration"
	"github.com/trunkwatch/trunkwatch-middleware/logs"
	"github.com/trunkwatch/trunkwatch-middleware/models"
)

// StateSnapshot is a read-only copy of the full in-memory state, shaped the
// way the state endpoint and the broadcaster consume it.
type StateSnapshot struct {
	Systems     []models.System                `json:"systems"`
	Rates       []models.DecodeRate            `json:"rates"`
	RateHistory map[string][]models.RateSample `json:"rateHistory"`
	Calls       []models.ActiveCall            `json:"calls"`
	Recorders   []models.Recorder              `json:"recorders"`
	RecentCalls []models.RecentCall            `json:"recentCalls"`
}

var (
	systems     []models.System
	rates       []models.DecodeRate
	rateHistory map[string][]models.RateSample
	activeCalls map[string]models.ActiveCall
	recorders   map[string]models.Recorder
	recentCalls map[string]*models.RecentCall
	mutex       sync.RWMutex
)

// timeNow is swapped in tests
var timeNow = time.Now

// dispatchTranscription is set from main with the transcription entrypoint,
// keeping the store free of a dependency on the engine
var dispatchTranscription = func(callID string, audio *models.CallAudio) {}

var ErrMissingMetadata = errors.New("audio message without call metadata")

// Init resets all state collections
func Init() {
	mutex.Lock()
	defer mutex.Unlock()

	systems = nil
	rates = nil
	rateHistory = make(map[string][]models.RateSample)
	activeCalls = make(map[string]models.ActiveCall)
	recorders = make(map[string]models.Recorder)
	recentCalls = make(map[string]*models.RecentCall)
}

// SetTranscriber registers the background transcription dispatch function
func SetTranscriber(fn func(callID string, audio *models.CallAudio)) {
	dispatchTranscription = fn
}

// UpdateSystems replaces the systems collection wholesale
func UpdateSystems(list []models.System) {
	mutex.Lock()
	defer mutex.Unlock()

	systems = append([]models.System(nil), list...)
}

// UpdateRates replaces the rates collection and appends one history sample
// per system, keeping each history capped at MaxRateHistory (FIFO).
func UpdateRates(list []models.DecodeRate) {
	mutex.Lock()
	defer mutex.Unlock()

	rates = append([]models.DecodeRate(nil), list...)

	now := timeNow()
	for _, rate := range list {
		if rate.SysName == "" {
			logs.Log("[WARNING][STORE] Dropping rate sample without sys_name")
			continue
		}

		history := append(rateHistory[rate.SysName], models.RateSample{
			Time:    now,
			Rate:    rate.DecodeRate,
			Control: rate.ControlChannel,
		})

		// maintain fixed size, oldest first out
		if max := configuration.Config.MaxRateHistory; len(history) > max {
			history = history[len(history)-max:]
		}

		rateHistory[rate.SysName] = history
	}
}

// UpdateActiveCalls mirrors the upstream snapshot: every call in the batch is
// upserted and any stored call missing from the batch is removed. A nil batch
// means no calls reported and clears the collection.
func UpdateActiveCalls(list []models.ActiveCall) {
	mutex.Lock()
	defer mutex.Unlock()

	if list == nil {
		activeCalls = make(map[string]models.ActiveCall)
		return
	}

	inBatch := make(map[string]struct{}, len(list))
	for _, call := range list {
		if call.ID == "" {
			logs.Log("[WARNING][STORE] Dropping active call without id")
			continue
		}
		inBatch[call.ID] = struct{}{}
		activeCalls[call.ID] = call
	}

	for id := range activeCalls {
		if _, ok := inBatch[id]; !ok {
			delete(activeCalls, id)
		}
	}
}

// UpdateRecorders upserts each recorder, preserving last_state_change when
// the state type did not change.
func UpdateRecorders(list []*models.Recorder) {
	mutex.Lock()
	defer mutex.Unlock()

	now := timeNow()
	for _, recorder := range list {
		if recorder == nil || recorder.ID == "" {
			logs.Log("[WARNING][STORE] Dropping recorder update without id")
			continue
		}

		var previous *models.Recorder
		if existing, ok := recorders[recorder.ID]; ok {
			previous = &existing
		}
		recorders[recorder.ID] = mergeRecorder(previous, *recorder, now)
	}
}

// UpdateCallAudio stores a RecentCall for the finished call right away, so it
// is visible before transcription completes, and dispatches the refinement
// engine in the background when WAV audio is available.
func UpdateCallAudio(audio *models.CallAudio) (string, error) {
	if audio == nil || audio.Metadata == nil {
		return "", ErrMissingMetadata
	}

	callID := fmt.Sprintf("%d-%d", audio.Metadata.Talkgroup, audio.Metadata.StartTime)

	audioSize := 0
	if audio.AudioWavBase64 != "" {
		audioSize = base64.StdEncoding.DecodedLen(len(audio.AudioWavBase64))
	}

	mutex.Lock()
	recentCalls[callID] = &models.RecentCall{
		ID:         callID,
		Metadata:   audio.Metadata,
		AudioWav:   audio.AudioWavBase64,
		AudioM4a:   audio.AudioM4aBase64,
		HasAudio:   audio.AudioWavBase64 != "" || audio.AudioM4aBase64 != "",
		AudioSize:  audioSize,
		FinishedAt: timeNow(),
	}
	pruneRecentCallsLocked(timeNow())
	mutex.Unlock()

	if audio.AudioWavBase64 != "" {
		go dispatchTranscription(callID, audio)
	}

	return callID, nil
}

// AttachTranscription sets the transcription on a retained call. The call may
// already have been evicted by retention, in which case the result is simply
// discarded.
func AttachTranscription(callID string, transcription *models.Transcription) bool {
	mutex.Lock()
	defer mutex.Unlock()

	call, ok := recentCalls[callID]
	if !ok {
		logs.Log("[INFO][STORE] Discarding transcription for evicted call " + callID)
		return false
	}

	call.Transcription = transcription
	pruneRecentCallsLocked(timeNow())
	return true
}

// PruneRecentCalls applies the retention rules: at most MaxRecentCalls
// entries, newest finishedAt first, and nothing older than the cleanup
// interval.
func PruneRecentCalls(now time.Time) {
	mutex.Lock()
	defer mutex.Unlock()
	pruneRecentCallsLocked(now)
}

func pruneRecentCallsLocked(now time.Time) {
	cutoff := now.Add(-configuration.Config.CallCleanupInterval)
	for id, call := range recentCalls {
		if call.FinishedAt.Before(cutoff) {
			delete(recentCalls, id)
		}
	}

	max := configuration.Config.MaxRecentCalls
	if len(recentCalls) <= max {
		return
	}

	ordered := make([]*models.RecentCall, 0, len(recentCalls))
	for _, call := range recentCalls {
		ordered = append(ordered, call)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].FinishedAt.After(ordered[j].FinishedAt)
	})
	for _, call := range ordered[max:] {
		delete(recentCalls, call.ID)
	}
}

// GetRecentCall returns a retained call by its composite id
func GetRecentCall(id string) (*models.RecentCall, bool) {
	mutex.RLock()
	defer mutex.RUnlock()
	call, ok := recentCalls[id]
	return call, ok
}

// Snapshot returns a copy of the full state. Recorders are ordered by id so
// the broadcaster can compare them positionally; recent calls newest first.
func Snapshot() *StateSnapshot {
	mutex.RLock()
	defer mutex.RUnlock()

	snapshot := &StateSnapshot{
		Systems:     append([]models.System(nil), systems...),
		Rates:       append([]models.DecodeRate(nil), rates...),
		RateHistory: make(map[string][]models.RateSample, len(rateHistory)),
		Calls:       make([]models.ActiveCall, 0, len(activeCalls)),
		Recorders:   make([]models.Recorder, 0, len(recorders)),
		RecentCalls: make([]models.RecentCall, 0, len(recentCalls)),
	}

	for name, history := range rateHistory {
		snapshot.RateHistory[name] = append([]models.RateSample(nil), history...)
	}

	for _, call := range activeCalls {
		snapshot.Calls = append(snapshot.Calls, call)
	}
	sort.Slice(snapshot.Calls, func(i, j int) bool {
		return snapshot.Calls[i].ID < snapshot.Calls[j].ID
	})

	for _, recorder := range recorders {
		snapshot.Recorders = append(snapshot.Recorders, recorder)
	}
	sort.Slice(snapshot.Recorders, func(i, j int) bool {
		return snapshot.Recorders[i].ID < snapshot.Recorders[j].ID
	})

	for _, call := range recentCalls {
		snapshot.RecentCalls = append(snapshot.RecentCalls, *call)
	}
	sort.Slice(snapshot.RecentCalls, func(i, j int) bool {
		return snapshot.RecentCalls[i].FinishedAt.After(snapshot.RecentCalls[j].FinishedAt)
	})

	return snapshot
}
