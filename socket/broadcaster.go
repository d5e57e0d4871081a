/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package socket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/trunkwatch/trunkwatch-middleware/configuration"
	"github.com/trunkwatch/trunkwatch-middleware/logs"
	"github.com/trunkwatch/trunkwatch-middleware/models"
	"github.com/trunkwatch/trunkwatch-middleware/store"
)

// Change categories accumulated between broadcast ticks
const (
	CategorySystems     = "systems"
	CategoryRates       = "rates"
	CategoryCalls       = "calls"
	CategoryRecorders   = "recorders"
	CategoryRecentCalls = "recentCalls"
)

var (
	pendingCategories = make(map[string]struct{})
	pendingMutex      sync.Mutex
	debounced         func(func())

	// the debouncer runs each tick on its own timer goroutine, a slow tick
	// must not overlap the next one while both mutate subscriber sentinels
	tickMutex sync.Mutex
)

// pulsePayload is the degraded no-diff signal, kept as a fixed literal so
// clients can fall back to refetching the full state.
var pulsePayload = []byte("update")

// InitBroadcaster prepares the debounced broadcast cycle
func InitBroadcaster() {
	debounced = debounce.New(configuration.Config.BroadcastDebounce)
}

// Notify records that a state category changed and schedules a broadcast
// tick. Bursts of notifications within the debounce window coalesce into a
// single tick carrying the union of changed categories.
func Notify(category string) {
	pendingMutex.Lock()
	pendingCategories[category] = struct{}{}
	pendingMutex.Unlock()

	if debounced != nil {
		debounced(broadcastTick)
	}
}

func broadcastTick() {
	tickMutex.Lock()
	defer tickMutex.Unlock()

	pendingMutex.Lock()
	categories := pendingCategories
	pendingCategories = make(map[string]struct{})
	pendingMutex.Unlock()

	if len(categories) == 0 {
		return
	}

	subscribers := connManager.stateSubscriberList()
	if len(subscribers) == 0 {
		return
	}

	if configuration.Config.SSEPulseMode {
		for _, subscriber := range subscribers {
			go connManager.deliverState(subscriber, pulsePayload)
		}
		return
	}

	snapshot := store.Snapshot()
	for _, subscriber := range subscribers {
		diff := subscriber.lastState.diff(snapshot, categories)
		if len(diff) == 0 {
			continue
		}

		payload, err := json.Marshal(diff)
		if err != nil {
			logs.Log(fmt.Sprintf("[ERROR][BROADCAST] Failed to marshal diff for %s: %v", subscriber.ID, err))
			continue
		}

		go connManager.deliverState(subscriber, payload)
	}
}

type recorderSentinel struct {
	stateType       string
	lastStateChange time.Time
}

type recentCallSentinel struct {
	finishedAt time.Time
	elapsed    float64
	emergency  int
}

// sentinels is the cheap per-subscriber memory of what was last sent. The
// systems/rates sentinels are length only: a same-length content change is a
// tolerated miss, trading recall for per-tick cost.
type sentinels struct {
	systemCount int
	rateCount   int
	callsHash   string
	recorders   []recorderSentinel
	recentCalls map[string]recentCallSentinel
	historyKeys map[string]struct{}
	primed      bool
}

func newSentinels() *sentinels {
	return &sentinels{
		recentCalls: make(map[string]recentCallSentinel),
		historyKeys: make(map[string]struct{}),
	}
}

// diff compares the snapshot against what this subscriber last saw and
// returns only the top level fields that changed, updating the sentinels.
func (s *sentinels) diff(snapshot *store.StateSnapshot, categories map[string]struct{}) map[string]interface{} {
	diff := make(map[string]interface{})
	_, systemsTouched := categories[CategorySystems]
	_, ratesTouched := categories[CategoryRates]
	_, callsTouched := categories[CategoryCalls]
	_, recordersTouched := categories[CategoryRecorders]
	_, recentTouched := categories[CategoryRecentCalls]

	if !s.primed {
		systemsTouched, ratesTouched, callsTouched, recordersTouched, recentTouched = true, true, true, true, true
		s.primed = true
	}

	if systemsTouched && len(snapshot.Systems) != s.systemCount {
		s.systemCount = len(snapshot.Systems)
		diff["systems"] = snapshot.Systems
	}

	if ratesTouched && len(snapshot.Rates) != s.rateCount {
		s.rateCount = len(snapshot.Rates)
		diff["rates"] = snapshot.Rates
	}

	if callsTouched {
		if hash := callsHash(snapshot.Calls); hash != s.callsHash {
			s.callsHash = hash
			diff["calls"] = snapshot.Calls
		}
	}

	if recordersTouched && recordersChanged(s.recorders, snapshot.Recorders) {
		s.recorders = recorderSentinels(snapshot.Recorders)
		diff["recorders"] = snapshot.Recorders
	}

	if recentTouched && recentCallsChanged(s.recentCalls, snapshot.RecentCalls) {
		s.recentCalls = recentCallSentinels(snapshot.RecentCalls)
		diff["recentCalls"] = snapshot.RecentCalls
	}

	// history growth under an existing system is covered by the rates field,
	// only new or removed systems re-send the history map
	if ratesTouched && historyKeysChanged(s.historyKeys, snapshot.RateHistory) {
		s.historyKeys = make(map[string]struct{}, len(snapshot.RateHistory))
		for key := range snapshot.RateHistory {
			s.historyKeys[key] = struct{}{}
		}
		diff["rateHistory"] = snapshot.RateHistory
	}

	return diff
}

func callsHash(calls []models.ActiveCall) string {
	var builder strings.Builder
	for _, call := range calls {
		builder.WriteString(call.ID)
		builder.WriteString(strconv.FormatInt(call.StopTime, 10))
	}
	return builder.String()
}

func recorderSentinels(recorders []models.Recorder) []recorderSentinel {
	list := make([]recorderSentinel, 0, len(recorders))
	for _, recorder := range recorders {
		list = append(list, recorderSentinel{
			stateType:       recorder.RecStateType,
			lastStateChange: recorder.LastStateChange,
		})
	}
	return list
}

func recordersChanged(last []recorderSentinel, recorders []models.Recorder) bool {
	if len(last) != len(recorders) {
		return true
	}
	for i, recorder := range recorders {
		if last[i].stateType != recorder.RecStateType || !last[i].lastStateChange.Equal(recorder.LastStateChange) {
			return true
		}
	}
	return false
}

func recentCallSentinels(calls []models.RecentCall) map[string]recentCallSentinel {
	sentinelMap := make(map[string]recentCallSentinel, len(calls))
	for _, call := range calls {
		sentinel := recentCallSentinel{finishedAt: call.FinishedAt}
		if call.Metadata != nil {
			sentinel.elapsed = call.Metadata.Elapsed
			sentinel.emergency = call.Metadata.Emergency
		}
		sentinelMap[call.ID] = sentinel
	}
	return sentinelMap
}

func recentCallsChanged(last map[string]recentCallSentinel, calls []models.RecentCall) bool {
	if len(last) != len(calls) {
		return true
	}
	for _, call := range calls {
		sentinel, ok := last[call.ID]
		if !ok {
			return true
		}
		elapsed, emergency := 0.0, 0
		if call.Metadata != nil {
			elapsed = call.Metadata.Elapsed
			emergency = call.Metadata.Emergency
		}
		if !sentinel.finishedAt.Equal(call.FinishedAt) || sentinel.elapsed != elapsed || sentinel.emergency != emergency {
			return true
		}
	}
	return false
}

func historyKeysChanged(last map[string]struct{}, history map[string][]models.RateSample) bool {
	if len(last) != len(history) {
		return true
	}
	for key := range history {
		if _, ok := last[key]; !ok {
			return true
		}
	}
	return false
}
