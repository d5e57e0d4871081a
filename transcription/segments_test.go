/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package transcription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trunkwatch/trunkwatch-middleware/models"
)

func testMetadata() *models.CallMetadata {
	return &models.CallMetadata{
		Talkgroup:    3001,
		TalkgroupTag: "FD Dispatch",
		StartTime:    1717243200,
		CallLength:   10,
		SrcList: []models.SrcEntry{
			{Src: 100, Time: 1717243200, Pos: 0},
			{Src: 200, Time: 1717243205, Pos: 5},
			{Src: -1, Time: 1717243208, Pos: 8},
		},
		FreqList: []models.FreqEntry{
			{Pos: 0, Len: 4.5, ErrorCount: 2, SpikeCount: 1},
			{Pos: 5.05, Len: 2.0},
		},
	}
}

func TestBuildSegmentsAttributesSources(t *testing.T) {
	raw := []whisperSegment{
		{Start: 0, End: 4, Text: "engine five responding", Words: []whisperWord{
			{Word: "engine", Probability: 0.9, Start: 0, End: 0.5},
		}},
		{Start: 4.5, End: 9, Text: "copy engine five", Words: []whisperWord{
			{Word: "copy", Probability: 0.8, Start: 4.5, End: 5.0},
		}},
	}

	segments := buildSegments(raw, testMetadata())
	require.Len(t, segments, 2)

	// first segment overlaps only unit 100's window [0, 5)
	require.Len(t, segments[0].Sources, 1)
	assert.Equal(t, int64(100), segments[0].Sources[0].ID)
	assert.Equal(t, 4.5, segments[0].Sources[0].Duration)

	// second segment overlaps both windows, unknown unit -1 excluded
	require.Len(t, segments[1].Sources, 2)
	assert.Equal(t, int64(100), segments[1].Sources[0].ID)
	assert.Equal(t, int64(200), segments[1].Sources[1].ID)

	// primary unit is the source with the longest matched transmission
	require.NotNil(t, segments[1].Metrics.PrimaryUnit)
	assert.Equal(t, int64(100), *segments[1].Metrics.PrimaryUnit)
}

func TestBuildSegmentsSumsQualityCounters(t *testing.T) {
	raw := []whisperSegment{
		{Start: 0, End: 4, Text: "engine five responding", AvgLogprob: -0.3, NoSpeechProb: 0.1, CompressionRatio: 1.2},
	}

	segments := buildSegments(raw, testMetadata())
	require.Len(t, segments, 1)
	assert.Equal(t, 2, segments[0].Metrics.ErrorCount)
	assert.Equal(t, 1, segments[0].Metrics.SpikeCount)
	assert.Equal(t, -0.3, segments[0].Metrics.AvgLogprob)
	assert.Equal(t, 1.2, segments[0].Metrics.CompressionRatio)
}

func TestBuildSegmentsTimestamps(t *testing.T) {
	raw := []whisperSegment{{Start: 2, End: 4, Text: "copy"}}

	segments := buildSegments(raw, testMetadata())
	callStart := time.Unix(1717243200, 0).UTC()
	assert.Equal(t, callStart.Add(2*time.Second), segments[0].StartTime)
	assert.Equal(t, callStart.Add(4*time.Second), segments[0].EndTime)
}

func TestBuildSegmentsWithoutMetadata(t *testing.T) {
	raw := []whisperSegment{{Start: 0, End: 2, Text: "copy"}}

	segments := buildSegments(raw, nil)
	require.Len(t, segments, 1)
	assert.Empty(t, segments[0].Sources)
	assert.Nil(t, segments[0].Metrics.PrimaryUnit)
}

func TestBuildCallInfo(t *testing.T) {
	md := testMetadata()
	md.Emergency = 1

	info := buildCallInfo(md, 9.4)
	assert.Equal(t, int64(3001), info.Talkgroup.ID)
	assert.Equal(t, "FD Dispatch", info.Talkgroup.Tag)
	assert.Equal(t, 9.4, info.Timing.Duration)
	assert.Equal(t, 10.0, info.Timing.CallLength)
	assert.True(t, info.Emergency)
	assert.False(t, info.Priority)
}
