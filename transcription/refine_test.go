/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package transcription

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trunkwatch/trunkwatch-middleware/models"
)

func segmentAt(start, end float64, text string, words ...models.Word) models.TranscriptionSegment {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return models.TranscriptionSegment{
		Start:     start,
		End:       end,
		StartTime: base.Add(time.Duration(start * float64(time.Second))),
		EndTime:   base.Add(time.Duration(end * float64(time.Second))),
		Text:      text,
		Words:     words,
		WordCount: len(words),
	}
}

func TestLongSegmentWithFewWordsFlaggedAsSilence(t *testing.T) {
	segment := segmentAt(0, 12, "static", models.Word{Word: "static", Probability: 0.9, Start: 0})
	segment.Metrics.NoSpeechProb = 0.2

	out := cleanAndMergeSegments([]models.TranscriptionSegment{segment})

	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Metrics.ErrorCount)
	assert.Equal(t, 0.75, out[0].Metrics.NoSpeechProb)
}

func TestSilenceFloorNeverLowersNoSpeechProb(t *testing.T) {
	segment := segmentAt(0, 12, "static", models.Word{Word: "static", Probability: 0.9})
	segment.Metrics.NoSpeechProb = 0.9

	out := cleanAndMergeSegments([]models.TranscriptionSegment{segment})
	assert.Equal(t, 0.9, out[0].Metrics.NoSpeechProb)
}

func TestWordCleanupMarksLowConfidence(t *testing.T) {
	segment := segmentAt(0, 2, "unit four",
		models.Word{Word: " unit ", Probability: 0.3, Start: 0},
		models.Word{Word: "[four]", Probability: 0.8, Start: 1},
	)

	out := cleanAndMergeSegments([]models.TranscriptionSegment{segment})

	require.Len(t, out[0].Words, 2)
	assert.Equal(t, "unit", out[0].Words[0].Word)
	assert.True(t, out[0].Words[0].LowConfidence)
	assert.Equal(t, 0.3, out[0].Words[0].Probability)
	assert.Equal(t, "four", out[0].Words[1].Word)
	assert.False(t, out[0].Words[1].LowConfidence)
}

func TestRepeatedClauseCollapses(t *testing.T) {
	segment := segmentAt(0, 3, "Unit 21 copy. Unit 21 copy.",
		models.Word{Word: "Unit", Probability: 0.9, Start: 0.0},
		models.Word{Word: "21", Probability: 0.9, Start: 0.4},
		models.Word{Word: "copy", Probability: 0.9, Start: 0.8},
		models.Word{Word: "Unit", Probability: 0.9, Start: 0.2},
		models.Word{Word: "21", Probability: 0.9, Start: 0.6},
		models.Word{Word: "copy", Probability: 0.9, Start: 1.1},
	)

	out := cleanAndMergeSegments([]models.TranscriptionSegment{segment})

	require.Len(t, out, 1)
	assert.Equal(t, "Unit 21 copy", out[0].Text)
	assert.GreaterOrEqual(t, out[0].Metrics.ErrorCount, 1)
	// repeated words within the dedup window are dropped, first kept
	assert.Len(t, out[0].Words, 3)
	assert.Less(t, out[0].Metrics.CompressionRatio, 1.0)
}

func TestCleanTextIsNoOpOnUniquePhrases(t *testing.T) {
	segment := segmentAt(0, 3, "Engine five responding to Main Street",
		models.Word{Word: "Engine", Probability: 0.9, Start: 0},
	)

	out := cleanAndMergeSegments([]models.TranscriptionSegment{segment})
	assert.Equal(t, "Engine five responding to Main Street", out[0].Text)
	assert.Equal(t, 0, out[0].Metrics.ErrorCount)
}

func TestSilentSegmentInheritsNearbyUnit(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	attributed := segmentAt(0, 4, "engine five on scene")
	attributed.Sources = []models.SourceRef{{ID: 42, Time: base.Add(2 * time.Second), Duration: 4}}

	silent := segmentAt(6, 8, "copy that dispatch")

	out := cleanAndMergeSegments([]models.TranscriptionSegment{attributed, silent})

	require.Len(t, out, 2)
	require.Len(t, out[1].Sources, 1)
	assert.Equal(t, int64(42), out[1].Sources[0].ID)
	assert.Equal(t, 2.0, out[1].Sources[0].Duration)
	require.NotNil(t, out[1].Metrics.PrimaryUnit)
	assert.Equal(t, int64(42), *out[1].Metrics.PrimaryUnit)
}

func TestSilentSegmentBeyondGapStaysUnattributed(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	attributed := segmentAt(0, 2, "engine five on scene")
	attributed.Sources = []models.SourceRef{{ID: 42, Time: base, Duration: 2}}

	silent := segmentAt(20, 22, "copy that dispatch")

	out := cleanAndMergeSegments([]models.TranscriptionSegment{attributed, silent})
	assert.Empty(t, out[1].Sources)
}

func TestAdjacentSimilarSegmentsMerge(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := segmentAt(0, 2, "engine five responding",
		models.Word{Word: "engine", Probability: 0.9, Start: 0})
	first.Sources = []models.SourceRef{{ID: 1, Time: base.Add(time.Second), Duration: 2}}
	first.Metrics.ErrorCount = 1
	first.Metrics.AvgLogprob = -0.2
	first.Metrics.NoSpeechProb = 0.1

	second := segmentAt(3, 5, "engine five responding now",
		models.Word{Word: "now", Probability: 0.9, Start: 4})
	second.Sources = []models.SourceRef{
		{ID: 2, Time: base, Duration: 1},
		{ID: 1, Time: base.Add(time.Second), Duration: 2},
	}
	second.Metrics.ErrorCount = 2
	second.Metrics.AvgLogprob = -0.4
	second.Metrics.NoSpeechProb = 0.3

	out := cleanAndMergeSegments([]models.TranscriptionSegment{first, second})

	require.Len(t, out, 1)
	merged := out[0]
	assert.Equal(t, 5.0, merged.End)
	assert.Equal(t, 3, merged.Metrics.ErrorCount)
	assert.InDelta(t, -0.3, merged.Metrics.AvgLogprob, 1e-9)
	assert.Equal(t, 0.3, merged.Metrics.NoSpeechProb)

	// sources unioned, deduplicated by unit and re-sorted by time
	require.Len(t, merged.Sources, 2)
	assert.Equal(t, int64(2), merged.Sources[0].ID)
	assert.Equal(t, int64(1), merged.Sources[1].ID)
	assert.Len(t, merged.Words, 2)
}

func TestDistantSegmentsStaySeparate(t *testing.T) {
	first := segmentAt(0, 2, "engine five responding",
		models.Word{Word: "engine", Probability: 0.9})
	second := segmentAt(7, 9, "engine five responding now",
		models.Word{Word: "now", Probability: 0.9})

	out := cleanAndMergeSegments([]models.TranscriptionSegment{first, second})
	assert.Len(t, out, 2)
}

func TestDissimilarSegmentsStaySeparate(t *testing.T) {
	first := segmentAt(0, 2, "engine five responding",
		models.Word{Word: "engine", Probability: 0.9})
	second := segmentAt(3, 5, "ladder truck returning to quarters",
		models.Word{Word: "ladder", Probability: 0.9})

	out := cleanAndMergeSegments([]models.TranscriptionSegment{first, second})
	assert.Len(t, out, 2)
}

func TestCleanAndMergeIsIdempotent(t *testing.T) {
	first := segmentAt(0, 2, "engine five responding",
		models.Word{Word: "engine", Probability: 0.9, Start: 0})
	second := segmentAt(3, 5, "engine five responding now",
		models.Word{Word: "now", Probability: 0.9, Start: 4})
	third := segmentAt(15, 18, "ladder truck returning to quarters",
		models.Word{Word: "ladder", Probability: 0.9, Start: 15})

	once := cleanAndMergeSegments([]models.TranscriptionSegment{first, second, third})
	twice := cleanAndMergeSegments(once)

	assert.Equal(t, once, twice)
}

func TestTextSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, textSimilarity("unit four copy", "Unit Four Copy"))
	assert.Equal(t, 0.0, textSimilarity("alpha bravo", "charlie delta"))
	assert.InDelta(t, 0.75, textSimilarity("engine five responding", "engine five responding now"), 1e-9)
}

func TestCleanTextNormalization(t *testing.T) {
	assert.Equal(t, "Engine 5 responding", cleanText("engine5   responding"))
	assert.Equal(t, "Copy that.", cleanText("copy that. copy that."))
	assert.Equal(t, "On scene. Two patients", cleanText("on scene.  two patients"))
}

func TestCleanTextCapitalizesMultibyteLead(t *testing.T) {
	out := cleanText("época de lluvia. copy that")
	assert.Equal(t, "Época de lluvia. Copy that", out)
	assert.True(t, utf8.ValidString(out))
}
