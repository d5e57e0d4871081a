/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package transcription

import (
	"math"
	"sort"
	"time"

	"github.com/trunkwatch/trunkwatch-middleware/models"
)

// posMatchTolerance pairs a source event with its frequency sample: the two
// lists share the same in-call position axis but are sampled independently.
const posMatchTolerance = 0.1

// buildSegments annotates raw Whisper segments with the call metadata:
// which radio units were keyed up during each segment, the per-segment
// decode error counters, and the primary unit.
func buildSegments(raw []whisperSegment, md *models.CallMetadata) []models.TranscriptionSegment {
	if md == nil {
		md = &models.CallMetadata{}
	}

	callStart := time.Unix(md.StartTime, 0).UTC()
	segments := make([]models.TranscriptionSegment, 0, len(raw))

	for _, ws := range raw {
		segment := models.TranscriptionSegment{
			Start:     ws.Start,
			End:       ws.End,
			StartTime: callStart.Add(secondsToDuration(ws.Start)),
			EndTime:   callStart.Add(secondsToDuration(ws.End)),
			Text:      ws.Text,
			Words:     make([]models.Word, 0, len(ws.Words)),
			WordCount: len(ws.Words),
			Metrics: models.QualityMetrics{
				CompressionRatio: ws.CompressionRatio,
				AvgLogprob:       ws.AvgLogprob,
				NoSpeechProb:     ws.NoSpeechProb,
			},
		}

		for _, word := range ws.Words {
			segment.Words = append(segment.Words, models.Word{
				Word:        word.Word,
				Probability: word.Probability,
				Start:       word.Start,
				End:         word.End,
			})
		}

		segment.Sources = activeSources(ws.Start, ws.End, md)
		segment.Metrics.PrimaryUnit = primaryUnit(segment.Sources)

		for _, freq := range md.FreqList {
			if freq.Pos >= ws.Start && freq.Pos <= ws.End {
				segment.Metrics.ErrorCount += freq.ErrorCount
				segment.Metrics.SpikeCount += freq.SpikeCount
			}
		}

		segments = append(segments, segment)
	}

	return segments
}

// activeSources returns the units transmitting during [start, end]. A source
// is active from its own position until the position of the next source in
// the ordered list, or until call end for the last one. Source id -1 marks an
// unknown unit and is excluded.
func activeSources(start, end float64, md *models.CallMetadata) []models.SourceRef {
	callEnd := md.CallLength
	if callEnd == 0 && len(md.SrcList) > 0 {
		callEnd = end
	}

	sources := make([]models.SourceRef, 0, len(md.SrcList))
	for i, src := range md.SrcList {
		if src.Src == -1 {
			continue
		}

		windowEnd := callEnd
		if i+1 < len(md.SrcList) {
			windowEnd = md.SrcList[i+1].Pos
		}

		if src.Pos <= end && windowEnd >= start {
			sources = append(sources, models.SourceRef{
				ID:        src.Src,
				Time:      time.Unix(src.Time, 0).UTC(),
				Emergency: src.Emergency == 1,
				Duration:  sourceDuration(src.Pos, md.FreqList),
			})
		}
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Time.Before(sources[j].Time)
	})

	return sources
}

// sourceDuration looks up the frequency sample recorded closest to the
// source position and returns its length.
func sourceDuration(pos float64, freqList []models.FreqEntry) float64 {
	for _, freq := range freqList {
		if math.Abs(freq.Pos-pos) < posMatchTolerance {
			return freq.Len
		}
	}
	return 0
}

// primaryUnit picks the attributed source with the longest matched
// transmission as the unit most likely speaking.
func primaryUnit(sources []models.SourceRef) *int64 {
	if len(sources) == 0 {
		return nil
	}

	best := sources[0]
	for _, source := range sources[1:] {
		if source.Duration > best.Duration {
			best = source
		}
	}

	id := best.ID
	return &id
}

func buildCallInfo(md *models.CallMetadata, duration float64) models.CallInfo {
	if md == nil {
		md = &models.CallMetadata{}
	}

	return models.CallInfo{
		Talkgroup: models.TalkgroupInfo{
			ID:          md.Talkgroup,
			Tag:         md.TalkgroupTag,
			Description: md.TalkgroupDescription,
			Group:       md.TalkgroupGroup,
		},
		Timing: models.TimingInfo{
			StartTime:  time.Unix(md.StartTime, 0).UTC(),
			Duration:   duration,
			CallLength: md.CallLength,
		},
		Emergency: md.Emergency == 1,
		Priority:  md.Priority == 1,
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
