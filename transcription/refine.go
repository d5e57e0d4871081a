/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package transcription

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/trunkwatch/trunkwatch-middleware/models"
)

// Heuristic thresholds, carried from observed recorder behavior. Tune with
// care: they interact with each other and with Whisper's own segmentation.
const (
	silenceMinDuration     = 10.0 // seconds
	silenceMaxWords        = 5
	silenceNoSpeechFloor   = 0.75
	lowConfidenceThreshold = 0.5
	silentSegmentMaxGap    = 5.0 // seconds
	mergeMaxGap            = 3.0 // seconds
	mergeMinSimilarity     = 0.5
	wordDedupTolerance     = 0.5 // seconds
)

type unitActivity struct {
	totalDuration float64
	lastTimestamp time.Time
}

// cleanAndMergeSegments turns attributed raw segments into the final
// transcript: it flags likely silence, annotates low confidence words,
// attributes silent segments to recently active units, collapses repeated
// phrases, and merges adjacent segments that carry near identical text.
// Re-running it on its own output is a no-op.
func cleanAndMergeSegments(segments []models.TranscriptionSegment) []models.TranscriptionSegment {
	// track unit activity across the conversation for silent segment inference
	conversationUnits := make(map[int64]*unitActivity)
	for _, segment := range segments {
		for _, source := range segment.Sources {
			unit, ok := conversationUnits[source.ID]
			if !ok {
				unit = &unitActivity{}
				conversationUnits[source.ID] = unit
			}
			unit.totalDuration += source.Duration
			unit.lastTimestamp = source.Time
		}
	}

	// first pass: clean up text and associate units
	cleaned := make([]models.TranscriptionSegment, 0, len(segments))
	for _, segment := range segments {
		// a long span with almost no words is likely squelch noise
		if segment.End-segment.Start > silenceMinDuration && len(segment.Words) < silenceMaxWords {
			segment.Metrics.ErrorCount++
			segment.Metrics.NoSpeechProb = math.Max(segment.Metrics.NoSpeechProb, silenceNoSpeechFloor)
		}

		for i := range segment.Words {
			word := &segment.Words[i]
			word.Word = strings.NewReplacer("[", "", "]", "").Replace(strings.TrimSpace(word.Word))
			if word.Probability < lowConfidenceThreshold {
				word.LowConfidence = true
			}
		}

		if len(segment.Sources) == 0 {
			inferSilentSegmentUnit(&segment, conversationUnits)
		}

		if len(segment.Words) > 0 {
			segment = collapseRepeatedPhrases(segment)
		}

		cleaned = append(cleaned, segment)
	}

	// second pass: merge similar segments that are close in time
	merged := make([]models.TranscriptionSegment, 0, len(cleaned))
	for _, segment := range cleaned {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			gap := math.Abs(segment.Start - last.End)
			if gap < mergeMaxGap && textSimilarity(last.Text, segment.Text) > mergeMinSimilarity {
				mergeInto(last, segment)
				continue
			}
		}
		merged = append(merged, segment)
	}

	return merged
}

// inferSilentSegmentUnit attributes a source-less segment to the unit whose
// last transmission ended closest to the segment start, within the gap
// threshold. Best effort continuity, not ground truth.
func inferSilentSegmentUnit(segment *models.TranscriptionSegment, units map[int64]*unitActivity) {
	var bestMatch int64
	found := false
	shortestGap := math.Inf(1)

	for unitID, unit := range units {
		if unit.lastTimestamp.IsZero() {
			continue
		}
		gap := math.Abs(segment.StartTime.Sub(unit.lastTimestamp).Seconds())
		if gap < silentSegmentMaxGap && gap < shortestGap {
			shortestGap = gap
			bestMatch = unitID
			found = true
		}
	}

	if !found {
		return
	}

	segment.Sources = []models.SourceRef{{
		ID:        bestMatch,
		Time:      segment.StartTime,
		Emergency: false,
		Duration:  segment.End - segment.Start,
	}}
	unit := bestMatch
	segment.Metrics.PrimaryUnit = &unit
}

var phraseSplitRe = regexp.MustCompile(`[,.!?]\s+`)

// collapseRepeatedPhrases drops echoed clauses. Repetition of whole phrases
// inside one segment is a decode artifact, so it also counts as an error.
func collapseRepeatedPhrases(segment models.TranscriptionSegment) models.TranscriptionSegment {
	text := strings.TrimSpace(segment.Text)

	phrases := make([]string, 0, 4)
	for _, phrase := range phraseSplitRe.Split(text, -1) {
		// the final phrase keeps its terminal punctuation after the split,
		// strip it so repetition at the end of the text is still caught
		phrase = strings.TrimSpace(strings.TrimRight(phrase, ".!?,"))
		if phrase == "" {
			continue
		}
		phrases = append(phrases, phrase)
	}

	seen := make(map[string]struct{}, len(phrases))
	unique := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		if _, ok := seen[phrase]; ok {
			continue
		}
		seen[phrase] = struct{}{}
		unique = append(unique, phrase)
	}

	if len(unique) == len(phrases) {
		return segment
	}

	// keep only the first occurrence of each repeated word
	uniqueWords := make([]models.Word, 0, len(segment.Words))
	for i, word := range segment.Words {
		duplicate := false
		for _, prev := range segment.Words[:i] {
			if prev.Word == word.Word && math.Abs(prev.Start-word.Start) < wordDedupTolerance {
				duplicate = true
				break
			}
		}
		if !duplicate {
			uniqueWords = append(uniqueWords, word)
		}
	}

	segment.Text = strings.Join(unique, ". ")
	segment.Words = uniqueWords
	segment.WordCount = len(uniqueWords)
	segment.Metrics.ErrorCount++
	segment.Metrics.CompressionRatio = compressionRatio(unique, phrases)
	return segment
}

func compressionRatio(uniquePhrases, allPhrases []string) float64 {
	uniqueLength := len(strings.Join(uniquePhrases, " "))
	totalLength := len(strings.Join(allPhrases, " "))
	if totalLength == 0 {
		return 1.0
	}
	return float64(uniqueLength) / float64(totalLength)
}

// textSimilarity is the Jaccard index of the two texts' word sets.
func textSimilarity(text1, text2 string) float64 {
	words1 := wordSet(text1)
	words2 := wordSet(text2)

	intersection := 0
	for word := range words1 {
		if _, ok := words2[word]; ok {
			intersection++
		}
	}

	union := len(words2)
	for word := range words1 {
		if _, ok := words2[word]; !ok {
			union++
		}
	}

	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		set[word] = struct{}{}
	}
	return set
}

// mergeInto folds segment into last, extending the boundary, unioning the
// attributed sources and combining the quality metrics.
func mergeInto(last *models.TranscriptionSegment, segment models.TranscriptionSegment) {
	seenUnits := make(map[int64]struct{}, len(last.Sources))
	for _, source := range last.Sources {
		seenUnits[source.ID] = struct{}{}
	}
	for _, source := range segment.Sources {
		if _, ok := seenUnits[source.ID]; ok {
			continue
		}
		seenUnits[source.ID] = struct{}{}
		last.Sources = append(last.Sources, source)
	}
	sort.Slice(last.Sources, func(i, j int) bool {
		return last.Sources[i].Time.Before(last.Sources[j].Time)
	})

	last.End = segment.End
	last.EndTime = segment.EndTime
	last.Text = cleanText(last.Text + " " + segment.Text)
	last.Words = append(last.Words, segment.Words...)
	last.WordCount = len(last.Words)
	last.Metrics = mergedMetrics(last.Metrics, segment.Metrics)
}

func mergedMetrics(m1, m2 models.QualityMetrics) models.QualityMetrics {
	primary := m1.PrimaryUnit
	if primary == nil {
		primary = m2.PrimaryUnit
	}

	return models.QualityMetrics{
		ErrorCount:       m1.ErrorCount + m2.ErrorCount,
		SpikeCount:       m1.SpikeCount + m2.SpikeCount,
		AvgLogprob:       (m1.AvgLogprob + m2.AvgLogprob) / 2,
		CompressionRatio: (m1.CompressionRatio + m2.CompressionRatio) / 2,
		NoSpeechProb:     math.Max(m1.NoSpeechProb, m2.NoSpeechProb),
		PrimaryUnit:      primary,
	}
}

var (
	camelCaseRe     = regexp.MustCompile(`([a-z])([A-Z])`)
	letterDigitRe   = regexp.MustCompile(`([a-zA-Z])(\d)`)
	digitLetterRe   = regexp.MustCompile(`(\d)([a-zA-Z])`)
	punctGlueRe     = regexp.MustCompile(`([.!?,])([a-zA-Z\d])`)
	punctSpacingRe  = regexp.MustCompile(`\s*([.,])\s*`)
	multiSpaceRe    = regexp.MustCompile(`\s+`)
	doublePeriodRe  = regexp.MustCompile(`\.\s*\.`)
	sentenceBreakRe = regexp.MustCompile(`([.!?])\s+`)
)

// cleanText normalizes spacing and capitalization of merged text and drops
// sentences repeated across the merge boundary.
func cleanText(text string) string {
	spaced := camelCaseRe.ReplaceAllString(text, "$1 $2")
	spaced = letterDigitRe.ReplaceAllString(spaced, "$1 $2")
	spaced = digitLetterRe.ReplaceAllString(spaced, "$1 $2")
	spaced = punctGlueRe.ReplaceAllString(spaced, "$1 $2")
	spaced = punctSpacingRe.ReplaceAllString(spaced, "$1 ")
	spaced = multiSpaceRe.ReplaceAllString(spaced, " ")

	// split into sentences, keeping the terminal punctuation with each one
	marked := sentenceBreakRe.ReplaceAllString(spaced, "$1\x00")
	sentences := strings.Split(marked, "\x00")

	seen := make(map[string]struct{}, len(sentences))
	cleaned := make([]string, 0, len(sentences))
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		normalized := multiSpaceRe.ReplaceAllString(strings.ToLower(sentence), " ")
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}

		// capitalize the first rune, not the first byte
		first, size := utf8.DecodeRuneInString(sentence)
		cleaned = append(cleaned, string(unicode.ToUpper(first))+sentence[size:])
	}

	result := strings.Join(cleaned, ". ")
	result = multiSpaceRe.ReplaceAllString(strings.TrimSpace(result), " ")
	return doublePeriodRe.ReplaceAllString(result, ".")
}
