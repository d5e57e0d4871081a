/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package transcription

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/trunkwatch/trunkwatch-middleware/configuration"
	"github.com/trunkwatch/trunkwatch-middleware/logs"
	"github.com/trunkwatch/trunkwatch-middleware/models"
)

// whisperWord is one word of the verbose_json Whisper response
type whisperWord struct {
	Word        string  `json:"word"`
	Probability float64 `json:"probability"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
}

// whisperSegment is one segment of the verbose_json Whisper response
type whisperSegment struct {
	Start            float64       `json:"start"`
	End              float64       `json:"end"`
	Text             string        `json:"text"`
	Words            []whisperWord `json:"words"`
	CompressionRatio float64       `json:"compression_ratio"`
	AvgLogprob       float64       `json:"avg_logprob"`
	NoSpeechProb     float64       `json:"no_speech_prob"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
}

// no request timeout, transcribing a long call can exceed any fixed limit
var httpClient = &http.Client{}

// transcribeFunc is swapped in tests
var transcribeFunc = transcribeWav

// ProcessCallAudio runs the full refinement pipeline for one finished call:
// decode the WAV, send it to the Whisper backend, attribute and clean the
// returned segments. Any failure leaves the call without a transcript.
func ProcessCallAudio(callID string, audio *models.CallAudio) (*models.Transcription, error) {
	wav, err := base64.StdEncoding.DecodeString(audio.AudioWavBase64)
	if err != nil {
		return nil, fmt.Errorf("decode wav for call %s: %w", callID, err)
	}

	result, err := transcribeFunc(wav)
	if err != nil {
		return nil, fmt.Errorf("transcribe call %s: %w", callID, err)
	}

	segments := buildSegments(result.Segments, audio.Metadata)
	segments = cleanAndMergeSegments(segments)

	return &models.Transcription{
		CallInfo: buildCallInfo(audio.Metadata, result.Duration),
		Segments: segments,
	}, nil
}

// transcribeWav POSTs the WAV to the Whisper API as multipart form data and
// expects a verbose_json response with word level timestamps.
func transcribeWav(wav []byte) (*whisperResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(wav); err != nil {
		return nil, err
	}

	writer.WriteField("model", configuration.Config.WhisperModel)
	writer.WriteField("response_format", "verbose_json")
	writer.WriteField("timestamp_granularities[]", "word")

	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, configuration.Config.WhisperAPIURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		responseText, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logs.Log(fmt.Sprintf("[ERROR][WHISPER] API returned status %d: %s", resp.StatusCode, string(responseText)))
		return nil, fmt.Errorf("whisper API status %d", resp.StatusCode)
	}

	var result whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}

	return &result, nil
}
