/*
 * Copyright (C) 2025 Trunkwatch
 * SPDX-License-Identifier: GPL-3.0-or-later
 */

package models

import "time"

// System describes one trunked system as reported by the recorder.
// System entries are replaced wholesale on every update.
type System struct {
	SysNum    int    `json:"sys_num"`
	SysName   string `json:"sys_name"`
	Type      string `json:"type"`
	SysID     string `json:"sysid"`
	WACN      string `json:"wacn"`
	NAC       string `json:"nac"`
	RFSS      int    `json:"rfss"`
	SiteID    int    `json:"site_id"`
	ShortName string `json:"short_name"`
}

// DecodeRate is the per-system control channel decode rate.
type DecodeRate struct {
	SysName        string  `json:"sys_name"`
	DecodeRate     float64 `json:"decoderate"`
	ControlChannel float64 `json:"control_channel"`
}

// RateSample is one point of a system's decode rate history.
type RateSample struct {
	Time    time.Time `json:"time"`
	Rate    float64   `json:"rate"`
	Control float64   `json:"control"`
}

// ActiveCall mirrors one in-progress call from the calls_active snapshot.
type ActiveCall struct {
	ID            string  `json:"id"`
	CallNum       int64   `json:"callNum"`
	SysName       string  `json:"sysName"`
	ShortName     string  `json:"shortName"`
	Freq          float64 `json:"freq"`
	Talkgroup     int64   `json:"talkgroup"`
	TalkgroupTag  string  `json:"talkgrouptag"`
	Elapsed       float64 `json:"elapsed"`
	Length        float64 `json:"length"`
	State         string  `json:"state"`
	Emergency     int     `json:"emergency"`
	Encrypted     int     `json:"encrypted"`
	Conventional  int     `json:"conventional"`
	Phase2        int     `json:"phase2"`
	StartTime     int64   `json:"start_time"`
	StopTime      int64   `json:"stop_time"`
	SrcID         int64   `json:"srcId"`
	UnitAlphaTag  string  `json:"unit_alpha_tag"`
	RecorderState string  `json:"rec_state_type"`
}

// Recorder is one recorder slot of the trunk recorder.
type Recorder struct {
	ID              string    `json:"id"`
	SrcNum          int       `json:"src_num"`
	RecNum          int       `json:"rec_num"`
	Type            string    `json:"type"`
	Freq            float64   `json:"freq"`
	Duration        float64   `json:"duration"`
	Count           int64     `json:"count"`
	RecState        int       `json:"rec_state"`
	RecStateType    string    `json:"rec_state_type"`
	LastStateChange time.Time `json:"last_state_change"`
}

// SrcEntry is one transmission source event from the call metadata.
// Pos is the offset of the transmission inside the call, in seconds.
type SrcEntry struct {
	Src          int64   `json:"src"`
	Time         int64   `json:"time"`
	Pos          float64 `json:"pos"`
	Emergency    int     `json:"emergency"`
	SignalSystem string  `json:"signal_system"`
	Tag          string  `json:"tag"`
}

// FreqEntry is one frequency sample from the call metadata, carrying the
// decode error counters for the span starting at Pos.
type FreqEntry struct {
	Freq       float64 `json:"freq"`
	Time       int64   `json:"time"`
	Pos        float64 `json:"pos"`
	Len        float64 `json:"len"`
	ErrorCount int     `json:"error_count"`
	SpikeCount int     `json:"spike_count"`
}

// CallMetadata is the recorder metadata attached to a finished call.
type CallMetadata struct {
	Talkgroup            int64       `json:"talkgroup"`
	TalkgroupTag         string      `json:"talkgroup_tag"`
	TalkgroupDescription string      `json:"talkgroup_description"`
	TalkgroupGroup       string      `json:"talkgroup_group"`
	TalkgroupGroupTag    string      `json:"talkgroup_group_tag"`
	StartTime            int64       `json:"start_time"`
	StopTime             int64       `json:"stop_time"`
	CallLength           float64     `json:"call_length"`
	Elapsed              float64     `json:"elapsed"`
	Emergency            int         `json:"emergency"`
	Priority             int         `json:"priority"`
	Encrypted            int         `json:"encrypted"`
	Freq                 float64     `json:"freq"`
	SysName              string      `json:"sys_name"`
	ShortName            string      `json:"short_name"`
	SrcList              []SrcEntry  `json:"srcList"`
	FreqList             []FreqEntry `json:"freqList"`
}

// CallAudio is the payload of an audio message: call metadata plus the
// base64 encoded audio of the finished call.
type CallAudio struct {
	Metadata       *CallMetadata `json:"metadata"`
	AudioWavBase64 string        `json:"audio_wav_base64"`
	AudioM4aBase64 string        `json:"audio_m4a_base64"`
}

// RecentCall is a finished call retained in memory with its audio reference
// and, once refinement completes, the transcription.
type RecentCall struct {
	ID            string         `json:"id"`
	Metadata      *CallMetadata  `json:"metadata"`
	AudioWav      string         `json:"-"`
	AudioM4a      string         `json:"-"`
	HasAudio      bool           `json:"has_audio"`
	AudioSize     int            `json:"audio_size"`
	FinishedAt    time.Time      `json:"finishedAt"`
	Transcription *Transcription `json:"transcription,omitempty"`
}

// Word is a single transcribed word with its timing and confidence.
type Word struct {
	Word          string  `json:"word"`
	Probability   float64 `json:"probability"`
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	LowConfidence bool    `json:"lowConfidence,omitempty"`
}

// SourceRef is a radio unit attributed to a transcription segment.
type SourceRef struct {
	ID        int64     `json:"id"`
	Time      time.Time `json:"time"`
	Emergency bool      `json:"emergency"`
	Duration  float64   `json:"duration"`
}

// QualityMetrics aggregates decode and transcription quality for a segment.
type QualityMetrics struct {
	ErrorCount       int     `json:"error_count"`
	SpikeCount       int     `json:"spike_count"`
	CompressionRatio float64 `json:"compression_ratio"`
	AvgLogprob       float64 `json:"avg_logprob"`
	NoSpeechProb     float64 `json:"no_speech_prob"`
	PrimaryUnit      *int64  `json:"primary_unit"`
}

// TranscriptionSegment is a cleaned, unit-attributed span of the transcript.
type TranscriptionSegment struct {
	Start     float64        `json:"start"`
	End       float64        `json:"end"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Text      string         `json:"text"`
	Words     []Word         `json:"words"`
	WordCount int            `json:"word_count"`
	Sources   []SourceRef    `json:"sources"`
	Metrics   QualityMetrics `json:"quality_metrics"`
}

// TalkgroupInfo is the talkgroup header of a transcription.
type TalkgroupInfo struct {
	ID          int64  `json:"id"`
	Tag         string `json:"tag"`
	Description string `json:"description"`
	Group       string `json:"group"`
}

// TimingInfo is the timing header of a transcription.
type TimingInfo struct {
	StartTime  time.Time `json:"start_time"`
	Duration   float64   `json:"duration"`
	CallLength float64   `json:"call_length"`
}

// CallInfo is the call header carried with every transcription.
type CallInfo struct {
	Talkgroup TalkgroupInfo `json:"talkgroup"`
	Timing    TimingInfo    `json:"timing"`
	Emergency bool          `json:"emergency"`
	Priority  bool          `json:"priority"`
}

// Transcription is the refined, speaker-attributed transcript of a call.
type Transcription struct {
	CallInfo CallInfo               `json:"call_info"`
	Segments []TranscriptionSegment `json:"segments"`
}
