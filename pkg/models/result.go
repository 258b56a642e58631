package models

import "time"

// Status classifies the outcome of a generation request.
type Status string

const (
	// StatusSuccess means an attempt passed every acceptance check.
	StatusSuccess Status = "success"
	// StatusWarning means no attempt passed, but some output was produced
	// and the best-scoring attempt was kept.
	StatusWarning Status = "warning"
	// StatusFailed means no attempt produced any usable output.
	StatusFailed Status = "failed"
	// StatusError means a hard error occurred before any output existed.
	StatusError Status = "error"
	// StatusCached means a cached artifact satisfied the request.
	StatusCached Status = "cached"
)

// Origin records where the final text came from.
type Origin string

const (
	OriginFresh    Origin = "fresh_call"
	OriginCacheHit Origin = "cache_hit"
)

// Attempt captures one iteration of the retry loop. Attempts are never
// persisted individually; only the best one survives into the Result text.
type Attempt struct {
	Number    int      `json:"attempt"`
	WordCount int      `json:"word_count"`
	Issues    []string `json:"issues,omitempty"`
	Accepted  bool     `json:"accepted"`
	Truncated bool     `json:"truncated,omitempty"`
	Err       string   `json:"error,omitempty"`
}

// Result is the outcome of a generation request, returned as data even on
// failure so batch callers can continue processing siblings.
type Result struct {
	SegmentIndex   int           `json:"segment_index"`
	FinalText      string        `json:"final_text"`
	FinalWordCount int           `json:"final_word_count"`
	Status         Status        `json:"status"`
	Origin         Origin        `json:"origin"`
	Attempts       []Attempt     `json:"attempts,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	Elapsed        time.Duration `json:"elapsed"`
}

// EpisodeResult is the outcome of an episode unit: per-segment results plus
// the merged narration produced by the fusion step.
type EpisodeResult struct {
	Episode    string        `json:"episode"`
	Segments   []Result      `json:"segments"`
	FusedText  string        `json:"fused_text,omitempty"`
	FuseStatus Status        `json:"fuse_status"`
	Elapsed    time.Duration `json:"elapsed"`
}
