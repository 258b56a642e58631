package models

import "time"

// RunRecord is the ledger row written for every generation result. It keeps
// enough partial metadata for an operator to diagnose a failure without
// re-running: attempt count, last error, word counts, latency.
type RunRecord struct {
	ID           string    `json:"id"`
	Fingerprint  string    `json:"fingerprint"`
	Episode      string    `json:"episode,omitempty"`
	SegmentIndex int       `json:"segment_index"`
	Status       Status    `json:"status"`
	Origin       Origin    `json:"origin"`
	AttemptCount int       `json:"attempt_count"`
	WordCount    int       `json:"word_count"`
	TargetWords  int       `json:"target_words"`
	LatencyMs    int64     `json:"latency_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunSummary aggregates ledger rows by episode and status.
type RunSummary struct {
	Episode      string `json:"episode"`
	Status       Status `json:"status"`
	Count        int64  `json:"count"`
	TotalWords   int64  `json:"total_words"`
	AvgLatencyMs int64  `json:"avg_latency_ms"`
}
