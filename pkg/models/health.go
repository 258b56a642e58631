package models

import "time"

// HealthCounters accumulate monotonically for the life of a run. Average
// latency is derived from TotalLatency / SampleCount, an online mean.
type HealthCounters struct {
	Calls          int64         `json:"calls"`
	Errors         int64         `json:"errors"`
	CacheHits      int64         `json:"cache_hits"`
	CacheMisses    int64         `json:"cache_misses"`
	SegmentsOK     int64         `json:"segments_ok"`
	SegmentsFailed int64         `json:"segments_failed"`
	TotalLatency   time.Duration `json:"total_latency"`
	SampleCount    int64         `json:"sample_count"`
}

// AvgLatency returns the running-mean call latency, or zero with no samples.
func (c HealthCounters) AvgLatency() time.Duration {
	if c.SampleCount == 0 {
		return 0
	}
	return c.TotalLatency / time.Duration(c.SampleCount)
}

// SuccessRate returns the segment success percentage, 100 with no segments.
func (c HealthCounters) SuccessRate() float64 {
	total := c.SegmentsOK + c.SegmentsFailed
	if total == 0 {
		return 100
	}
	return float64(c.SegmentsOK) / float64(total) * 100
}

// HealthReport is a point-in-time snapshot exportable for external
// monitoring. CPU/Memory are nil when no resource probe is available.
type HealthReport struct {
	Status        string         `json:"status"` // healthy or degraded
	Uptime        string         `json:"uptime"`
	AvgLatencyMs  int64          `json:"avg_latency_ms"`
	SuccessRate   float64        `json:"success_rate"`
	CPUPercent    *float64       `json:"cpu_percent,omitempty"`
	MemoryPercent *float64       `json:"memory_percent,omitempty"`
	Counters      HealthCounters `json:"counters"`
}
