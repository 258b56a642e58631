// Package health tracks process-wide generation health: call and cache
// counters, a running-average latency, and the advisory throttle predicate
// derived from them. A Monitor is an explicit object passed to every pool,
// so independent pipelines can run in isolation.
package health

import (
	"sync"
	"time"

	"github.com/longform-ai/longform/pkg/models"
)

// Thresholds configure the throttle predicate.
type Thresholds struct {
	// ErrorThreshold is the error count above which the throttle engages.
	ErrorThreshold int64
	// CPUHighWater and MemoryHighWater are utilization percentages checked
	// when a resource probe is available.
	CPUHighWater    float64
	MemoryHighWater float64
}

// Monitor accumulates HealthCounters behind a single mutex. Updates are O(1)
// and never block on I/O; the resource probe is consulted only inside
// ShouldThrottle and Snapshot.
type Monitor struct {
	mu       sync.Mutex
	counters models.HealthCounters
	start    time.Time

	thresholds Thresholds
	probe      ResourceProbe
}

// NewMonitor creates a Monitor. probe may be nil, in which case throttling
// degrades to the error-count rule alone.
func NewMonitor(thresholds Thresholds, probe ResourceProbe) *Monitor {
	return &Monitor{
		start:      time.Now(),
		thresholds: thresholds,
		probe:      probe,
	}
}

// RecordCall records one generation-service call and its latency. The
// latency feeds an online mean: total and sample count accumulate, the
// average is derived on read.
func (m *Monitor) RecordCall(success bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.Calls++
	if !success {
		m.counters.Errors++
	}
	m.counters.TotalLatency += latency
	m.counters.SampleCount++
}

// RecordCache records a cache lookup outcome.
func (m *Monitor) RecordCache(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.counters.CacheHits++
	} else {
		m.counters.CacheMisses++
	}
}

// RecordSegment records a finished segment.
func (m *Monitor) RecordSegment(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.counters.SegmentsOK++
	} else {
		m.counters.SegmentsFailed++
	}
}

// ResetErrors zeroes the error counter, releasing the throttle once the
// error burst has been dealt with.
func (m *Monitor) ResetErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.Errors = 0
}

// ShouldThrottle reports whether callers should insert a cooldown before
// their next attempt. It is advisory: nothing is aborted, pools are not
// drained. Resource checks apply only when a probe is present.
func (m *Monitor) ShouldThrottle() bool {
	if m.probe != nil {
		if cpu, err := m.probe.CPUPercent(); err == nil && cpu > m.thresholds.CPUHighWater {
			return true
		}
		if mem, err := m.probe.MemoryPercent(); err == nil && mem > m.thresholds.MemoryHighWater {
			return true
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters.Errors > m.thresholds.ErrorThreshold
}

// Counters returns a copy of the current counters.
func (m *Monitor) Counters() models.HealthCounters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters
}

// Snapshot builds a point-in-time report for external monitoring.
func (m *Monitor) Snapshot() models.HealthReport {
	c := m.Counters()

	status := "healthy"
	if c.SuccessRate() <= 80 {
		status = "degraded"
	}

	report := models.HealthReport{
		Status:       status,
		Uptime:       time.Since(m.start).Round(time.Second).String(),
		AvgLatencyMs: c.AvgLatency().Milliseconds(),
		SuccessRate:  c.SuccessRate(),
		Counters:     c,
	}

	if m.probe != nil {
		if cpu, err := m.probe.CPUPercent(); err == nil {
			report.CPUPercent = &cpu
		}
		if mem, err := m.probe.MemoryPercent(); err == nil {
			report.MemoryPercent = &mem
		}
	}
	return report
}
