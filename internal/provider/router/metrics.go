package router

import (
	"sync"
	"time"
)

// Metrics tracks per-provider request counters. All updates go through Record
// under the mutex; readers take point-in-time snapshots.
type Metrics struct {
	mu sync.Mutex

	total     int64
	successes int64
	failures  int64

	totalElapsed time.Duration
	avgSeconds   float64

	lastRequest time.Time
	since       time.Time
}

// NewMetrics creates a metrics tracker with uptime starting now.
func NewMetrics() *Metrics {
	return &Metrics{since: time.Now()}
}

// Record updates counters for one completed request.
func (m *Metrics) Record(success bool, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if success {
		m.successes++
	} else {
		m.failures++
	}
	m.totalElapsed += elapsed
	m.avgSeconds = m.totalElapsed.Seconds() / float64(m.total)
	m.lastRequest = time.Now()
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MetricsSnapshot{
		Total:       m.total,
		Successes:   m.successes,
		Failures:    m.failures,
		AvgSeconds:  m.avgSeconds,
		LastRequest: m.lastRequest,
		Since:       m.since,
	}
}

// MetricsSnapshot is an immutable view of a provider's counters.
type MetricsSnapshot struct {
	Total       int64     `json:"total"`
	Successes   int64     `json:"successes"`
	Failures    int64     `json:"failures"`
	AvgSeconds  float64   `json:"avg_response_seconds"`
	LastRequest time.Time `json:"last_request"`
	Since       time.Time `json:"uptime_since"`
}

// SuccessRate returns successes over total, 0 when no requests were made.
func (s MetricsSnapshot) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Total)
}

// ErrorRate returns failures over total, 0 when no requests were made.
func (s MetricsSnapshot) ErrorRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Total)
}

// Score ranks the provider for tie-breaking. Higher is better. Providers with
// sub-2s average responses are not penalised for latency; recently exercised
// providers get a bonus, stale ones a penalty.
func (s MetricsSnapshot) Score(now time.Time) float64 {
	score := s.SuccessRate() * 100

	if s.AvgSeconds > 2.0 {
		score -= (s.AvgSeconds - 2.0) * 10
	}

	if !s.LastRequest.IsZero() {
		age := now.Sub(s.LastRequest)
		switch {
		case age < time.Hour:
			score += 10
		case age > 24*time.Hour:
			score -= 5
		}
	}

	score -= s.ErrorRate() * 50
	return score
}
