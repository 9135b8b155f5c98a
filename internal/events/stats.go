package events

import (
	"context"
	"sync"
	"time"

	"github.com/sable-dev/sable/pkg/models"
)

// RunStats aggregates what happened on the event stream for one run.
type RunStats struct {
	// Events counts everything observed, droppable included.
	Events uint64 `json:"events"`

	// Iterations counts completed loop passes.
	Iterations int `json:"iterations"`

	// Executions counts completed plan executions.
	Executions int `json:"executions"`

	// Evaluations counts evaluation verdicts, SuccessfulEvals the positive
	// ones.
	Evaluations     int `json:"evaluations"`
	SuccessfulEvals int `json:"successful_evals"`

	// TerminalStatus is set once a terminal event arrives.
	TerminalStatus models.RunStatus `json:"terminal_status,omitempty"`

	// Duration is wall-clock time from task start to the terminal event.
	Duration time.Duration `json:"duration,omitempty"`
}

// StatsCollector is a Sink that derives RunStats from the stream. Useful as
// a MultiSink member next to a display sink.
type StatsCollector struct {
	mu      sync.Mutex
	stats   RunStats
	started time.Time
}

// NewStatsCollector creates an empty collector.
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{}
}

// Emit folds one event into the running stats.
func (c *StatsCollector) Emit(ctx context.Context, e models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Events++
	switch e.Type {
	case models.EventTaskStarted:
		c.started = e.Time
	case models.EventIterationCompleted:
		c.stats.Iterations++
	case models.EventExecutionCompleted:
		c.stats.Executions++
	case models.EventEvaluationCompleted:
		c.stats.Evaluations++
		if e.Eval != nil && e.Eval.Success {
			c.stats.SuccessfulEvals++
		}
	}
	if e.Type.Terminal() && e.Run != nil {
		c.stats.TerminalStatus = e.Run.Status
		if !c.started.IsZero() {
			c.stats.Duration = e.Time.Sub(c.started)
		}
	}
}

// Stats returns a copy of the collected statistics.
func (c *StatsCollector) Stats() RunStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
