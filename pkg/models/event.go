package models

import (
	"time"
)

// Event is the unified progress event emitted by the loop engine and consumed
// by display-layer sinks.
//
// Design principles:
//   - Versioned and forward-compatible (add fields, don't rename/remove)
//   - Single Type discriminator with optional payload pointers
//   - Monotonic Sequence for ordering guarantees across goroutines
type Event struct {
	// Version for forward compatibility. Current version: 1.
	Version int `json:"version"`

	// Type identifies the kind of event.
	Type EventType `json:"type"`

	// Time is when the event occurred.
	Time time.Time `json:"time"`

	// Sequence is monotonic within a run for ordering guarantees.
	Sequence uint64 `json:"seq"`

	// RunID identifies the run that produced the event.
	RunID string `json:"run_id,omitempty"`

	// SessionID identifies the owning session.
	SessionID string `json:"session_id,omitempty"`

	// Iteration is the 1-based loop iteration, where applicable.
	Iteration int `json:"iteration,omitempty"`

	// Exactly one payload should be non-nil for a given Type.
	Text  *TextEventPayload  `json:"text,omitempty"`
	Exec  *ExecEventPayload  `json:"exec,omitempty"`
	Eval  *EvalEventPayload  `json:"eval,omitempty"`
	Iter  *IterEventPayload  `json:"iter,omitempty"`
	Run   *RunEventPayload   `json:"run,omitempty"`
	Error *ErrorEventPayload `json:"error,omitempty"`
}

// EventType identifies the kind of progress event.
type EventType string

const (
	// Run lifecycle
	EventTaskStarted       EventType = "task.started"
	EventTaskSucceeded     EventType = "task.succeeded"
	EventTaskMaxIterations EventType = "task.max_iterations"
	EventTaskFailed        EventType = "task.failed"
	EventTaskCancelled     EventType = "task.cancelled"

	// Iteration lifecycle
	EventIterationStarted   EventType = "iter.started"
	EventIterationCompleted EventType = "iter.completed"

	// Step progress
	EventThinking            EventType = "thinking"
	EventPlanning            EventType = "planning"
	EventExecutionStarted    EventType = "exec.started"
	EventExecutionCompleted  EventType = "exec.completed"
	EventEvaluationCompleted EventType = "eval.completed"
)

// Droppable reports whether the event type may be discarded under
// backpressure. Terminal and iteration lifecycle events are never dropped.
func (t EventType) Droppable() bool {
	switch t {
	case EventThinking, EventPlanning:
		return true
	default:
		return false
	}
}

// Terminal reports whether the event type ends a run.
func (t EventType) Terminal() bool {
	switch t {
	case EventTaskSucceeded, EventTaskMaxIterations, EventTaskFailed, EventTaskCancelled:
		return true
	default:
		return false
	}
}

// TextEventPayload carries thinking and planning text.
type TextEventPayload struct {
	Text string `json:"text"`
}

// ExecEventPayload describes a plan execution and, for completed events,
// its result.
type ExecEventPayload struct {
	// Plan is the action being executed.
	Plan string `json:"plan,omitempty"`

	// Result is the execution outcome (completed events only).
	Result *ExecutionResult `json:"result,omitempty"`
}

// EvalEventPayload carries the evaluation verdict for one iteration.
type EvalEventPayload struct {
	Success    bool    `json:"success"`
	Confidence float64 `json:"confidence"`
	Feedback   string  `json:"feedback,omitempty"`
}

// IterEventPayload carries iteration timing.
type IterEventPayload struct {
	// Index is the 1-based iteration number.
	Index int `json:"index"`

	// Duration is set on iter.completed events.
	Duration time.Duration `json:"duration,omitempty"`
}

// RunEventPayload describes run lifecycle transitions.
type RunEventPayload struct {
	// Task is the original task text (task.started and terminal events).
	Task string `json:"task,omitempty"`

	// Status is the terminal status (terminal events only).
	Status RunStatus `json:"status,omitempty"`

	// Final is the final result payload on task.succeeded, or the best
	// partial result on task.max_iterations.
	Final *ExecutionResult `json:"final,omitempty"`
}

// ErrorEventPayload standardises errors on the event stream.
type ErrorEventPayload struct {
	// Message is the error description.
	Message string `json:"message"`

	// Kind is the taxonomy entry (provider_unavailable, tool_failed, ...).
	Kind string `json:"kind,omitempty"`

	// Err is the original error (runtime only, not serialised).
	Err error `json:"-"`
}
