// Package models provides domain types for the sable agentic execution core.
package models

import (
	"time"
)

// Request describes a single user turn handed to the execution core.
// It is immutable for the duration of the turn.
type Request struct {
	// Task is the free-form task text.
	Task string `json:"task"`

	// MaxIterations caps the number of loop passes. The orchestrator fills
	// in its default for agentic turns; the engine treats zero as an
	// immediately exhausted budget.
	MaxIterations int `json:"max_iterations,omitempty"`

	// Verbose requests additional thinking/planning events.
	Verbose bool `json:"verbose,omitempty"`

	// AllowedTools restricts dispatch to the named tools when non-empty.
	AllowedTools []string `json:"allowed_tools,omitempty"`
}

// ExecutionResult is the neutral, serialisable form of one tool execution
// outcome as seen by the loop engine and the event stream.
type ExecutionResult struct {
	// Success indicates the execution completed without error.
	Success bool `json:"success"`

	// Output is the human-readable result message.
	Output string `json:"output,omitempty"`

	// Error holds the failure description when Success is false.
	Error string `json:"error,omitempty"`

	// FilesCreated lists paths created during execution.
	FilesCreated []string `json:"files_created,omitempty"`

	// FilesModified lists paths modified during execution.
	FilesModified []string `json:"files_modified,omitempty"`

	// ToolsUsed lists the tool names that ran, in execution order.
	ToolsUsed []string `json:"tools_used,omitempty"`

	// Elapsed is the wall-clock execution time.
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// IterationRecord captures one pass through the think/execute/evaluate cycle.
// Records are append-only within a run and never mutated after append.
type IterationRecord struct {
	// Index is the 1-based iteration number, monotonically increasing.
	Index int `json:"index"`

	// Thinking is the model's reasoning text for this pass. Never empty:
	// the engine substitutes a placeholder when parsing yields nothing.
	Thinking string `json:"thinking"`

	// Plan is the single concrete action proposed for this pass. Never empty.
	Plan string `json:"plan"`

	// Result is the execution outcome for the plan.
	Result *ExecutionResult `json:"result,omitempty"`

	// Evaluated indicates whether the evaluation verdict was success.
	Evaluated bool `json:"evaluated"`

	// Evaluation is the evaluator's feedback message.
	Evaluation string `json:"evaluation,omitempty"`

	// Confidence is the evaluator's self-reported confidence in [0,1].
	Confidence float64 `json:"confidence,omitempty"`

	// Duration is the wall-clock time for the whole pass.
	Duration time.Duration `json:"duration"`

	// StartedAt is when the pass began.
	StartedAt time.Time `json:"started_at"`
}

// RunStatus is the terminal state of an agentic run.
type RunStatus string

const (
	// StatusSuccess means the evaluator judged the task complete.
	StatusSuccess RunStatus = "success"

	// StatusMaxIterations means the iteration budget was exhausted.
	StatusMaxIterations RunStatus = "max_iterations"

	// StatusFailed means an unrecoverable error ended the run.
	StatusFailed RunStatus = "failed"

	// StatusCancelled means the caller's context was cancelled.
	StatusCancelled RunStatus = "cancelled"
)

// RunMode records how the orchestrator handled a turn.
type RunMode string

const (
	// ModeAgentic means the turn went through the full iteration loop.
	ModeAgentic RunMode = "agentic"

	// ModeDirect means the turn was a single-shot dispatcher call.
	ModeDirect RunMode = "direct"
)

// RunResult is the outcome of one complete agentic invocation.
//
// Invariants:
//   - Success == (Status == StatusSuccess)
//   - FinalResult != nil iff Success
//   - len(Iterations) never exceeds the configured iteration cap
type RunResult struct {
	// Task is the original task text.
	Task string `json:"task"`

	// Status is the terminal state.
	Status RunStatus `json:"status"`

	// Success mirrors Status == StatusSuccess for convenience.
	Success bool `json:"success"`

	// Mode records direct vs. agentic handling.
	Mode RunMode `json:"mode,omitempty"`

	// Iterations holds the per-pass records in order.
	Iterations []IterationRecord `json:"iterations"`

	// FinalResult is the successful execution payload; nil unless Success.
	FinalResult *ExecutionResult `json:"final_result,omitempty"`

	// Error describes the terminal failure for StatusFailed runs.
	Error string `json:"error,omitempty"`

	// Duration is the total wall-clock run time.
	Duration time.Duration `json:"duration"`
}
