package models

import (
	"time"
)

// AgenticContext is the durable per-session state that carries a task across
// turns. It is owned exclusively by session memory; all mutation goes through
// that package's API.
//
// Invariants:
//   - a step appears in exactly one of CompletedSteps/PendingSteps at a time
//   - IterationCount is monotone non-decreasing
//   - LastActivity is monotone non-decreasing
//   - ContextKeywords always contains the keywords of OriginalTask
type AgenticContext struct {
	// SessionID identifies the owning session.
	SessionID string `json:"session_id"`

	// StartedAt is when the context was created.
	StartedAt time.Time `json:"started_at"`

	// LastActivity is the time of the most recent mutation.
	LastActivity time.Time `json:"last_activity"`

	// OriginalTask is the task text that started the session, set once.
	OriginalTask string `json:"original_task"`

	// CurrentObjective is the possibly-refined objective for the next turn.
	CurrentObjective string `json:"current_objective"`

	// CompletedSteps are plan strings whose execution was judged successful.
	CompletedSteps []string `json:"completed_steps"`

	// PendingSteps are plan strings awaiting successful execution.
	PendingSteps []string `json:"pending_steps"`

	// IterationCount counts loop passes across the session.
	IterationCount int `json:"iteration_count"`

	// LastResult is the most recent execution result text.
	LastResult string `json:"last_result,omitempty"`

	// LastEvaluation is the most recent evaluator feedback.
	LastEvaluation string `json:"last_evaluation,omitempty"`

	// ContextKeywords is the monotonically grown set of domain tokens.
	ContextKeywords []string `json:"context_keywords"`

	// FilesCreated is the set of paths created during the session.
	FilesCreated []string `json:"files_created"`

	// FilesModified is the set of paths modified during the session.
	FilesModified []string `json:"files_modified"`

	// ToolsUsed is the multiset of tool names invoked, in order.
	ToolsUsed []string `json:"tools_used"`
}

// Clone returns a deep copy so callers cannot mutate memory-owned state.
func (c *AgenticContext) Clone() *AgenticContext {
	if c == nil {
		return nil
	}
	clone := *c
	clone.CompletedSteps = append([]string(nil), c.CompletedSteps...)
	clone.PendingSteps = append([]string(nil), c.PendingSteps...)
	clone.ContextKeywords = append([]string(nil), c.ContextKeywords...)
	clone.FilesCreated = append([]string(nil), c.FilesCreated...)
	clone.FilesModified = append([]string(nil), c.FilesModified...)
	clone.ToolsUsed = append([]string(nil), c.ToolsUsed...)
	return &clone
}

// HasKeyword reports whether token is in the context keyword set.
func (c *AgenticContext) HasKeyword(token string) bool {
	for _, k := range c.ContextKeywords {
		if k == token {
			return true
		}
	}
	return false
}

// MentionsFile reports whether path is among the files created or modified.
func (c *AgenticContext) MentionsFile(path string) bool {
	for _, f := range c.FilesCreated {
		if f == path {
			return true
		}
	}
	for _, f := range c.FilesModified {
		if f == path {
			return true
		}
	}
	return false
}
