// Package provider defines the uniform interface to backend LLM services and
// its concrete implementations.
//
// Each provider hides one backend's wire protocol behind a synchronous ask
// call. Implementations must be safe for concurrent use: multiple goroutines
// may call Ask simultaneously for different requests.
package provider

import (
	"context"
)

// MaxHistoryTurns caps the message history sent to a backend.
const MaxHistoryTurns = 10

// DefaultMaxTokens is the response token cap applied when a request does not
// set one.
const DefaultMaxTokens = 2048

// DefaultTemperature keeps generation conservative for agentic prompts.
const DefaultTemperature = 0.3

// Message is one turn of conversation history.
type Message struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// AskRequest contains all parameters for a single completion call.
type AskRequest struct {
	// Prompt is the current user prompt.
	Prompt string `json:"prompt"`

	// History is prior conversation turns, oldest first. Providers send at
	// most the last MaxHistoryTurns entries.
	History []Message `json:"history,omitempty"`

	// System overrides the provider's default system prompt when non-empty.
	System string `json:"system,omitempty"`

	// Model overrides the provider's default model when non-empty.
	Model string `json:"model,omitempty"`

	// MaxTokens limits the response length. 0 means DefaultMaxTokens.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls sampling. 0 means DefaultTemperature; the core
	// never sends more than 0.5.
	Temperature float32 `json:"temperature,omitempty"`
}

// ModelInfo describes an available model and its capability tags.
type ModelInfo struct {
	// ID is the API identifier for the model.
	ID string `json:"id"`

	// Name is the human-readable model name.
	Name string `json:"name"`

	// ContextSize is the maximum token context window.
	ContextSize int `json:"context_size"`

	// Capabilities tags what the model is good at: "code", "reasoning",
	// "fast", "large-context".
	Capabilities []string `json:"capabilities,omitempty"`
}

// HasCapability reports whether the model advertises the given tag.
func (m ModelInfo) HasCapability(tag string) bool {
	for _, c := range m.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// Provider is the uniform contract a backend LLM service must satisfy.
//
// Ask is synchronous from the caller's perspective; implementations may block
// on network I/O internally and must honour context cancellation.
type Provider interface {
	// Ask sends a prompt with history and returns the completion text.
	// All failures are returned as errors from the taxonomy in this
	// package, never panics.
	Ask(ctx context.Context, req *AskRequest) (string, error)

	// Name returns the stable lowercase provider identifier.
	Name() string

	// Available reports whether the provider can accept requests
	// (typically: an API key is configured).
	Available() bool

	// Models returns the models this provider can serve.
	Models() []ModelInfo

	// SystemPrompt returns the provider's default system prompt.
	SystemPrompt() string
}

// Descriptor is static registration metadata for a provider.
type Descriptor struct {
	// Name matches Provider.Name().
	Name string `json:"name"`

	// Priority orders fallback selection; higher wins.
	Priority int `json:"priority"`

	// Enabled gates the provider without unregistering it.
	Enabled bool `json:"enabled"`
}

// clampTokens applies the request/default token cap.
func clampTokens(requested int) int {
	if requested <= 0 {
		return DefaultMaxTokens
	}
	return requested
}

// clampTemperature applies the request/default temperature, capped at 0.5.
func clampTemperature(requested float32) float32 {
	if requested <= 0 {
		return DefaultTemperature
	}
	if requested > 0.5 {
		return 0.5
	}
	return requested
}

// trimHistory returns at most the last MaxHistoryTurns entries.
func trimHistory(history []Message) []Message {
	if len(history) <= MaxHistoryTurns {
		return history
	}
	return history[len(history)-MaxHistoryTurns:]
}
