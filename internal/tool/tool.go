// Package tool defines the tool contract, the registry, and the dispatcher
// that routes free-form requests to registered tools.
package tool

import (
	"context"
	"sync"
	"time"

	"github.com/sable-dev/sable/internal/mcp"
	"github.com/sable-dev/sable/internal/provider"
)

// LLM is the completion handle tools receive for delegating to the model.
// Both a concrete provider and the router (via an adapter) satisfy it.
type LLM interface {
	Ask(ctx context.Context, req *provider.AskRequest) (string, error)
}

// Tool is the contract every registered tool satisfies.
//
// CanHandle must be pure and fast; it must not mutate the context. Execute
// may be long-running and must respect ctx cancellation; a tool that ignores
// it is cut off at the dispatcher's deadline.
type Tool interface {
	// Name returns the globally unique tool identifier.
	Name() string

	// Description summarises the tool for selection and tie-breaking.
	Description() string

	// Category groups related tools for registry lookup.
	Category() string

	// Capabilities tags what the tool can operate on.
	Capabilities() []string

	// Mutates tags what the tool changes. A tool whose capabilities
	// intersect another's mutations cannot run in parallel with it.
	Mutates() []string

	// CanHandle scores how well the tool matches the request, in [0,1].
	CanHandle(request string, tc *Context) float64

	// Execute runs the tool and returns its result. Failures are reported
	// in the result, not by panicking.
	Execute(ctx context.Context, tc *Context) *Result
}

// Context is the shared value passed into every tool execution within one
// turn. It is created per turn and never shared across turns.
type Context struct {
	// Request is the free-form request text being dispatched.
	Request string

	// WorkDir is the working path for file-producing tools.
	WorkDir string

	// Registry lets coordinating tools look up siblings. Read-only.
	Registry *Registry

	// Provider is the completion handle for tools that call the LLM.
	Provider LLM

	// MCP is the Model Context Protocol query surface.
	MCP mcp.Surface

	mu     sync.RWMutex
	shared map[string]any
}

// NewContext creates a per-turn tool context.
func NewContext(request, workDir string) *Context {
	return &Context{
		Request: request,
		WorkDir: workDir,
		MCP:     mcp.NopSurface{},
		shared:  make(map[string]any),
	}
}

// Shared returns the value stored under key by an earlier tool this turn.
func (tc *Context) Shared(key string) (any, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	v, ok := tc.shared[key]
	return v, ok
}

// SetShared stores a value for later tools this turn.
func (tc *Context) SetShared(key string, value any) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.shared == nil {
		tc.shared = make(map[string]any)
	}
	tc.shared[key] = value
}

// Result is the outcome of one tool execution.
type Result struct {
	// Success indicates the tool completed its work.
	Success bool `json:"success"`

	// Output is the human-readable message, filled by coercion when the
	// tool only returned structured data.
	Output string `json:"output,omitempty"`

	// Error describes the failure when Success is false.
	Error string `json:"error,omitempty"`

	// TimedOut marks results produced by deadline expiry.
	TimedOut bool `json:"timed_out,omitempty"`

	// Data carries the tool's structured payload.
	Data map[string]any `json:"data,omitempty"`

	// FilesCreated lists paths the tool created.
	FilesCreated []string `json:"files_created,omitempty"`

	// FilesModified lists paths the tool modified.
	FilesModified []string `json:"files_modified,omitempty"`

	// Tool is the producing tool's name, set by the dispatcher.
	Tool string `json:"tool,omitempty"`

	// ToolsRun lists every tool that executed for this result, in
	// execution order. One entry for single dispatch.
	ToolsRun []string `json:"tools_run,omitempty"`

	// Elapsed is the wall-clock execution time, set by the dispatcher.
	Elapsed time.Duration `json:"elapsed,omitempty"`
}
