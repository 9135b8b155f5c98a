package main

import (
	"context"
	"strings"

	"github.com/sable-dev/sable/internal/provider"
	"github.com/sable-dev/sable/internal/tool"
)

// responderTool is the reference tool shipped with the CLI. It forwards the
// request to the provider pool and returns the completion text, so the binary
// is usable before any domain tools are registered. Its score sits at the
// dispatch threshold, so registered domain tools outrank it.
type responderTool struct{}

func newResponderTool() tool.Tool {
	return responderTool{}
}

func (responderTool) Name() string           { return "responder" }
func (responderTool) Description() string    { return "Answers a request with a model completion" }
func (responderTool) Category() string       { return "general" }
func (responderTool) Capabilities() []string { return []string{"text"} }
func (responderTool) Mutates() []string      { return nil }

func (responderTool) CanHandle(request string, tc *tool.Context) float64 {
	if strings.TrimSpace(request) == "" {
		return 0
	}
	return 0.3
}

func (responderTool) Execute(ctx context.Context, tc *tool.Context) *tool.Result {
	if tc.Provider == nil {
		return &tool.Result{Success: false, Error: "no provider configured"}
	}
	text, err := tc.Provider.Ask(ctx, &provider.AskRequest{Prompt: tc.Request})
	if err != nil {
		return &tool.Result{Success: false, Error: err.Error()}
	}
	return &tool.Result{
		Success: true,
		Output:  text,
		Data:    map[string]any{"response": text},
	}
}
