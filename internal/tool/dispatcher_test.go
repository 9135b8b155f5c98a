package tool

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTool struct {
	name        string
	description string
	category    string
	caps        []string
	mutates     []string
	score       float64
	execute     func(ctx context.Context, tc *Context) *Result
}

func (f *fakeTool) Name() string           { return f.name }
func (f *fakeTool) Description() string    { return f.description }
func (f *fakeTool) Category() string       { return f.category }
func (f *fakeTool) Capabilities() []string { return f.caps }
func (f *fakeTool) Mutates() []string      { return f.mutates }

func (f *fakeTool) CanHandle(request string, tc *Context) float64 {
	return f.score
}

func (f *fakeTool) Execute(ctx context.Context, tc *Context) *Result {
	if f.execute != nil {
		return f.execute(ctx, tc)
	}
	return &Result{Success: true, Output: f.name + " done"}
}

func newTestDispatcher(tools ...*fakeTool) (*Dispatcher, *Registry) {
	reg := NewRegistry(nil)
	for _, t := range tools {
		reg.Register(t)
	}
	return NewDispatcher(reg, nil), reg
}

func TestProcessNoToolMatched(t *testing.T) {
	d, _ := newTestDispatcher(
		&fakeTool{name: "a", score: 0.1},
		&fakeTool{name: "b", score: 0.29},
	)
	res := d.Process(context.Background(), NewContext("anything", ""), Options{})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "no tool matched" {
		t.Errorf("error = %q", res.Error)
	}
}

func TestProcessThresholdInclusive(t *testing.T) {
	d, _ := newTestDispatcher(&fakeTool{name: "edge", score: 0.3})
	res := d.Process(context.Background(), NewContext("x", ""), Options{})
	if !res.Success {
		t.Fatalf("tool at exactly the threshold should run: %+v", res)
	}
	if res.Tool != "edge" {
		t.Errorf("tool = %q", res.Tool)
	}
}

func TestProcessClearWinnerRunsAlone(t *testing.T) {
	var bRan atomic.Bool
	d, _ := newTestDispatcher(
		&fakeTool{name: "a", score: 0.9},
		&fakeTool{name: "b", score: 0.5, execute: func(ctx context.Context, tc *Context) *Result {
			bRan.Store(true)
			return &Result{Success: true}
		}},
	)
	res := d.Process(context.Background(), NewContext("x", ""), Options{})
	if res.Tool != "a" {
		t.Errorf("tool = %q, want a", res.Tool)
	}
	if bRan.Load() {
		t.Error("runner-up should not execute when the gap is >= 0.25")
	}
}

func TestProcessDeterministicTieBreak(t *testing.T) {
	d, _ := newTestDispatcher(
		&fakeTool{name: "zeta", description: "short", score: 0.8},
		&fakeTool{name: "alpha", description: "a much longer description", score: 0.8},
	)
	// Same score: shorter description wins regardless of name order.
	res := d.Process(context.Background(), NewContext("x", ""), Options{DisableCoordination: true})
	if res.Tool != "zeta" {
		t.Errorf("tool = %q, want zeta", res.Tool)
	}

	d2, _ := newTestDispatcher(
		&fakeTool{name: "beta", description: "same", score: 0.8},
		&fakeTool{name: "alpha", description: "kind", score: 0.8},
	)
	res = d2.Process(context.Background(), NewContext("x", ""), Options{DisableCoordination: true})
	if res.Tool != "alpha" {
		t.Errorf("tool = %q, want alpha (lexicographic)", res.Tool)
	}
}

func TestProcessAllowlist(t *testing.T) {
	d, _ := newTestDispatcher(
		&fakeTool{name: "best", score: 0.9},
		&fakeTool{name: "allowed", score: 0.5},
	)
	res := d.Process(context.Background(), NewContext("x", ""), Options{Allowed: []string{"allowed"}})
	if res.Tool != "allowed" {
		t.Errorf("tool = %q, want allowed", res.Tool)
	}
}

func TestCoordinatedParallelRun(t *testing.T) {
	// Close scores, disjoint capability/mutation sets: both run in parallel.
	a := &fakeTool{name: "search", score: 0.8, caps: []string{"search"},
		execute: func(ctx context.Context, tc *Context) *Result {
			return &Result{Success: true, Data: map[string]any{"message": "found it"},
				FilesCreated: []string{"a.txt"}}
		}}
	b := &fakeTool{name: "read", score: 0.7, caps: []string{"read"},
		execute: func(ctx context.Context, tc *Context) *Result {
			return &Result{Success: true, Data: map[string]any{"message": "read it"},
				FilesCreated: []string{"b.txt"}}
		}}
	d, _ := newTestDispatcher(a, b)

	res := d.Process(context.Background(), NewContext("x", ""), Options{})
	if !res.Success {
		t.Fatalf("coordinated run failed: %+v", res)
	}
	if len(res.ToolsRun) != 2 {
		t.Fatalf("tools run = %v", res.ToolsRun)
	}
	// Output preserves score order.
	if !strings.Contains(res.Output, "[search] found it") || !strings.Contains(res.Output, "[read] read it") {
		t.Errorf("output = %q", res.Output)
	}
	if strings.Index(res.Output, "[search]") > strings.Index(res.Output, "[read]") {
		t.Errorf("output order should follow score order: %q", res.Output)
	}
	if len(res.FilesCreated) != 2 {
		t.Errorf("files created = %v", res.FilesCreated)
	}
	coord, ok := res.Data["coordination_result"].(map[string]any)
	if !ok {
		t.Fatal("missing coordination_result")
	}
	perTool, ok := coord["tool_results"].(map[string]*Result)
	if !ok || len(perTool) != 2 {
		t.Fatalf("tool_results = %#v", coord["tool_results"])
	}
}

func TestCoordinatedSerialSharedState(t *testing.T) {
	// writer mutates "files" which reader's capabilities cover, so both go
	// serial; the reader must see the writer's data under its name.
	var sawShared atomic.Bool
	writer := &fakeTool{name: "writer", score: 0.8,
		caps: []string{"files"}, mutates: []string{"files"},
		execute: func(ctx context.Context, tc *Context) *Result {
			return &Result{Success: true, Data: map[string]any{"path": "out.txt"}}
		}}
	reader := &fakeTool{name: "verifier", score: 0.7,
		caps: []string{"files"}, mutates: []string{"files"},
		execute: func(ctx context.Context, tc *Context) *Result {
			if v, ok := tc.Shared("writer"); ok {
				if data, ok := v.(map[string]any); ok && data["path"] == "out.txt" {
					sawShared.Store(true)
				}
			}
			return &Result{Success: true}
		}}
	d, _ := newTestDispatcher(writer, reader)

	res := d.Process(context.Background(), NewContext("x", ""), Options{})
	if !res.Success {
		t.Fatalf("coordinated run failed: %+v", res)
	}
	if !sawShared.Load() {
		t.Error("serial tool did not receive prior tool's data in shared state")
	}
}

func TestCoordinatedPartialFailure(t *testing.T) {
	ok := &fakeTool{name: "ok", score: 0.8, caps: []string{"a"}}
	bad := &fakeTool{name: "bad", score: 0.7, caps: []string{"b"},
		execute: func(ctx context.Context, tc *Context) *Result {
			return &Result{Success: false, Error: "broke"}
		}}
	d, _ := newTestDispatcher(ok, bad)

	res := d.Process(context.Background(), NewContext("x", ""), Options{})
	if res.Success {
		t.Fatal("coordinated result should fail when any sub-tool fails")
	}
	if !strings.Contains(res.Error, "bad") {
		t.Errorf("error should name the failed tool: %q", res.Error)
	}
	coord := res.Data["coordination_result"].(map[string]any)
	perTool := coord["tool_results"].(map[string]*Result)
	if !perTool["ok"].Success {
		t.Error("partial success should be preserved")
	}
}

func TestPanicContainment(t *testing.T) {
	boom := &fakeTool{name: "boom", score: 0.8, caps: []string{"a"},
		execute: func(ctx context.Context, tc *Context) *Result {
			panic("kaboom")
		}}
	calm := &fakeTool{name: "calm", score: 0.7, caps: []string{"b"}}
	d, _ := newTestDispatcher(boom, calm)

	res := d.Process(context.Background(), NewContext("x", ""), Options{})
	if res.Success {
		t.Fatal("expected coordinated failure")
	}
	coord := res.Data["coordination_result"].(map[string]any)
	perTool := coord["tool_results"].(map[string]*Result)
	if !strings.Contains(perTool["boom"].Error, "panicked") {
		t.Errorf("boom error = %q", perTool["boom"].Error)
	}
	if !perTool["calm"].Success {
		t.Error("sibling tool should survive a panic")
	}
}

func TestToolTimeout(t *testing.T) {
	slow := &fakeTool{name: "slow", score: 0.8,
		execute: func(ctx context.Context, tc *Context) *Result {
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			return &Result{Success: true}
		}}
	d, _ := newTestDispatcher(slow)

	start := time.Now()
	res := d.Process(context.Background(), NewContext("x", ""),
		Options{ToolTimeout: 50 * time.Millisecond})
	if time.Since(start) > time.Second {
		t.Fatal("dispatcher did not honour the tool timeout")
	}
	if res.Success || !res.TimedOut {
		t.Errorf("expected timed-out failure, got %+v", res)
	}
}

func TestRegistryIndexesAndStats(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(&fakeTool{name: "grep", category: "search", caps: []string{"search", "files"}})
	reg.Register(&fakeTool{name: "write", category: "files", caps: []string{"files"}, mutates: []string{"files"}})

	if got := reg.Get("grep"); got == nil || got.Name() != "grep" {
		t.Fatalf("get grep = %v", got)
	}
	if tools := reg.ByCategory("search"); len(tools) != 1 {
		t.Errorf("by category = %d tools", len(tools))
	}
	if tools := reg.ByCapability("files"); len(tools) != 2 {
		t.Errorf("by capability = %d tools", len(tools))
	}

	stats := reg.Stats()
	if stats.Count != 2 {
		t.Errorf("count = %d", stats.Count)
	}
	if len(stats.Categories) != 2 || len(stats.Capabilities) != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRegistryDuplicateReplaces(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(&fakeTool{name: "dup", category: "old", caps: []string{"old"}})
	reg.Register(&fakeTool{name: "dup", category: "new", caps: []string{"new"}})

	if stats := reg.Stats(); stats.Count != 1 {
		t.Fatalf("count = %d, want 1", stats.Count)
	}
	if tools := reg.ByCategory("old"); len(tools) != 0 {
		t.Error("stale category index entry survived replacement")
	}
	if tools := reg.ByCapability("new"); len(tools) != 1 {
		t.Error("replacement not indexed")
	}
}

func TestCoerceMessageOrder(t *testing.T) {
	res := &Result{Data: map[string]any{"message": "m", "response": "r", "output": "o"}, Output: "raw"}
	if got := coerceMessage(res); got != "m" {
		t.Errorf("got %q, want data.message first", got)
	}
	delete(res.Data, "message")
	if got := coerceMessage(res); got != "r" {
		t.Errorf("got %q, want data.response", got)
	}
	delete(res.Data, "response")
	if got := coerceMessage(res); got != "o" {
		t.Errorf("got %q, want data.output", got)
	}
	delete(res.Data, "output")
	if got := coerceMessage(res); got != "raw" {
		t.Errorf("got %q, want result output", got)
	}
	res.Output = ""
	if got := coerceMessage(&Result{}); got != "completed" {
		t.Errorf("got %q, want generic completion marker", got)
	}
}
