package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sable-dev/sable/internal/events"
	"github.com/sable-dev/sable/internal/memory"
	"github.com/sable-dev/sable/internal/tool"
	"github.com/sable-dev/sable/pkg/models"
)

type stubRunner struct {
	mu   sync.Mutex
	reqs []models.Request
	out  *models.RunResult
}

func (r *stubRunner) Run(ctx context.Context, req models.Request) *models.RunResult {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	if r.out != nil {
		return r.out
	}
	return &models.RunResult{
		Task:    req.Task,
		Mode:    models.ModeAgentic,
		Status:  models.StatusSuccess,
		Success: true,
		FinalResult: &models.ExecutionResult{
			Success: true, Output: "done",
		},
	}
}

type stubDispatcher struct {
	mu    sync.Mutex
	calls int
	out   *tool.Result
}

func (d *stubDispatcher) Process(ctx context.Context, tc *tool.Context, opts tool.Options) *tool.Result {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.out != nil {
		return d.out
	}
	return &tool.Result{Success: true, Output: "listed"}
}

func newTestMemory(t *testing.T) *memory.SessionMemory {
	t.Helper()
	dir := t.TempDir()
	return memory.New(memory.Config{
		SessionID:   "orch-test",
		ArchiveDir:  filepath.Join(dir, "archive"),
		SnapshotDir: filepath.Join(dir, "snapshots"),
	})
}

func TestClassifyAgentic(t *testing.T) {
	agentic := []string{
		"debug the flaky login test",
		"refactor the parser to use a streaming tokenizer",
		"figure out why the cache misses spike at noon",
		"analyze the request latency step by step",
		"write the schema, then generate the migration",
		"please create a small command line utility that converts csv files to json",
	}
	for _, task := range agentic {
		if !classifyAgentic(task) {
			t.Errorf("%q should be agentic", task)
		}
	}

	direct := []string{
		"list files",
		"show status",
		"list files in src",
		"what time is it",
		"read config.yaml",
	}
	for _, task := range direct {
		if classifyAgentic(task) {
			t.Errorf("%q should be direct", task)
		}
	}
}

func TestClassifierWordBoundary(t *testing.T) {
	if classifyAgentic("fly the airplane") {
		t.Error("\"plan\" must not match inside another word")
	}
	if !classifyAgentic("plan the rollout") {
		t.Error("\"plan\" as a word must match")
	}
}

func TestHandleTurnEmptyRequest(t *testing.T) {
	runner := &stubRunner{}
	disp := &stubDispatcher{}
	var emitted []models.Event
	sink := events.NewCallbackSink(func(ctx context.Context, e models.Event) {
		emitted = append(emitted, e)
	})
	o := New(Config{SessionID: "orch-test"}, runner, disp, nil, sink)

	result := o.HandleTurn(context.Background(), models.Request{Task: "   "})

	if result.Status != models.StatusFailed || result.Error != "no tool matched" {
		t.Fatalf("result = %+v", result)
	}
	if result.Mode != models.ModeDirect {
		t.Errorf("mode = %s", result.Mode)
	}
	if len(runner.reqs) != 0 {
		t.Error("engine must not run for an empty request")
	}
	if disp.calls != 0 {
		t.Error("dispatcher must not run for an empty request")
	}
	if len(emitted) != 1 || emitted[0].Type != models.EventTaskFailed {
		t.Errorf("emitted = %+v", emitted)
	}
}

func TestHandleTurnDirect(t *testing.T) {
	runner := &stubRunner{}
	disp := &stubDispatcher{out: &tool.Result{
		Success:  true,
		Output:   "3 files",
		ToolsRun: []string{"file_lister"},
	}}
	var emitted []models.Event
	sink := events.NewCallbackSink(func(ctx context.Context, e models.Event) {
		emitted = append(emitted, e)
	})
	o := New(Config{SessionID: "orch-test"}, runner, disp, nil, sink)

	result := o.HandleTurn(context.Background(), models.Request{Task: "list files"})

	if !result.Success || result.Mode != models.ModeDirect {
		t.Fatalf("result = %+v", result)
	}
	if result.FinalResult == nil || result.FinalResult.Output != "3 files" {
		t.Errorf("final = %+v", result.FinalResult)
	}
	if len(result.Iterations) != 0 {
		t.Errorf("direct turns have no iterations, got %d", len(result.Iterations))
	}
	if len(runner.reqs) != 0 {
		t.Error("engine must not run for a direct turn")
	}
	if len(emitted) != 1 || emitted[0].Type != models.EventTaskSucceeded {
		t.Errorf("emitted = %+v", emitted)
	}
}

func TestHandleTurnDirectFailure(t *testing.T) {
	disp := &stubDispatcher{out: &tool.Result{Success: false, Error: "no tool matched"}}
	o := New(Config{}, &stubRunner{}, disp, nil, nil)

	result := o.HandleTurn(context.Background(), models.Request{Task: "show status"})

	if result.Success || result.Status != models.StatusFailed {
		t.Fatalf("result = %+v", result)
	}
	if result.FinalResult != nil {
		t.Error("failed direct turn must not carry a final result")
	}
}

func TestHandleTurnAgenticAppliesDefaultCap(t *testing.T) {
	runner := &stubRunner{}
	o := New(Config{}, runner, &stubDispatcher{}, nil, nil)

	o.HandleTurn(context.Background(), models.Request{
		Task: "debug why the importer drops rows",
	})

	if len(runner.reqs) != 1 {
		t.Fatalf("engine runs = %d", len(runner.reqs))
	}
	if runner.reqs[0].MaxIterations != DefaultMaxIterations {
		t.Errorf("cap = %d, want %d", runner.reqs[0].MaxIterations, DefaultMaxIterations)
	}
}

func TestHandleTurnAgenticKeepsExplicitCap(t *testing.T) {
	runner := &stubRunner{}
	o := New(Config{}, runner, &stubDispatcher{}, nil, nil)

	o.HandleTurn(context.Background(), models.Request{
		Task:          "refactor the session store",
		MaxIterations: 3,
	})

	if runner.reqs[0].MaxIterations != 3 {
		t.Errorf("cap = %d, want 3", runner.reqs[0].MaxIterations)
	}
}

func TestHandleTurnSessionContinuation(t *testing.T) {
	sess := newTestMemory(t)
	if err := sess.Start("build a calculator with add and subtract", ""); err != nil {
		t.Fatal(err)
	}
	if err := sess.ApplyUpdate(memory.Update{
		Iteration:    1,
		NewCompleted: []string{"write calculator.py with add and subtract"},
		FilesCreated: []string{"calculator.py"},
		ToolsUsed:    []string{"file_writer"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := sess.Complete("calculator created"); err != nil {
		t.Fatal(err)
	}

	runner := &stubRunner{}
	o := New(Config{SessionID: "orch-test"}, runner, &stubDispatcher{}, sess, nil)

	result := o.HandleTurn(context.Background(), models.Request{Task: "now add multiply"})

	if result.Mode != models.ModeAgentic {
		t.Fatalf("mode = %s", result.Mode)
	}
	if len(runner.reqs) != 1 {
		t.Fatalf("engine runs = %d", len(runner.reqs))
	}
	objective := runner.reqs[0].Task
	if !strings.Contains(objective, "calculator") {
		t.Errorf("objective must carry the session's task: %q", objective)
	}
	if !strings.Contains(objective, "now add multiply") {
		t.Errorf("objective must carry the new request: %q", objective)
	}
}

func TestHandleTurnUnrelatedRequestStartsFresh(t *testing.T) {
	sess := newTestMemory(t)
	if err := sess.Start("build a calculator with add and subtract", ""); err != nil {
		t.Fatal(err)
	}
	if err := sess.Complete("done"); err != nil {
		t.Fatal(err)
	}

	runner := &stubRunner{}
	disp := &stubDispatcher{}
	o := New(Config{}, runner, disp, sess, nil)

	o.HandleTurn(context.Background(), models.Request{Task: "list files"})

	if len(runner.reqs) != 0 {
		t.Error("unrelated lookup must not reuse the session objective")
	}
	if disp.calls != 1 {
		t.Errorf("dispatcher calls = %d", disp.calls)
	}
}
