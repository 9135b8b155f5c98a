package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestMemory(t *testing.T) *SessionMemory {
	t.Helper()
	dir := t.TempDir()
	return New(Config{
		SessionID:   "test-session",
		ArchiveDir:  filepath.Join(dir, "archive"),
		SnapshotDir: filepath.Join(dir, "snapshots"),
	})
}

func TestStartAndUpdate(t *testing.T) {
	m := newTestMemory(t)
	if err := m.Start("build a calculator API in Go", ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start("another task", ""); err != ErrActiveContext {
		t.Errorf("second start = %v, want ErrActiveContext", err)
	}

	c := m.Context()
	if c.OriginalTask != "build a calculator API in Go" {
		t.Errorf("original task = %q", c.OriginalTask)
	}
	if !c.HasKeyword("calculator") || !c.HasKeyword("api") || !c.HasKeyword("go") {
		t.Errorf("keywords = %v", c.ContextKeywords)
	}

	err := m.ApplyUpdate(Update{
		Iteration:    1,
		LastResult:   "created add endpoint",
		NewPending:   []string{"add subtraction", "add tests"},
		NewCompleted: []string{"design the api"},
		FilesCreated: []string{"calc.go"},
		ToolsUsed:    []string{"file_writer"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	c = m.Context()
	if c.IterationCount != 1 {
		t.Errorf("iteration count = %d", c.IterationCount)
	}
	if len(c.PendingSteps) != 2 || len(c.CompletedSteps) != 1 {
		t.Errorf("steps = pending %v completed %v", c.PendingSteps, c.CompletedSteps)
	}
}

func TestUpdateMovesStepToCompleted(t *testing.T) {
	m := newTestMemory(t)
	if err := m.Start("task", ""); err != nil {
		t.Fatal(err)
	}
	m.ApplyUpdate(Update{Iteration: 1, NewPending: []string{"step one", "step two"}})
	m.ApplyUpdate(Update{Iteration: 2, NewCompleted: []string{"step one"}})

	c := m.Context()
	if len(c.PendingSteps) != 1 || c.PendingSteps[0] != "step two" {
		t.Errorf("pending = %v", c.PendingSteps)
	}
	if len(c.CompletedSteps) != 1 || c.CompletedSteps[0] != "step one" {
		t.Errorf("completed = %v", c.CompletedSteps)
	}
	// Re-completing and re-pending the same step must not duplicate it.
	m.ApplyUpdate(Update{Iteration: 3, NewCompleted: []string{"step one"}, NewPending: []string{"step one"}})
	c = m.Context()
	if len(c.CompletedSteps) != 1 || len(c.PendingSteps) != 1 {
		t.Errorf("steps duplicated: pending %v completed %v", c.PendingSteps, c.CompletedSteps)
	}
}

func TestIsRelatedContinuationTokens(t *testing.T) {
	m := newTestMemory(t)
	m.Start("build a web scraper in Python", "")

	for _, req := range []string{
		"continue",
		"keep going please",
		"what's the status",
		"proceed with it",
	} {
		if !m.IsRelated(req) {
			t.Errorf("%q should be related via continuation token", req)
		}
	}
}

func TestIsRelatedKeywordOverlap(t *testing.T) {
	m := newTestMemory(t)
	m.Start("build a calculator API in Go", "")

	// Specific domain token overlap.
	if !m.IsRelated("make the calculator support division") {
		t.Error("specific token overlap should relate")
	}
	// Two-token overlap.
	if !m.IsRelated("add an api endpoint in go") {
		t.Error("two overlapping tokens should relate")
	}
	// Unrelated request.
	if m.IsRelated("what's the weather like in Paris") {
		t.Error("unrelated request should not relate")
	}
}

func TestIsRelatedGenericOnlyOverlap(t *testing.T) {
	m := newTestMemory(t)
	m.Start("create a simple function", "")

	// Overlap is only the generic token "function": not related on its own.
	if m.IsRelated("function") {
		t.Error("single generic token should not relate")
	}
	// Task-continuation phrase naming a domain noun rescues it.
	m2 := newTestMemory(t)
	m2.Start("build the basic Widget module", "")
	if !m2.IsRelated("polish the widget, basic version first") {
		t.Error("task-continuation phrase should relate")
	}
}

func TestIsRelatedFileAndToolMentions(t *testing.T) {
	m := newTestMemory(t)
	m.Start("do a thing", "")
	m.ApplyUpdate(Update{
		Iteration:    1,
		FilesCreated: []string{"scraper.py"},
		ToolsUsed:    []string{"browser_fetch"},
	})

	if !m.IsRelated("open scraper.py again") {
		t.Error("file mention should relate")
	}
	if !m.IsRelated("run browser_fetch once more") {
		t.Error("tool mention should relate")
	}
}

func TestIsRelatedNoContext(t *testing.T) {
	m := newTestMemory(t)
	if m.IsRelated("continue") {
		t.Error("no context: nothing can be related")
	}
}

func TestShouldContinuePendingSteps(t *testing.T) {
	m := newTestMemory(t)
	m.Start("some long task", "")
	m.ApplyUpdate(Update{Iteration: 1, NewPending: []string{"finish part two"}})

	if !m.ShouldContinue("completely unrelated words about weather") {
		t.Error("fresh context with pending steps should continue")
	}

	m.ApplyUpdate(Update{Iteration: 2, NewCompleted: []string{"finish part two"}, LastEvaluation: "SUCCESS achieved"})
	if m.ShouldContinue("completely unrelated words about weather") {
		t.Error("complete context should not continue on unrelated request")
	}
}

func TestCompleteHeuristic(t *testing.T) {
	m := newTestMemory(t)
	m.Start("task", "")
	if m.IsComplete() {
		t.Error("fresh context is not complete")
	}
	m.ApplyUpdate(Update{Iteration: 1, NewCompleted: []string{"only step"}, LastEvaluation: "Success: looks good"})
	if !m.IsComplete() {
		t.Error("no pending, one completed, success evaluation: complete")
	}
}

func TestEndArchivesAndClears(t *testing.T) {
	dir := t.TempDir()
	m := New(Config{
		SessionID:   "s1",
		ArchiveDir:  filepath.Join(dir, "archive"),
		SnapshotDir: filepath.Join(dir, "snapshots"),
	})
	m.Start("task to archive", "")
	if err := m.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if m.Context() != nil {
		t.Error("context should be cleared after end")
	}

	archives, err := ListArchives(filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatalf("list archives: %v", err)
	}
	if len(archives) != 1 {
		t.Fatalf("archives = %v", archives)
	}
	if _, err := os.Stat(filepath.Join(dir, "snapshots", "s1.json")); !os.IsNotExist(err) {
		t.Error("snapshot should be removed after end")
	}
}

func TestSnapshotLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		SessionID:   "s2",
		ArchiveDir:  filepath.Join(dir, "archive"),
		SnapshotDir: filepath.Join(dir, "snapshots"),
	}
	m := New(cfg)
	m.Start("resumable task", "")
	m.ApplyUpdate(Update{Iteration: 3, NewPending: []string{"next part"}})

	// Fresh memory, same session: load restores the live context.
	m2 := New(cfg)
	ok, err := m2.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("expected snapshot to load")
	}
	c := m2.Context()
	if c.IterationCount != 3 || len(c.PendingSteps) != 1 {
		t.Errorf("restored context = %+v", c)
	}

	// Unknown session loads nothing.
	m3 := New(Config{SessionID: "other", ArchiveDir: cfg.ArchiveDir, SnapshotDir: cfg.SnapshotDir})
	ok, err = m3.Load()
	if err != nil || ok {
		t.Errorf("load for other session = %v, %v", ok, err)
	}
}

func TestStaleContextReplacedOnStart(t *testing.T) {
	dir := t.TempDir()
	m := New(Config{
		SessionID:     "s3",
		ArchiveDir:    filepath.Join(dir, "archive"),
		SnapshotDir:   filepath.Join(dir, "snapshots"),
		IdleThreshold: 10 * time.Millisecond,
	})
	m.Start("old task", "")
	time.Sleep(30 * time.Millisecond)

	if !m.IsStale() {
		t.Fatal("context should be stale")
	}
	if err := m.Start("new task", ""); err != nil {
		t.Fatalf("start over stale context: %v", err)
	}
	if got := m.Context().OriginalTask; got != "new task" {
		t.Errorf("original task = %q", got)
	}
	archives, _ := ListArchives(filepath.Join(dir, "archive"))
	if len(archives) != 1 {
		t.Errorf("stale context should be archived, got %v", archives)
	}
}

func TestPauseResume(t *testing.T) {
	m := newTestMemory(t)
	m.Start("task", "")
	m.Pause()
	if !m.Paused() {
		t.Error("pause flag not set")
	}
	m.Resume()
	if m.Paused() {
		t.Error("resume did not clear the flag")
	}
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("Build a calculator API with Django, then test it")
	want := map[string]bool{"build": true, "calculator": true, "api": true, "django": true, "test": true}
	for _, k := range got {
		if !want[k] {
			t.Errorf("unexpected keyword %q", k)
		}
		delete(want, k)
	}
	if len(want) != 0 {
		t.Errorf("missing keywords: %v (got %v)", want, got)
	}

	// Short and non-vocabulary lowercase tokens are dropped.
	got = ExtractKeywords("a an it some random words")
	if len(got) != 0 {
		t.Errorf("expected no keywords, got %v", got)
	}
}
