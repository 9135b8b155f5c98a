// Package memory holds the per-session agentic context: what the task was,
// what has been done, and whether a new request continues it.
package memory

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sable-dev/sable/pkg/models"
)

// DefaultIdleThreshold is how long a context may sit untouched before it is
// considered stale.
const DefaultIdleThreshold = 30 * time.Minute

// ErrActiveContext is returned by Start when a live context exists and the
// caller did not ask for replacement.
var ErrActiveContext = errors.New("memory: session already has an active context")

// ErrNoContext is returned by operations that require a live context.
var ErrNoContext = errors.New("memory: no active context")

// Config configures a SessionMemory.
type Config struct {
	// SessionID identifies the owning session.
	SessionID string

	// ArchiveDir is the append-only store for ended contexts.
	// Default: "<data>/archive".
	ArchiveDir string

	// SnapshotDir holds the live-context snapshot, one file per session.
	// Default: "<data>/snapshots".
	SnapshotDir string

	// IdleThreshold is the staleness cutoff. Default: 30 minutes.
	IdleThreshold time.Duration

	// Logger is the structured logger. Default: slog.Default().
	Logger *slog.Logger
}

func (c Config) sanitized() Config {
	base := filepath.Join(os.TempDir(), "sable")
	if c.ArchiveDir == "" {
		c.ArchiveDir = filepath.Join(base, "archive")
	}
	if c.SnapshotDir == "" {
		c.SnapshotDir = filepath.Join(base, "snapshots")
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = DefaultIdleThreshold
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// SessionMemory owns at most one live AgenticContext for its session. All
// mutation goes through its methods; callers only ever see clones.
type SessionMemory struct {
	mu  sync.Mutex
	cfg Config

	ctx       *models.AgenticContext
	paused    bool
	completed bool
}

// New creates a SessionMemory for the configured session.
func New(cfg Config) *SessionMemory {
	return &SessionMemory{cfg: cfg.sanitized()}
}

// Update carries one iteration's outcome into the context.
type Update struct {
	// Iteration is the loop pass number just finished.
	Iteration int

	// LastResult is the execution result text.
	LastResult string

	// LastEvaluation is the evaluator feedback.
	LastEvaluation string

	// Objective replaces the current objective when non-empty.
	Objective string

	// NewCompleted moves these steps from pending to completed.
	NewCompleted []string

	// NewPending adds steps not yet completed.
	NewPending []string

	// FilesCreated, FilesModified, ToolsUsed grow the respective sets.
	FilesCreated  []string
	FilesModified []string
	ToolsUsed     []string
}

// Start creates a fresh context for the task. Fails with ErrActiveContext if
// a live, non-stale context exists; a stale one is archived and replaced.
func (m *SessionMemory) Start(task, objective string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		if !m.staleLocked() {
			return ErrActiveContext
		}
		m.archiveLocked("stale")
	}
	m.startLocked(task, objective)
	return nil
}

// Replace archives any live context, then starts a fresh one.
func (m *SessionMemory) Replace(task, objective string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		m.archiveLocked("replaced")
	}
	m.startLocked(task, objective)
}

func (m *SessionMemory) startLocked(task, objective string) {
	now := time.Now()
	if objective == "" {
		objective = task
	}
	m.ctx = &models.AgenticContext{
		SessionID:        m.cfg.SessionID,
		StartedAt:        now,
		LastActivity:     now,
		OriginalTask:     task,
		CurrentObjective: objective,
		ContextKeywords:  ExtractKeywords(task),
	}
	m.paused = false
	m.completed = false
	m.snapshotLocked()
}

// ApplyUpdate merges one iteration's outcome. The merge is monotone: steps
// move from pending to completed, never back; keyword, file, and tool
// collections only grow.
func (m *SessionMemory) ApplyUpdate(u Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return ErrNoContext
	}
	c := m.ctx

	if u.Iteration > c.IterationCount {
		c.IterationCount = u.Iteration
	}
	if u.LastResult != "" {
		c.LastResult = u.LastResult
		c.ContextKeywords = unionGrow(c.ContextKeywords, ExtractKeywords(u.LastResult))
	}
	if u.LastEvaluation != "" {
		c.LastEvaluation = u.LastEvaluation
	}
	if u.Objective != "" {
		c.CurrentObjective = u.Objective
	}

	for _, step := range u.NewCompleted {
		c.PendingSteps = removeStep(c.PendingSteps, step)
		if !containsString(c.CompletedSteps, step) {
			c.CompletedSteps = append(c.CompletedSteps, step)
		}
		c.ContextKeywords = unionGrow(c.ContextKeywords, ExtractKeywords(step))
	}
	for _, step := range u.NewPending {
		if containsString(c.CompletedSteps, step) || containsString(c.PendingSteps, step) {
			continue
		}
		c.PendingSteps = append(c.PendingSteps, step)
		c.ContextKeywords = unionGrow(c.ContextKeywords, ExtractKeywords(step))
	}

	c.FilesCreated = unionGrow(c.FilesCreated, u.FilesCreated)
	c.FilesModified = unionGrow(c.FilesModified, u.FilesModified)
	c.ToolsUsed = append(c.ToolsUsed, u.ToolsUsed...)

	c.LastActivity = time.Now()
	m.snapshotLocked()
	return nil
}

// IsRelated decides whether a free-form request continues the active context.
func (m *SessionMemory) IsRelated(request string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return false
	}
	if hasContinuationToken(request) {
		return true
	}

	c := m.ctx
	requestKeywords := ExtractKeywords(request)
	var overlap []string
	for _, k := range requestKeywords {
		if c.HasKeyword(k) {
			overlap = append(overlap, k)
		}
	}

	createdNames := fileBaseNames(c.FilesCreated)
	for _, k := range overlap {
		if !isGeneric(k) || createdNames[k] {
			return true
		}
	}
	if len(overlap) >= 2 {
		return true
	}
	if len(overlap) > 0 {
		// All generic, fewer than two: only a task-continuation phrase
		// naming a known domain noun keeps the thread.
		lower := strings.ToLower(request)
		for _, k := range c.ContextKeywords {
			if !isGeneric(k) && strings.Contains(lower, "the "+k) {
				return true
			}
		}
		return false
	}

	lower := strings.ToLower(request)
	for _, f := range append(append([]string(nil), c.FilesCreated...), c.FilesModified...) {
		if f != "" && strings.Contains(lower, strings.ToLower(f)) {
			return true
		}
	}
	for _, tool := range c.ToolsUsed {
		if tool != "" && strings.Contains(lower, strings.ToLower(tool)) {
			return true
		}
	}
	return false
}

// ShouldContinue reports whether the request should resume the active task:
// either it is related, or an unfinished, fresh context still has pending
// steps.
func (m *SessionMemory) ShouldContinue(request string) bool {
	if m.IsRelated(request) {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx != nil &&
		!m.staleLocked() &&
		!m.completeLocked() &&
		len(m.ctx.PendingSteps) > 0
}

// Complete marks the task terminal with its final result text.
func (m *SessionMemory) Complete(finalResult string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return ErrNoContext
	}
	if finalResult != "" {
		m.ctx.LastResult = finalResult
	}
	m.ctx.LastActivity = time.Now()
	m.completed = true
	m.snapshotLocked()
	return nil
}

// Pause suspends the context in memory without archiving.
func (m *SessionMemory) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// Resume lifts a pause.
func (m *SessionMemory) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

// Paused reports the pause flag.
func (m *SessionMemory) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// End archives the live context to durable storage and clears it.
func (m *SessionMemory) End() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return ErrNoContext
	}
	m.archiveLocked("ended")
	m.ctx = nil
	m.paused = false
	m.completed = false
	os.Remove(snapshotPath(m.cfg.SnapshotDir, m.cfg.SessionID))
	return nil
}

// Context returns a clone of the live context, or nil.
func (m *SessionMemory) Context() *models.AgenticContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx.Clone()
}

// IsComplete reports whether the task is done, either explicitly or by the
// completion heuristic: nothing pending, something completed, and the last
// evaluation mentions success.
func (m *SessionMemory) IsComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeLocked()
}

func (m *SessionMemory) completeLocked() bool {
	if m.completed {
		return true
	}
	c := m.ctx
	if c == nil {
		return false
	}
	return len(c.PendingSteps) == 0 &&
		len(c.CompletedSteps) > 0 &&
		strings.Contains(strings.ToLower(c.LastEvaluation), "success")
}

// IsStale reports whether the context has sat idle past the threshold.
func (m *SessionMemory) IsStale() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx != nil && m.staleLocked()
}

func (m *SessionMemory) staleLocked() bool {
	return time.Since(m.ctx.LastActivity) > m.cfg.IdleThreshold
}

// Load restores the session's context from a recent snapshot. A snapshot
// older than the idle threshold is ignored.
func (m *SessionMemory) Load() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return false, ErrActiveContext
	}
	ac, err := readSnapshot(m.cfg.SnapshotDir, m.cfg.SessionID)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if ac.SessionID != m.cfg.SessionID {
		return false, nil
	}
	if time.Since(ac.LastActivity) > m.cfg.IdleThreshold {
		return false, nil
	}
	m.ctx = ac
	m.paused = false
	m.completed = false
	return true, nil
}

// archiveLocked writes the context to the append-only archive dir. Archive
// failures are logged, not fatal: losing history must not break the session.
func (m *SessionMemory) archiveLocked(reason string) {
	if m.ctx == nil {
		return
	}
	path := archivePath(m.cfg.ArchiveDir, m.cfg.SessionID, time.Now())
	if err := writeJSONAtomic(path, m.ctx); err != nil {
		m.cfg.Logger.Warn("context archive failed",
			"session", m.cfg.SessionID, "reason", reason, "error", err)
		return
	}
	m.cfg.Logger.Debug("context archived",
		"session", m.cfg.SessionID, "reason", reason, "path", path)
}

func (m *SessionMemory) snapshotLocked() {
	if m.ctx == nil {
		return
	}
	path := snapshotPath(m.cfg.SnapshotDir, m.cfg.SessionID)
	if err := writeJSONAtomic(path, m.ctx); err != nil {
		m.cfg.Logger.Warn("context snapshot failed",
			"session", m.cfg.SessionID, "error", err)
	}
}

func fileBaseNames(paths []string) map[string]bool {
	out := make(map[string]bool, len(paths))
	for _, p := range paths {
		base := filepath.Base(p)
		if i := strings.IndexByte(base, '.'); i > 0 {
			base = base[:i]
		}
		out[strings.ToLower(base)] = true
	}
	return out
}

func unionGrow(dst, src []string) []string {
	for _, s := range src {
		if s != "" && !containsString(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

func removeStep(steps []string, target string) []string {
	out := steps[:0]
	for _, s := range steps {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
