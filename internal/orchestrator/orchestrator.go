// Package orchestrator is the per-turn entry point. It decides whether a
// request continues the active session, warrants the full iteration loop, or
// can be answered with a single tool dispatch.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sable-dev/sable/internal/events"
	"github.com/sable-dev/sable/internal/tool"
	"github.com/sable-dev/sable/pkg/models"
)

// DefaultMaxIterations is the iteration cap applied to agentic turns that do
// not set one.
const DefaultMaxIterations = 10

// Runner executes the agentic loop for one request.
type Runner interface {
	Run(ctx context.Context, req models.Request) *models.RunResult
}

// Dispatcher handles a single-shot tool call.
type Dispatcher interface {
	Process(ctx context.Context, tc *tool.Context, opts tool.Options) *tool.Result
}

// Session is the continuation surface of session memory.
type Session interface {
	ShouldContinue(request string) bool
	Context() *models.AgenticContext
}

// Config configures an Orchestrator.
type Config struct {
	// SessionID stamps events emitted on the direct path.
	SessionID string

	// WorkDir is the working path handed to tools on the direct path.
	WorkDir string

	// MaxIterations is the cap for agentic turns. Default: DefaultMaxIterations.
	MaxIterations int

	// TurnTimeout bounds a whole turn. Zero means no turn-level deadline.
	TurnTimeout time.Duration

	// Registry is the tool registry for direct dispatches.
	Registry *tool.Registry

	// ToolLLM is the completion handle tools may use. Optional.
	ToolLLM tool.LLM

	// ToolOptions is the base dispatch configuration for direct turns; the
	// request's allowlist is applied on top.
	ToolOptions tool.Options

	// Logger is the structured logger. Default: slog.Default().
	Logger *slog.Logger
}

// Orchestrator wires the engine, dispatcher, session memory, and event sink
// into a turn handler.
type Orchestrator struct {
	cfg        Config
	engine     Runner
	dispatcher Dispatcher
	session    Session
	sink       events.Sink
}

// New creates an Orchestrator. engine and dispatcher are required; session
// and sink may be nil.
func New(cfg Config, engine Runner, dispatcher Dispatcher, session Session, sink events.Sink) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		cfg:        cfg,
		engine:     engine,
		dispatcher: dispatcher,
		session:    session,
		sink:       sink,
	}
}

// HandleTurn processes one user turn and returns its terminal RunResult.
// The engine emits its own event stream on agentic turns; direct turns get a
// single terminal event from here.
func (o *Orchestrator) HandleTurn(ctx context.Context, req models.Request) *models.RunResult {
	task := strings.TrimSpace(req.Task)
	if task == "" {
		result := &models.RunResult{
			Task:       req.Task,
			Mode:       models.ModeDirect,
			Status:     models.StatusFailed,
			Iterations: []models.IterationRecord{},
			Error:      "no tool matched",
		}
		o.emitTerminal(ctx, result)
		return result
	}
	req.Task = task

	if o.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.TurnTimeout)
		defer cancel()
	}

	if o.session != nil && o.session.ShouldContinue(task) {
		req.Task = o.continuationObjective(task)
		o.cfg.Logger.Info("continuing active session",
			"session", o.cfg.SessionID, "objective", req.Task)
		return o.runAgentic(ctx, req)
	}

	if classifyAgentic(task) {
		return o.runAgentic(ctx, req)
	}
	return o.runDirect(ctx, req)
}

// continuationObjective folds the new request into the session's refined
// objective so the engine sees the task's history, not just the latest turn.
func (o *Orchestrator) continuationObjective(task string) string {
	c := o.session.Context()
	if c == nil {
		return task
	}
	objective := c.CurrentObjective
	if objective == "" {
		objective = c.OriginalTask
	}
	if objective == "" || objective == task {
		return task
	}
	return objective + " | " + task
}

func (o *Orchestrator) runAgentic(ctx context.Context, req models.Request) *models.RunResult {
	if req.MaxIterations <= 0 {
		req.MaxIterations = o.cfg.MaxIterations
	}
	return o.engine.Run(ctx, req)
}

// runDirect answers the request with one dispatcher call, no provider
// involvement.
func (o *Orchestrator) runDirect(ctx context.Context, req models.Request) *models.RunResult {
	start := time.Now()

	tc := tool.NewContext(req.Task, o.cfg.WorkDir)
	tc.Registry = o.cfg.Registry
	tc.Provider = o.cfg.ToolLLM
	opts := o.cfg.ToolOptions
	if len(req.AllowedTools) > 0 {
		opts.Allowed = req.AllowedTools
	}
	res := o.dispatcher.Process(ctx, tc, opts)

	result := &models.RunResult{
		Task:       req.Task,
		Mode:       models.ModeDirect,
		Iterations: []models.IterationRecord{},
		Duration:   time.Since(start),
	}
	if res.Success {
		result.Status = models.StatusSuccess
		result.Success = true
		result.FinalResult = &models.ExecutionResult{
			Success:       true,
			Output:        res.Output,
			FilesCreated:  res.FilesCreated,
			FilesModified: res.FilesModified,
			ToolsUsed:     res.ToolsRun,
			Elapsed:       res.Elapsed,
		}
	} else {
		result.Status = models.StatusFailed
		result.Error = res.Error
		if result.Error == "" {
			result.Error = "no tool matched"
		}
	}

	o.emitTerminal(ctx, result)
	return result
}

func (o *Orchestrator) emitTerminal(ctx context.Context, result *models.RunResult) {
	if o.sink == nil {
		return
	}
	t := models.EventTaskFailed
	if result.Success {
		t = models.EventTaskSucceeded
	}
	o.sink.Emit(context.WithoutCancel(ctx), models.Event{
		Version:   1,
		Type:      t,
		Time:      time.Now(),
		Sequence:  1,
		RunID:     uuid.NewString(),
		SessionID: o.cfg.SessionID,
		Run: &models.RunEventPayload{
			Task:   result.Task,
			Status: result.Status,
			Final:  result.FinalResult,
		},
	})
}
