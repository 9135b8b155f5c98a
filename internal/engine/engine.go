// Package engine implements the agentic iteration state machine: think,
// execute, evaluate, refine, repeated until success or the iteration cap.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sable-dev/sable/internal/events"
	"github.com/sable-dev/sable/internal/mcp"
	"github.com/sable-dev/sable/internal/memory"
	"github.com/sable-dev/sable/internal/provider"
	"github.com/sable-dev/sable/internal/provider/router"
	"github.com/sable-dev/sable/internal/tool"
	"github.com/sable-dev/sable/pkg/models"
)

// Default per-step deadlines.
const (
	DefaultThinkTimeout    = 60 * time.Second
	DefaultExecuteTimeout  = 120 * time.Second
	DefaultEvaluateTimeout = 60 * time.Second
)

// pausePollInterval is how often the engine rechecks a paused session.
const pausePollInterval = 50 * time.Millisecond

// altApproachAfter is the iteration count after which refinement nudges the
// model toward alternative approaches.
const altApproachAfter = 5

// Asker routes completion calls, typically the provider router.
type Asker interface {
	Ask(ctx context.Context, name string, req *provider.AskRequest, sc *router.SelectContext) (string, error)
}

// Dispatcher runs a plan through the tool layer.
type Dispatcher interface {
	Process(ctx context.Context, tc *tool.Context, opts tool.Options) *tool.Result
}

// Session is the memory surface the engine drives.
type Session interface {
	Start(task, objective string) error
	ApplyUpdate(u memory.Update) error
	Complete(finalResult string) error
	Context() *models.AgenticContext
	Paused() bool
}

// Config configures an Engine.
type Config struct {
	// SessionID stamps events with the owning session.
	SessionID string

	// SystemPrompt is the identity preamble for think prompts.
	SystemPrompt string

	// WorkDir is the working path handed to tools.
	WorkDir string

	// Registry is the tool registry handed to tool contexts.
	Registry *tool.Registry

	// ToolLLM is the completion handle tools may use. Optional.
	ToolLLM tool.LLM

	// MCP is the MCP surface handed to tool contexts. Optional.
	MCP mcp.Surface

	// ToolOptions is the base dispatch configuration; the request's
	// allowlist is applied on top per turn.
	ToolOptions tool.Options

	// ThinkTimeout, ExecuteTimeout, EvaluateTimeout bound the three steps.
	// Defaults: 60s, 120s, 60s.
	ThinkTimeout    time.Duration
	ExecuteTimeout  time.Duration
	EvaluateTimeout time.Duration

	// Logger is the structured logger. Default: slog.Default().
	Logger *slog.Logger
}

// Engine runs the agentic loop. It owns a run's IterationRecords until it
// returns the RunResult; session state is mutated only through the Session.
type Engine struct {
	cfg        Config
	router     Asker
	dispatcher Dispatcher
	session    Session
	sink       events.Sink
}

// New creates an Engine. router and dispatcher are required; session and
// sink may be nil.
func New(cfg Config, r Asker, d Dispatcher, s Session, sink events.Sink) *Engine {
	if cfg.ThinkTimeout <= 0 {
		cfg.ThinkTimeout = DefaultThinkTimeout
	}
	if cfg.ExecuteTimeout <= 0 {
		cfg.ExecuteTimeout = DefaultExecuteTimeout
	}
	if cfg.EvaluateTimeout <= 0 {
		cfg.EvaluateTimeout = DefaultEvaluateTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{cfg: cfg, router: r, dispatcher: d, session: s, sink: sink}
}

// Run executes the loop for one request and returns the terminal RunResult.
// It never returns an error: failures become the result's status. A zero
// iteration cap terminates immediately with StatusMaxIterations.
func (e *Engine) Run(ctx context.Context, req models.Request) *models.RunResult {
	start := time.Now()
	em := newEmitter(e.sink, uuid.NewString(), e.cfg.SessionID)

	result := &models.RunResult{
		Task:       req.Task,
		Mode:       models.ModeAgentic,
		Iterations: []models.IterationRecord{},
	}

	em.taskStarted(ctx, req.Task)

	maxIter := req.MaxIterations
	if maxIter <= 0 {
		result.Status = models.StatusMaxIterations
		result.Duration = time.Since(start)
		em.terminal(context.WithoutCancel(ctx), result, nil)
		return result
	}

	e.ensureSession(req.Task)

	objective := req.Task
	for i := 1; i <= maxIter; i++ {
		if err := e.stepBoundary(ctx); err != nil {
			return e.finish(ctx, em, result, models.StatusCancelled, start, nil)
		}

		iterStart := time.Now()
		em.iterationStarted(ctx, i)

		rec := models.IterationRecord{Index: i, StartedAt: iterStart}
		var eval Evaluation
		var execRes *models.ExecutionResult

		thinking, plan, err := e.think(ctx, objective, i, maxIter)
		switch {
		case errors.Is(err, router.ErrNoProvider):
			result.Error = err.Error()
			return e.finish(ctx, em, result, models.StatusFailed, start, err)
		case err != nil:
			// A failed think step fails the iteration, not the task.
			e.cfg.Logger.Warn("think step failed", "iteration", i, "error", err)
			thinking = placeholderThinking
			plan = placeholderPlan
			execRes = &models.ExecutionResult{Success: false, Error: err.Error()}
			eval = Evaluation{Success: false, Confidence: 0.9,
				Feedback: "provider call failed: " + err.Error()}
		default:
			if req.Verbose {
				em.thinking(ctx, thinking)
				em.planning(ctx, plan)
			}

			if err := e.stepBoundary(ctx); err != nil {
				return e.finish(ctx, em, result, models.StatusCancelled, start, nil)
			}
			em.executionStarted(ctx, plan)
			execRes = e.execute(ctx, plan, req.AllowedTools)
			em.executionCompleted(ctx, plan, execRes)

			if err := e.stepBoundary(ctx); err != nil {
				return e.finish(ctx, em, result, models.StatusCancelled, start, nil)
			}
			eval = e.evaluate(ctx, req.Task, plan, execRes)
			em.evaluationCompleted(ctx, eval)
		}

		rec.Thinking = thinking
		rec.Plan = plan
		rec.Result = execRes
		rec.Evaluated = eval.Success
		rec.Evaluation = eval.Feedback
		rec.Confidence = eval.Confidence
		rec.Duration = time.Since(iterStart)
		result.Iterations = append(result.Iterations, rec)

		e.updateSession(i, plan, execRes, eval)
		em.iterationCompleted(ctx, i, rec.Duration)

		if eval.Success {
			result.FinalResult = execRes
			if e.session != nil {
				if err := e.session.Complete(execRes.Output); err != nil && !errors.Is(err, memory.ErrNoContext) {
					e.cfg.Logger.Warn("session complete failed", "error", err)
				}
			}
			return e.finish(ctx, em, result, models.StatusSuccess, start, nil)
		}
		objective = refine(objective, eval.Feedback, i)
	}
	return e.finish(ctx, em, result, models.StatusMaxIterations, start, nil)
}

func (e *Engine) finish(ctx context.Context, em *emitter, result *models.RunResult,
	status models.RunStatus, start time.Time, err error) *models.RunResult {
	result.Status = status
	result.Success = status == models.StatusSuccess
	if !result.Success {
		result.FinalResult = nil
	}
	result.Duration = time.Since(start)
	em.terminal(context.WithoutCancel(ctx), result, err)
	return result
}

// stepBoundary blocks while the session is paused and reports cancellation.
// Both checks happen only here, between steps.
func (e *Engine) stepBoundary(ctx context.Context) error {
	for e.session != nil && e.session.Paused() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pausePollInterval):
		}
	}
	return ctx.Err()
}

func (e *Engine) ensureSession(task string) {
	if e.session == nil {
		return
	}
	if e.session.Context() == nil {
		if err := e.session.Start(task, task); err != nil {
			e.cfg.Logger.Warn("session start failed", "error", err)
		}
		return
	}
	if err := e.session.ApplyUpdate(memory.Update{Objective: task}); err != nil {
		e.cfg.Logger.Warn("session update failed", "error", err)
	}
}

func (e *Engine) updateSession(iteration int, plan string, execRes *models.ExecutionResult, eval Evaluation) {
	if e.session == nil {
		return
	}
	u := memory.Update{
		Iteration:      iteration,
		LastResult:     resultText(execRes),
		LastEvaluation: eval.Feedback,
		FilesCreated:   execRes.FilesCreated,
		FilesModified:  execRes.FilesModified,
		ToolsUsed:      execRes.ToolsUsed,
	}
	if eval.Success {
		u.NewCompleted = []string{plan}
	} else {
		u.NewPending = []string{plan}
	}
	if err := e.session.ApplyUpdate(u); err != nil {
		e.cfg.Logger.Warn("session update failed", "iteration", iteration, "error", err)
	}
}

// think asks the model for reasoning and a single concrete plan.
func (e *Engine) think(ctx context.Context, objective string, iteration, cap int) (string, string, error) {
	thinkCtx, cancel := context.WithTimeout(ctx, e.cfg.ThinkTimeout)
	defer cancel()

	resp, err := e.router.Ask(thinkCtx, "", &provider.AskRequest{
		Prompt: buildThinkPrompt(objective, iteration, cap),
		System: e.cfg.SystemPrompt,
	}, nil)
	if err != nil {
		return "", "", err
	}
	thinking, plan := parseThinkPlan(resp)
	return thinking, plan, nil
}

// execute passes the plan through the dispatcher as a fresh request.
func (e *Engine) execute(ctx context.Context, plan string, allowed []string) *models.ExecutionResult {
	execCtx, cancel := context.WithTimeout(ctx, e.cfg.ExecuteTimeout)
	defer cancel()

	tc := tool.NewContext(plan, e.cfg.WorkDir)
	tc.Registry = e.cfg.Registry
	tc.Provider = e.cfg.ToolLLM
	if e.cfg.MCP != nil {
		tc.MCP = e.cfg.MCP
	}

	opts := e.cfg.ToolOptions
	if len(allowed) > 0 {
		opts.Allowed = allowed
	}
	res := e.dispatcher.Process(execCtx, tc, opts)
	return &models.ExecutionResult{
		Success:       res.Success,
		Output:        res.Output,
		Error:         res.Error,
		FilesCreated:  res.FilesCreated,
		FilesModified: res.FilesModified,
		ToolsUsed:     res.ToolsRun,
		Elapsed:       res.Elapsed,
	}
}

// evaluate judges the execution via the model, falling back to the heuristic
// evaluator when the call fails or the response does not parse.
func (e *Engine) evaluate(ctx context.Context, task, plan string, execRes *models.ExecutionResult) Evaluation {
	evalCtx, cancel := context.WithTimeout(ctx, e.cfg.EvaluateTimeout)
	defer cancel()

	text := resultText(execRes)
	resp, err := e.router.Ask(evalCtx, "", &provider.AskRequest{
		Prompt: buildEvalPrompt(task, plan, text),
	}, nil)
	if err != nil {
		e.cfg.Logger.Warn("evaluation call failed, using heuristic", "error", err)
		return heuristicEvaluate(task, text)
	}
	if ev, ok := parseEvaluation(resp); ok {
		return ev
	}
	return heuristicEvaluate(task, text)
}

// refine produces the next objective string from the prior one and the
// evaluator's feedback.
func refine(prior, feedback string, completedIterations int) string {
	refined := prior
	if feedback != "" {
		refined += " | Previous feedback: " + feedback
	}
	if completedIterations >= altApproachAfter {
		refined += fmt.Sprintf(" | Note: iteration %d, consider alternative approaches.",
			completedIterations+1)
	}
	return refined
}

func resultText(execRes *models.ExecutionResult) string {
	if execRes == nil {
		return ""
	}
	if execRes.Success {
		return execRes.Output
	}
	if execRes.Error != "" && execRes.Output != "" {
		return execRes.Error + ": " + execRes.Output
	}
	if execRes.Error != "" {
		return execRes.Error
	}
	return execRes.Output
}

func buildThinkPrompt(objective string, iteration, cap int) string {
	var sb strings.Builder
	sb.WriteString("You are working autonomously on the following task.\n\n")
	sb.WriteString("Task: ")
	sb.WriteString(objective)
	sb.WriteString(fmt.Sprintf("\n\nThis is iteration %d of at most %d.\n\n", iteration, cap))
	sb.WriteString("Respond in exactly this format:\n")
	sb.WriteString("THINKING: <your reasoning about the current state and what to do>\n")
	sb.WriteString("PLAN: <one concrete action to take next>")
	return sb.String()
}

func buildEvalPrompt(task, plan, result string) string {
	var sb strings.Builder
	sb.WriteString("Evaluate whether the executed action accomplished the task.\n\n")
	sb.WriteString("Task: ")
	sb.WriteString(task)
	sb.WriteString("\nPlan: ")
	sb.WriteString(plan)
	sb.WriteString("\nResult: ")
	sb.WriteString(result)
	sb.WriteString("\n\nRespond in exactly this format:\n")
	sb.WriteString("SUCCESS: true or false\n")
	sb.WriteString("CONFIDENCE: a number between 0.0 and 1.0\n")
	sb.WriteString("REASONING: <why you judged it this way>\n")
	sb.WriteString("FEEDBACK: <what to do differently if not successful>")
	return sb.String()
}
