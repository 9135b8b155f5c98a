package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sable-dev/sable/internal/events"
	"github.com/sable-dev/sable/pkg/models"
)

// emitter stamps events with version, time, run identity, and a monotonic
// sequence number before handing them to the sink.
type emitter struct {
	sink      events.Sink
	runID     string
	sessionID string
	sequence  uint64
	iteration int
}

func newEmitter(sink events.Sink, runID, sessionID string) *emitter {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &emitter{sink: sink, runID: runID, sessionID: sessionID}
}

func (e *emitter) setIteration(n int) {
	e.iteration = n
}

func (e *emitter) base(t models.EventType) models.Event {
	return models.Event{
		Version:   1,
		Type:      t,
		Time:      time.Now(),
		Sequence:  atomic.AddUint64(&e.sequence, 1),
		RunID:     e.runID,
		SessionID: e.sessionID,
		Iteration: e.iteration,
	}
}

func (e *emitter) taskStarted(ctx context.Context, task string) {
	ev := e.base(models.EventTaskStarted)
	ev.Run = &models.RunEventPayload{Task: task}
	e.sink.Emit(ctx, ev)
}

func (e *emitter) iterationStarted(ctx context.Context, n int) {
	e.setIteration(n)
	ev := e.base(models.EventIterationStarted)
	ev.Iter = &models.IterEventPayload{Index: n}
	e.sink.Emit(ctx, ev)
}

func (e *emitter) iterationCompleted(ctx context.Context, n int, d time.Duration) {
	ev := e.base(models.EventIterationCompleted)
	ev.Iter = &models.IterEventPayload{Index: n, Duration: d}
	e.sink.Emit(ctx, ev)
}

func (e *emitter) thinking(ctx context.Context, text string) {
	ev := e.base(models.EventThinking)
	ev.Text = &models.TextEventPayload{Text: text}
	e.sink.Emit(ctx, ev)
}

func (e *emitter) planning(ctx context.Context, text string) {
	ev := e.base(models.EventPlanning)
	ev.Text = &models.TextEventPayload{Text: text}
	e.sink.Emit(ctx, ev)
}

func (e *emitter) executionStarted(ctx context.Context, plan string) {
	ev := e.base(models.EventExecutionStarted)
	ev.Exec = &models.ExecEventPayload{Plan: plan}
	e.sink.Emit(ctx, ev)
}

func (e *emitter) executionCompleted(ctx context.Context, plan string, result *models.ExecutionResult) {
	ev := e.base(models.EventExecutionCompleted)
	ev.Exec = &models.ExecEventPayload{Plan: plan, Result: result}
	e.sink.Emit(ctx, ev)
}

func (e *emitter) evaluationCompleted(ctx context.Context, eval Evaluation) {
	ev := e.base(models.EventEvaluationCompleted)
	ev.Eval = &models.EvalEventPayload{
		Success:    eval.Success,
		Confidence: eval.Confidence,
		Feedback:   eval.Feedback,
	}
	e.sink.Emit(ctx, ev)
}

func (e *emitter) terminal(ctx context.Context, result *models.RunResult, err error) {
	var t models.EventType
	switch result.Status {
	case models.StatusSuccess:
		t = models.EventTaskSucceeded
	case models.StatusMaxIterations:
		t = models.EventTaskMaxIterations
	case models.StatusCancelled:
		t = models.EventTaskCancelled
	default:
		t = models.EventTaskFailed
	}

	final := result.FinalResult
	if final == nil && t == models.EventTaskMaxIterations && len(result.Iterations) > 0 {
		final = result.Iterations[len(result.Iterations)-1].Result
	}

	ev := e.base(t)
	ev.Run = &models.RunEventPayload{
		Task:   result.Task,
		Status: result.Status,
		Final:  final,
	}
	if err != nil {
		ev.Error = &models.ErrorEventPayload{Message: err.Error(), Err: err}
	}
	e.sink.Emit(ctx, ev)
}
