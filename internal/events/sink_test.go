package events

import (
	"context"
	"testing"
	"time"

	"github.com/sable-dev/sable/pkg/models"
)

func event(t models.EventType) models.Event {
	return models.Event{Version: 1, Type: t, Time: time.Now()}
}

func TestChanSinkDropsWhenFull(t *testing.T) {
	ch := make(chan models.Event, 1)
	s := NewChanSink(ch)

	s.Emit(context.Background(), event(models.EventThinking))
	s.Emit(context.Background(), event(models.EventPlanning)) // dropped, no block

	if len(ch) != 1 {
		t.Fatalf("channel len = %d", len(ch))
	}
	got := <-ch
	if got.Type != models.EventThinking {
		t.Errorf("got %s", got.Type)
	}
}

func TestMultiSinkFansOutAndFiltersNil(t *testing.T) {
	var a, b int
	s := NewMultiSink(
		NewCallbackSink(func(ctx context.Context, e models.Event) { a++ }),
		nil,
		NewCallbackSink(func(ctx context.Context, e models.Event) { b++ }),
	)
	s.Emit(context.Background(), event(models.EventTaskStarted))
	if a != 1 || b != 1 {
		t.Errorf("a=%d b=%d", a, b)
	}
}

func TestBackpressureDropsOnlyDroppable(t *testing.T) {
	s, merged := NewBackpressureSink(BackpressureConfig{HighPriBuffer: 4, LowPriBuffer: 2})
	ctx := context.Background()

	// Overfill the low-priority lane before the consumer starts. The lane,
	// the merged buffer, and the merge goroutine together hold well under
	// twenty events.
	for i := 0; i < 20; i++ {
		s.Emit(ctx, event(models.EventThinking))
	}
	if s.DroppedCount() == 0 {
		t.Error("expected droppable events to be dropped")
	}

	// Lifecycle events always get through.
	s.Emit(ctx, event(models.EventTaskStarted))
	s.Emit(ctx, event(models.EventIterationStarted))
	s.Emit(ctx, event(models.EventTaskSucceeded))
	s.Close()

	var lifecycle int
	for e := range merged {
		if !e.Type.Droppable() {
			lifecycle++
		}
	}
	if lifecycle != 3 {
		t.Errorf("lifecycle events delivered = %d, want 3", lifecycle)
	}
}

func TestBackpressureKeepsNewestDroppable(t *testing.T) {
	s, merged := NewBackpressureSink(BackpressureConfig{HighPriBuffer: 1, LowPriBuffer: 1})
	ctx := context.Background()

	// No consumer while emitting: the lane overflows almost immediately and
	// each overflow must evict the oldest queued event, not the new one.
	for i := 1; i <= 64; i++ {
		e := event(models.EventThinking)
		e.Sequence = uint64(i)
		s.Emit(ctx, e)
	}
	s.Close()

	var last uint64
	delivered := 0
	for e := range merged {
		delivered++
		last = e.Sequence
	}
	if last != 64 {
		t.Errorf("last delivered sequence = %d, want 64 (newest must survive)", last)
	}
	if delivered >= 64 {
		t.Errorf("delivered = %d, expected drops", delivered)
	}
	if s.DroppedCount() == 0 {
		t.Error("dropped count must record evictions")
	}
}

func TestBackpressureEmitAfterClose(t *testing.T) {
	s, merged := NewBackpressureSink(BackpressureConfig{})
	s.Close()
	s.Emit(context.Background(), event(models.EventTaskStarted)) // must not panic

	for range merged {
	}
}

func TestDroppablePolicy(t *testing.T) {
	droppable := []models.EventType{models.EventThinking, models.EventPlanning}
	for _, ty := range droppable {
		if !ty.Droppable() {
			t.Errorf("%s should be droppable", ty)
		}
	}
	kept := []models.EventType{
		models.EventTaskStarted, models.EventTaskSucceeded,
		models.EventTaskMaxIterations, models.EventTaskFailed,
		models.EventTaskCancelled, models.EventIterationStarted,
		models.EventIterationCompleted, models.EventExecutionStarted,
		models.EventExecutionCompleted, models.EventEvaluationCompleted,
	}
	for _, ty := range kept {
		if ty.Droppable() {
			t.Errorf("%s must not be droppable", ty)
		}
	}
}

func TestStatsCollector(t *testing.T) {
	c := NewStatsCollector()
	ctx := context.Background()

	start := event(models.EventTaskStarted)
	c.Emit(ctx, start)
	c.Emit(ctx, event(models.EventThinking))
	c.Emit(ctx, event(models.EventExecutionCompleted))
	eval := event(models.EventEvaluationCompleted)
	eval.Eval = &models.EvalEventPayload{Success: true, Confidence: 0.9}
	c.Emit(ctx, eval)
	c.Emit(ctx, event(models.EventIterationCompleted))

	done := event(models.EventTaskSucceeded)
	done.Time = start.Time.Add(2 * time.Second)
	done.Run = &models.RunEventPayload{Status: models.StatusSuccess}
	c.Emit(ctx, done)

	stats := c.Stats()
	if stats.Events != 6 {
		t.Errorf("events = %d", stats.Events)
	}
	if stats.Iterations != 1 || stats.Executions != 1 {
		t.Errorf("iterations=%d executions=%d", stats.Iterations, stats.Executions)
	}
	if stats.Evaluations != 1 || stats.SuccessfulEvals != 1 {
		t.Errorf("evaluations=%d successes=%d", stats.Evaluations, stats.SuccessfulEvals)
	}
	if stats.TerminalStatus != models.StatusSuccess {
		t.Errorf("terminal = %s", stats.TerminalStatus)
	}
	if stats.Duration != 2*time.Second {
		t.Errorf("duration = %s", stats.Duration)
	}
}
