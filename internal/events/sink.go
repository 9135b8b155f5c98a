// Package events provides the sink implementations that carry loop progress
// events to display layers.
package events

import (
	"context"
	"sync/atomic"

	"github.com/sable-dev/sable/pkg/models"
)

// Sink receives loop events during a run.
// Implementations should be non-blocking or handle backpressure gracefully.
type Sink interface {
	// Emit sends an event to the sink.
	// Implementations must be safe to call from multiple goroutines.
	Emit(ctx context.Context, e models.Event)
}

// ChanSink forwards events to a caller-owned channel. It never blocks the
// emitter: when the channel is full the event is lost, so size the buffer for
// the burstiness of the run.
type ChanSink struct {
	ch chan<- models.Event
}

// NewChanSink wraps ch as a Sink.
func NewChanSink(ch chan<- models.Event) *ChanSink {
	return &ChanSink{ch: ch}
}

func (s *ChanSink) Emit(ctx context.Context, e models.Event) {
	select {
	case s.ch <- e:
	case <-ctx.Done():
	default:
	}
}

// MultiSink delivers each event to every member sink in order. Nil members
// are skipped at construction so callers can pass optional sinks directly.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

func (s *MultiSink) Emit(ctx context.Context, e models.Event) {
	for _, sink := range s.sinks {
		sink.Emit(ctx, e)
	}
}

// CallbackSink adapts a plain function to the Sink interface, mostly for
// tests and inline collectors.
type CallbackSink struct {
	fn func(ctx context.Context, e models.Event)
}

func NewCallbackSink(fn func(ctx context.Context, e models.Event)) *CallbackSink {
	return &CallbackSink{fn: fn}
}

func (s *CallbackSink) Emit(ctx context.Context, e models.Event) {
	if s.fn != nil {
		s.fn(ctx, e)
	}
}

// NopSink discards everything. The engine substitutes it for a nil sink.
type NopSink struct{}

func (NopSink) Emit(ctx context.Context, e models.Event) {}

// BackpressureConfig configures the two lane buffers of BackpressureSink.
type BackpressureConfig struct {
	// HighPriBuffer is the buffer size for non-droppable events.
	// Default: 32.
	HighPriBuffer int

	// LowPriBuffer is the buffer size for droppable events.
	// Default: 256.
	LowPriBuffer int
}

// BackpressureSink implements two-lane backpressure for event streaming.
// Lifecycle events (task and iteration boundaries, execution and evaluation
// results) are never dropped. Thinking and planning text is dropped when the
// low-priority buffer is full.
type BackpressureSink struct {
	highPri chan models.Event
	lowPri  chan models.Event
	merged  chan models.Event
	dropped uint64
	closed  uint32
}

// NewBackpressureSink creates a backpressure-aware sink with a merged output
// channel the caller must consume.
func NewBackpressureSink(config BackpressureConfig) (*BackpressureSink, <-chan models.Event) {
	if config.HighPriBuffer <= 0 {
		config.HighPriBuffer = 32
	}
	if config.LowPriBuffer <= 0 {
		config.LowPriBuffer = 256
	}

	s := &BackpressureSink{
		highPri: make(chan models.Event, config.HighPriBuffer),
		lowPri:  make(chan models.Event, config.LowPriBuffer),
		merged:  make(chan models.Event, config.HighPriBuffer),
	}
	go s.mergeLoop()
	return s, s.merged
}

// mergeLoop reads from both lanes, preferring the high-priority one.
func (s *BackpressureSink) mergeLoop() {
	defer close(s.merged)

	for {
		select {
		case e, ok := <-s.highPri:
			if ok {
				s.merged <- e
				continue
			}
			for e := range s.lowPri {
				s.merged <- e
			}
			return
		default:
		}

		select {
		case e, ok := <-s.highPri:
			if ok {
				s.merged <- e
			} else {
				for e := range s.lowPri {
					s.merged <- e
				}
				return
			}
		case e, ok := <-s.lowPri:
			if ok {
				s.merged <- e
			}
			// lowPri closed: keep looping, highPri closes right after.
		}
	}
}

// Emit sends an event through the appropriate lane. Non-droppable events
// block until there is space; when the droppable lane is full the oldest
// queued event is discarded to make room for the new one.
func (s *BackpressureSink) Emit(ctx context.Context, e models.Event) {
	if atomic.LoadUint32(&s.closed) == 1 {
		return
	}
	if e.Type.Droppable() {
		for {
			select {
			case s.lowPri <- e:
				return
			default:
			}
			// Lane full: evict the oldest queued event so the consumer
			// always sees the freshest thinking/planning text.
			select {
			case <-s.lowPri:
				atomic.AddUint64(&s.dropped, 1)
			default:
			}
		}
	}

	select {
	case s.highPri <- e:
	case <-ctx.Done():
		// Still try once so terminal events survive cancellation.
		select {
		case s.highPri <- e:
		default:
			atomic.AddUint64(&s.dropped, 1)
		}
	}
}

// DroppedCount returns how many events were dropped under backpressure.
func (s *BackpressureSink) DroppedCount() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

// Close stops the sink and closes the merged output channel. No events may
// be emitted after Close.
func (s *BackpressureSink) Close() {
	if !atomic.CompareAndSwapUint32(&s.closed, 0, 1) {
		return
	}
	close(s.highPri)
	close(s.lowPri)
}
