package orchestrator

import (
	"sync"

	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
)

// StreamEmitter is an ordered, buffered event queue decoupling the
// reasoning loop from the transport. The loop emits synchronously and
// calls Finish after the terminal event; the transport ranges over
// Events and calls Abandon if its client disconnects, which unblocks
// any pending Emit. Disconnect additionally cancels the turn context,
// so the loop stops planning rather than producing for no one.
type StreamEmitter struct {
	ch        chan chat.ProgressEvent
	abandoned chan struct{}
	finish    sync.Once
	abandon   sync.Once
}

// NewStreamEmitter creates an emitter with the given buffer size
func NewStreamEmitter(buffer int) *StreamEmitter {
	if buffer <= 0 {
		buffer = 32
	}
	return &StreamEmitter{
		ch:        make(chan chat.ProgressEvent, buffer),
		abandoned: make(chan struct{}),
	}
}

// Emit enqueues an event, preserving order. Blocks only when the buffer
// is full and the consumer is still attached; an abandoned stream discards.
// Must only be called by the turn's own goroutine, before Finish.
func (e *StreamEmitter) Emit(event chat.ProgressEvent) {
	select {
	case <-e.abandoned:
		return
	default:
	}

	select {
	case e.ch <- event:
	case <-e.abandoned:
	}
}

// Events returns the ordered stream for the transport to drain. The
// channel closes once the turn has emitted its terminal event.
func (e *StreamEmitter) Events() <-chan chat.ProgressEvent {
	return e.ch
}

// Finish closes the event stream. Called by the emitting side after the
// terminal event; safe to call more than once.
func (e *StreamEmitter) Finish() {
	e.finish.Do(func() {
		close(e.ch)
	})
}

// Abandon marks the consumer as gone so pending and future emits are
// discarded instead of blocking. Called by the transport on disconnect.
func (e *StreamEmitter) Abandon() {
	e.abandon.Do(func() {
		close(e.abandoned)
	})
}

// CaptureEmitter records every event in order; used by tests and by
// callers that want the event trail after a synchronous turn.
type CaptureEmitter struct {
	mu     sync.Mutex
	events []chat.ProgressEvent
}

// NewCaptureEmitter creates an empty capture emitter
func NewCaptureEmitter() *CaptureEmitter {
	return &CaptureEmitter{}
}

// Emit records the event
func (e *CaptureEmitter) Emit(event chat.ProgressEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

// Events returns a copy of the recorded events in emission order
func (e *CaptureEmitter) Events() []chat.ProgressEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]chat.ProgressEvent, len(e.events))
	copy(out, e.events)
	return out
}
