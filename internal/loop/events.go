package loop

import (
	"sync"
	"time"
)

// EventType names an observable moment in a run's lifecycle.
type EventType string

const (
	EventRunStart      EventType = "run_start"
	EventIteration     EventType = "iteration"
	EventAssistantTurn EventType = "assistant_turn"
	EventToolCallStart EventType = "tool_call_start"
	EventToolCallEnd   EventType = "tool_call_end"
	EventRunEnd        EventType = "run_end"
)

// Event is one observable step of a run, emitted best-effort to subscribers.
type Event struct {
	RunID string
	Type  EventType
	Data  map[string]any
	At    time.Time
}

// Emitter fans run events out to a single subscriber channel. Emit never
// blocks the loop: when the subscriber falls behind, events are dropped.
type Emitter struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewEmitter creates an emitter with the given buffer size.
func NewEmitter(buffer int) *Emitter {
	if buffer <= 0 {
		buffer = 64
	}
	return &Emitter{ch: make(chan Event, buffer)}
}

// Events returns the subscriber channel. It is closed by Close.
func (e *Emitter) Events() <-chan Event { return e.ch }

// Emit publishes an event without blocking. Events emitted after Close, or
// while the buffer is full, are silently dropped.
func (e *Emitter) Emit(runID string, typ EventType, data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- Event{RunID: runID, Type: typ, Data: data, At: time.Now()}:
	default:
	}
}

// Close closes the subscriber channel. Safe to call more than once.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
