package workflow

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// EventType represents the type of workflow event.
type EventType string

const (
	// EventStateChanged indicates a step moved to a new state.
	EventStateChanged EventType = "state_changed"
	// EventStepBlocked indicates a task could not start.
	EventStepBlocked EventType = "step_blocked"
	// EventChunkCommitted indicates one chunk was merged into the store.
	EventChunkCommitted EventType = "chunk_committed"
	// EventWarning indicates a record was skipped or trimmed.
	EventWarning EventType = "warning"
	// EventPromptReady indicates a manual prompt is waiting for a response.
	EventPromptReady EventType = "prompt_ready"
)

// Event is emitted on every step transition and chunk commit.
type Event struct {
	Type   EventType
	TaskID string
	StepID string
	State  models.StepState
	// Chunk is zero-based; Total is the chunk count of the step.
	Chunk   int
	Total   int
	Message string
	Error   error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// EventEmitter delivers events to one subscriber through a buffered channel.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
	closeOnce    sync.Once
	log          *zap.Logger
}

// NewEventEmitter creates an emitter with the given buffer size.
func NewEventEmitter(bufferSize int, log *zap.Logger) *EventEmitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventEmitter{events: make(chan Event, bufferSize), log: log}
}

// Emit sends an event. If the channel stays full for 100ms the event is dropped.
func (e *EventEmitter) Emit(event Event) {
	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			e.log.Warn("event channel full, dropping events",
				zap.Uint64("dropped", count),
				zap.String("type", string(event.Type)))
		}
	}
}

// DroppedCount returns the total number of dropped events.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the subscriber side.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. Emit must not be called afterwards.
func (e *EventEmitter) Close() {
	e.closeOnce.Do(func() { close(e.events) })
}
