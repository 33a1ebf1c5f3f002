// Package events provides the event bus that carries transfer progress and
// status updates from worker goroutines to whatever front end is listening.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/droidbridge/droidbridge/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventProgress EventType = "progress"
	EventStatus   EventType = "status"

	EventTransferStarted   EventType = "transfer_started"   // Child process spawned, stream attached
	EventTransferCompleted EventType = "transfer_completed" // Zero exit status
	EventTransferFailed    EventType = "transfer_failed"    // Non-zero exit or stream error
	EventTransferCancelled EventType = "transfer_cancelled" // Cancelled by user

	EventPlanStarted   EventType = "plan_started"   // Duplicate scan began
	EventPlanCompleted EventType = "plan_completed" // Duplicate report ready
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// NewBaseEvent stamps a BaseEvent of the given type with the current time.
func NewBaseEvent(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// ProgressEvent carries a percentage update for one transfer run.
// Generation identifies the run; listeners must discard events whose
// generation does not match the latest started run.
type ProgressEvent struct {
	BaseEvent
	Generation uint64
	Percentage int // 0 to 100
}

// StatusEvent carries an advisory status line. Later messages may
// overwrite earlier ones without consequence.
type StatusEvent struct {
	BaseEvent
	Generation uint64
	Message    string
}

// TransferEvent marks a transfer lifecycle transition.
type TransferEvent struct {
	BaseEvent
	Generation uint64
	Direction  string // "pull" or "push"
	Source     string
	Dest       string
	Success    bool
	Message    string
	Err        error
}

// PlanEvent marks duplicate-scan lifecycle transitions.
type PlanEvent struct {
	BaseEvent
	FilesToTransfer int
	Duplicates      int
	BytesSaved      uint64
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers. Non-blocking: a full
// subscriber buffer drops the event rather than stalling the worker
// reading the child process stream.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishProgress is a convenience method for publishing progress events
func (eb *EventBus) PublishProgress(generation uint64, percentage int) {
	eb.Publish(&ProgressEvent{
		BaseEvent: BaseEvent{
			EventType: EventProgress,
			Time:      time.Now(),
		},
		Generation: generation,
		Percentage: percentage,
	})
}

// PublishStatus is a convenience method for publishing status events
func (eb *EventBus) PublishStatus(generation uint64, message string) {
	eb.Publish(&StatusEvent{
		BaseEvent: BaseEvent{
			EventType: EventStatus,
			Time:      time.Now(),
		},
		Generation: generation,
		Message:    message,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to
// full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

// ResetDroppedEventCount resets the dropped event counter to zero
func (eb *EventBus) ResetDroppedEventCount() int64 {
	return eb.droppedEvents.Swap(0)
}
