// internal/handler/event_bus.go
package handler

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"biosignal-service/internal/model"
)

const (
	EventTypeSample = "sample"

	eventBufferSize      = 1024
	subscriberBufferSize = 256
)

// EventBus fans pipeline output out to subscribers. Publishing never blocks
// the acquisition loop; events are dropped when a buffer is full.
type EventBus struct {
	subscribers map[string][]chan Event
	events      chan Event
	mutex       sync.RWMutex
	logger      *zap.Logger
	dropped     atomic.Uint64
}

// Event represents a bus event
type Event struct {
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
		events:      make(chan Event, eventBufferSize),
		logger:      logger.With(zap.String("component", "event-bus")),
	}
}

// Start distributes events until ctx is cancelled
func (eb *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eb.events:
			eb.distributeEvent(event)
		}
	}
}

// Publish queues an event
func (eb *EventBus) Publish(event Event) {
	select {
	case eb.events <- event:
	default:
		// Only every 100th drop is logged; samples arrive at the sampling rate
		if n := eb.dropped.Add(1); n%100 == 1 {
			eb.logger.Warn("Event bus full, dropping event",
				zap.String("event_type", event.Type),
				zap.Uint64("dropped_total", n),
			)
		}
	}
}

// PublishSample publishes one decoded sample
func (eb *EventBus) PublishSample(point model.SamplePoint) {
	eb.Publish(Event{
		Type:      EventTypeSample,
		Source:    "pipeline",
		Data:      point,
		Timestamp: time.Now(),
	})
}

// PublishEvent publishes an acquisition lifecycle event
func (eb *EventBus) PublishEvent(event model.MonitorEvent) {
	eb.Publish(Event{
		Type:      EventTypeName(event.EventType),
		Source:    event.Source,
		Data:      event,
		Timestamp: event.Timestamp,
	})
}

// Subscribe returns a channel receiving events of the given types
func (eb *EventBus) Subscribe(eventTypes ...string) <-chan Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan Event, subscriberBufferSize)
	for _, eventType := range eventTypes {
		eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	}
	return subscriber
}

// Dropped returns the number of events dropped because the bus was full
func (eb *EventBus) Dropped() uint64 {
	return eb.dropped.Load()
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event Event) {
	eb.mutex.RLock()
	subscribers := eb.subscribers[event.Type]
	eb.mutex.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

// EventTypeName is the bus and WebSocket name of a lifecycle event type
func EventTypeName(eventType model.EventType) string {
	return strings.ToLower(string(eventType))
}

// LifecycleEventTypes lists the bus names of every lifecycle event
func LifecycleEventTypes() []string {
	return []string{
		EventTypeName(model.EventSourceConnected),
		EventTypeName(model.EventSourceDisconnected),
		EventTypeName(model.EventSourceError),
		EventTypeName(model.EventSessionStarted),
		EventTypeName(model.EventSessionCompleted),
	}
}
