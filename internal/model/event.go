// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventSample             EventType = "SAMPLE"
	EventSourceConnected    EventType = "SOURCE_CONNECTED"
	EventSourceDisconnected EventType = "SOURCE_DISCONNECTED"
	EventSourceError        EventType = "SOURCE_ERROR"
	EventSessionStarted     EventType = "SESSION_STARTED"
	EventSessionCompleted   EventType = "SESSION_COMPLETED"
)

// MonitorEvent represents an event emitted by the acquisition pipeline
type MonitorEvent struct {
	ID        uuid.UUID   `json:"id"`
	EventType EventType   `json:"event_type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
	Severity  string      `json:"severity"` // INFO, WARNING, ERROR
}

// SourceEventData describes a byte source state change
type SourceEventData struct {
	SourceType  SourceType   `json:"source_type"`
	Description string       `json:"description"`
	Status      SourceStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
}

// SessionEventData carries a session lifecycle change
type SessionEventData struct {
	SessionID uuid.UUID      `json:"session_id"`
	StartedAt time.Time      `json:"started_at"`
	Result    *SessionResult `json:"result,omitempty"`
}
