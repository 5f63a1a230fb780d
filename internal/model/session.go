// internal/model/session.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionEndReason tells why an averaging session finished
type SessionEndReason string

const (
	SessionEndElapsed SessionEndReason = "elapsed"
	SessionEndStopped SessionEndReason = "stopped"
)

// SessionResult is the finalized outcome of one averaging session
type SessionResult struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	StartedAt     time.Time        `json:"started_at" db:"started_at"`
	EndedAt       time.Time        `json:"ended_at" db:"ended_at"`
	Duration      time.Duration    `json:"duration" db:"duration_ms"`
	SampleCount   int              `json:"sample_count" db:"sample_count"`
	AvgHeartRate  uint16           `json:"avg_heart_rate" db:"avg_heart_rate"`
	AvgRespRate   uint16           `json:"avg_resp_rate" db:"avg_resp_rate"`
	MeanHeartRate decimal.Decimal  `json:"mean_heart_rate" db:"mean_heart_rate"`
	MeanRespRate  decimal.Decimal  `json:"mean_resp_rate" db:"mean_resp_rate"`
	Reason        SessionEndReason `json:"reason" db:"reason"`
	Source        string           `json:"source,omitempty" db:"source"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}

// SessionStatus describes the averaging session as seen at a point in time
type SessionStatus struct {
	Active      bool           `json:"active"`
	ID          *uuid.UUID     `json:"id,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	Elapsed     time.Duration  `json:"elapsed"`
	Remaining   time.Duration  `json:"remaining"`
	SampleCount int            `json:"sample_count"`
	LastResult  *SessionResult `json:"last_result,omitempty"`
}
