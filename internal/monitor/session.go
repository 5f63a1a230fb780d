// internal/monitor/session.go
package monitor

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"biosignal-service/internal/model"
)

// DefaultSessionDuration is the length of a timed averaging session
const DefaultSessionDuration = 60 * time.Second

var (
	// ErrSessionActive is returned when starting while a session is running
	ErrSessionActive = errors.New("averaging session already active")
	// ErrSessionInactive is returned when stopping with no session running
	ErrSessionInactive = errors.New("no active averaging session")
)

// AveragingSession accumulates heart and respiration rates for a fixed
// duration and reduces them to rounded means. Only one session runs at a time.
type AveragingSession struct {
	duration   time.Duration
	active     bool
	id         uuid.UUID
	startTime  time.Time
	heartRates []uint16
	respRates  []uint16
	lastResult *model.SessionResult
}

// NewAveragingSession creates an idle session with the given duration limit
func NewAveragingSession(duration time.Duration) *AveragingSession {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	return &AveragingSession{duration: duration}
}

// Start begins accumulating. It fails without changing state when a session
// is already active.
func (s *AveragingSession) Start(now time.Time) error {
	if s.active {
		return ErrSessionActive
	}
	s.active = true
	s.id = uuid.New()
	s.startTime = now
	s.heartRates = s.heartRates[:0]
	s.respRates = s.respRates[:0]
	return nil
}

// Add records one sample's rates while active
func (s *AveragingSession) Add(heartRate, respRate uint16) {
	if !s.active {
		return
	}
	s.heartRates = append(s.heartRates, heartRate)
	s.respRates = append(s.respRates, respRate)
}

// Poll finalizes the session once its duration has elapsed
func (s *AveragingSession) Poll(now time.Time) (*model.SessionResult, bool) {
	if !s.active || now.Sub(s.startTime) < s.duration {
		return nil, false
	}
	return s.finalize(now, model.SessionEndElapsed), true
}

// Stop finalizes immediately with whatever was accumulated
func (s *AveragingSession) Stop(now time.Time) (*model.SessionResult, error) {
	if !s.active {
		return nil, ErrSessionInactive
	}
	return s.finalize(now, model.SessionEndStopped), nil
}

// Active reports whether a session is running
func (s *AveragingSession) Active() bool {
	return s.active
}

// Duration returns the configured duration limit
func (s *AveragingSession) Duration() time.Duration {
	return s.duration
}

// LastResult returns the most recently finalized result, if any
func (s *AveragingSession) LastResult() *model.SessionResult {
	if s.lastResult == nil {
		return nil
	}
	result := *s.lastResult
	return &result
}

// Status describes the session as of now
func (s *AveragingSession) Status(now time.Time) model.SessionStatus {
	status := model.SessionStatus{
		Active:     s.active,
		LastResult: s.LastResult(),
	}
	if !s.active {
		return status
	}

	id := s.id
	started := s.startTime
	elapsed := now.Sub(s.startTime)
	remaining := s.duration - elapsed
	if remaining < 0 {
		remaining = 0
	}

	status.ID = &id
	status.StartedAt = &started
	status.Elapsed = elapsed
	status.Remaining = remaining
	status.SampleCount = len(s.heartRates)
	return status
}

func (s *AveragingSession) finalize(now time.Time, reason model.SessionEndReason) *model.SessionResult {
	hrMean := mean(s.heartRates)
	rrMean := mean(s.respRates)

	result := &model.SessionResult{
		ID:            s.id,
		StartedAt:     s.startTime,
		EndedAt:       now,
		Duration:      now.Sub(s.startTime),
		SampleCount:   len(s.heartRates),
		AvgHeartRate:  uint16(hrMean.Round(0).IntPart()),
		AvgRespRate:   uint16(rrMean.Round(0).IntPart()),
		MeanHeartRate: hrMean.Round(2),
		MeanRespRate:  rrMean.Round(2),
		Reason:        reason,
		CreatedAt:     now,
	}

	s.active = false
	s.lastResult = result

	out := *result
	return &out
}

// mean returns the exact arithmetic mean, zero for no values
func mean(values []uint16) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromInt(int64(v)))
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}
