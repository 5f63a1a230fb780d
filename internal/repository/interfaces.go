// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"biosignal-service/internal/model"
)

var (
	// ErrSessionNotFound is returned when no result exists for an ID
	ErrSessionNotFound = errors.New("session result not found")
	// ErrSessionExists is returned when saving a result twice
	ErrSessionExists = errors.New("session result already exists")
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 500
)

// SessionRepository stores finalized averaging-session results
type SessionRepository interface {
	Save(ctx context.Context, result *model.SessionResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.SessionResult, error)
	// List returns matching results, newest first, and the total match count
	List(ctx context.Context, filter *SessionFilter) ([]*model.SessionResult, int, error)
}

// SessionFilter represents session result listing filters
type SessionFilter struct {
	Reason *model.SessionEndReason `json:"reason,omitempty"`
	Since  *time.Time              `json:"since,omitempty"`
	Until  *time.Time              `json:"until,omitempty"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// Normalize clamps the paging fields
func (f *SessionFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

func (f *SessionFilter) matches(result *model.SessionResult) bool {
	if f.Reason != nil && result.Reason != *f.Reason {
		return false
	}
	if f.Since != nil && result.StartedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && !result.StartedAt.Before(*f.Until) {
		return false
	}
	return true
}
