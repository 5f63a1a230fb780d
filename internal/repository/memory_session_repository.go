// internal/repository/memory_session_repository.go
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"biosignal-service/internal/model"
)

// MemorySessionRepository keeps session results in process memory. It is used
// when the database is disabled and holds at most capacity results.
type MemorySessionRepository struct {
	mutex    sync.RWMutex
	capacity int
	order    []uuid.UUID
	results  map[uuid.UUID]model.SessionResult
}

// NewMemorySessionRepository creates an in-memory store
func NewMemorySessionRepository(capacity int) *MemorySessionRepository {
	if capacity <= 0 {
		capacity = MaxListLimit
	}
	return &MemorySessionRepository{
		capacity: capacity,
		results:  make(map[uuid.UUID]model.SessionResult),
	}
}

// Save stores a copy of result, dropping the oldest when full
func (r *MemorySessionRepository) Save(ctx context.Context, result *model.SessionResult) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.results[result.ID]; exists {
		return fmt.Errorf("session %s: %w", result.ID, ErrSessionExists)
	}

	if len(r.order) >= r.capacity {
		delete(r.results, r.order[0])
		r.order = r.order[1:]
	}

	r.results[result.ID] = *result
	r.order = append(r.order, result.ID)
	return nil
}

// GetByID returns a copy of the stored result
func (r *MemorySessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SessionResult, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result, ok := r.results[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return &result, nil
}

// List returns matching results, newest first
func (r *MemorySessionRepository) List(ctx context.Context, filter *SessionFilter) ([]*model.SessionResult, int, error) {
	filter.Normalize()

	r.mutex.RLock()
	matched := []*model.SessionResult{}
	for _, id := range r.order {
		result := r.results[id]
		if filter.matches(&result) {
			matched = append(matched, &result)
		}
	}
	r.mutex.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := len(matched)
	if filter.Offset >= total {
		return []*model.SessionResult{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}
