package toolscribe

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Invocation is one recorded tool call.
type Invocation struct {
	ID        uuid.UUID       `json:"id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    string          `json:"result,omitempty"`
	IsError   bool            `json:"is_error"`
	Duration  time.Duration   `json:"duration"`
	CreatedAt time.Time       `json:"created_at"`
}

// InvocationStore defines the interface for invocation-history storage.
type InvocationStore interface {
	// RecordInvocation persists one completed tool call.
	RecordInvocation(ctx context.Context, inv Invocation) error

	// ListInvocations returns recorded calls, newest first. An empty tool
	// name matches all tools; limit <= 0 means no limit.
	ListInvocations(ctx context.Context, tool string, limit int) ([]Invocation, error)

	// PurgeInvocations deletes records created before the given time and
	// returns how many were removed.
	PurgeInvocations(ctx context.Context, before time.Time) (int64, error)
}

// InMemoryInvocationStore is an in-memory implementation of InvocationStore.
type InMemoryInvocationStore struct {
	mu          sync.RWMutex
	invocations []Invocation
}

// NewInMemoryInvocationStore creates a new InMemoryInvocationStore.
func NewInMemoryInvocationStore() *InMemoryInvocationStore {
	return &InMemoryInvocationStore{}
}

// RecordInvocation persists one completed tool call.
func (s *InMemoryInvocationStore) RecordInvocation(ctx context.Context, inv Invocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invocations = append(s.invocations, inv)
	return nil
}

// ListInvocations returns recorded calls, newest first.
func (s *InMemoryInvocationStore) ListInvocations(ctx context.Context, tool string, limit int) ([]Invocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Invocation, 0, len(s.invocations))
	for i := len(s.invocations) - 1; i >= 0; i-- {
		inv := s.invocations[i]
		if tool != "" && inv.Tool != tool {
			continue
		}
		matched = append(matched, inv)
		if limit > 0 && len(matched) == limit {
			break
		}
	}
	return matched, nil
}

// PurgeInvocations deletes records created before the given time.
func (s *InMemoryInvocationStore) PurgeInvocations(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.invocations[:0]
	var removed int64
	for _, inv := range s.invocations {
		if inv.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, inv)
	}
	s.invocations = kept
	return removed, nil
}
