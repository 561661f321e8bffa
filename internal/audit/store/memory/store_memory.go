// Package memory provides the in-memory audit sink used by unit tests.
package memory

import (
	"context"
	"sync"

	"correio/internal/audit"
)

// InMemoryStore collects events in order of arrival.
type InMemoryStore struct {
	mu     sync.Mutex
	events []audit.Event
}

func New() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of everything appended so far.
func (s *InMemoryStore) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event(nil), s.events...)
}
