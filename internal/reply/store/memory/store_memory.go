// Package memory provides an in-memory reply.AssociationStore for tests and
// single-instance deployments.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"correio/internal/reply"
	dErrors "correio/pkg/domain-errors"
	"correio/pkg/requestcontext"
)

type entry struct {
	messageID string
	expiresAt time.Time
}

// InMemoryStore keeps associations in a mutex-protected map.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
}

// New creates an empty association store.
func New() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]entry)}
}

// Set binds the replier to a message, replacing any previous binding.
func (s *InMemoryStore) Set(ctx context.Context, assoc reply.Association) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[assoc.ReplierID] = entry{
		messageID: assoc.MessageID,
		expiresAt: requestcontext.Now(ctx).Add(reply.AssociationTTL),
	}
	return nil
}

// Get returns the replier's pending association, treating an expired entry
// as absent.
func (s *InMemoryStore) Get(ctx context.Context, replierID string) (*reply.Association, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[replierID]
	if !ok || !requestcontext.Now(ctx).Before(e.expiresAt) {
		delete(s.entries, replierID)
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no pending reply for user %s", replierID))
	}
	return &reply.Association{ReplierID: replierID, MessageID: e.messageID}, nil
}

// Clear removes the replier's pending association.
func (s *InMemoryStore) Clear(ctx context.Context, replierID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, replierID)
	return nil
}
