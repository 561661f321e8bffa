// Package memory provides the in-memory payment request store for unit tests
// and single-node development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"correio/internal/reveal"
	dErrors "correio/pkg/domain-errors"
	"correio/pkg/requestcontext"
)

// InMemoryStore implements reveal.Store with a mutex-guarded map.
type InMemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	requests map[string]*reveal.PaymentRequest
}

// New creates an empty in-memory store. Requests stay actionable for ttl;
// zero or negative uses the default.
func New(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = reveal.RequestTTL
	}
	return &InMemoryStore{ttl: ttl, requests: make(map[string]*reveal.PaymentRequest)}
}

func (s *InMemoryStore) Create(ctx context.Context, req *reveal.PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := requestcontext.Now(ctx)
	req.Status = reveal.StatusPending
	req.CreatedAt = now
	req.ExpiresAt = now.Add(s.ttl)

	stored := *req
	s.requests[req.ID] = &stored
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (*reveal.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "payment request not found")
	}

	if req.ExpiredAt(requestcontext.Now(ctx)) {
		req.Status = reveal.StatusExpired
	}

	clone := *req
	if req.ConfirmedAt != nil {
		t := *req.ConfirmedAt
		clone.ConfirmedAt = &t
	}
	return &clone, nil
}

func (s *InMemoryStore) MarkAwaiting(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok || req.Status != reveal.StatusPending || req.ExpiredAt(requestcontext.Now(ctx)) {
		return false, nil
	}
	req.Status = reveal.StatusAwaitingConfirmation
	return true, nil
}

func (s *InMemoryStore) Confirm(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok || req.Status != reveal.StatusAwaitingConfirmation {
		return false, nil
	}
	now := requestcontext.Now(ctx)
	if req.ExpiredAt(now) {
		return false, nil
	}
	req.Status = reveal.StatusConfirmed
	req.ConfirmedAt = &now
	return true, nil
}

func (s *InMemoryStore) Deny(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok || req.Status != reveal.StatusAwaitingConfirmation || req.ExpiredAt(requestcontext.Now(ctx)) {
		return false, nil
	}
	req.Status = reveal.StatusDenied
	return true, nil
}
