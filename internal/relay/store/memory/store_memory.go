// Package memory provides the in-memory relay store used by unit tests and
// single-node development. Production deployments use the postgres store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"correio/internal/relay"
	dErrors "correio/pkg/domain-errors"
	"correio/pkg/requestcontext"
)

// InMemoryStore implements relay.Store with a mutex-guarded map. Mutations
// mirror the atomic field-level semantics of the postgres store so behavior
// under concurrent callers matches.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages map[string]*relay.AnonymousMessage
}

// New creates an empty in-memory store.
func New() *InMemoryStore {
	return &InMemoryStore{messages: make(map[string]*relay.AnonymousMessage)}
}

func (s *InMemoryStore) Create(ctx context.Context, msg *relay.AnonymousMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Status = relay.StatusPending
	msg.CreatedAt = requestcontext.Now(ctx)

	stored := cloneMessage(msg)
	s.messages[msg.ID] = stored
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (*relay.AnonymousMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "message not found")
	}

	// Lazy expiry: a published message read past its expires_at flips before
	// it is returned.
	now := requestcontext.Now(ctx)
	if msg.Status == relay.StatusPublished && msg.ExpiresAt != nil && now.After(*msg.ExpiresAt) {
		msg.Status = relay.StatusExpired
	}

	return cloneMessage(msg), nil
}

func (s *InMemoryStore) ListPending(ctx context.Context) ([]*relay.AnonymousMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*relay.AnonymousMessage
	for _, msg := range s.messages {
		if msg.Status == relay.StatusPending {
			pending = append(pending, cloneMessage(msg))
		}
	}
	return pending, nil
}

func (s *InMemoryStore) MarkPublished(ctx context.Context, id, channelMessageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok || msg.Status != relay.StatusPending {
		return false, nil
	}

	now := requestcontext.Now(ctx)
	expires := now.Add(relay.PublishedTTL)
	msg.Status = relay.StatusPublished
	msg.PublishedAt = &now
	msg.ExpiresAt = &expires
	msg.PublishedChannelMessageID = channelMessageID
	return true, nil
}

func (s *InMemoryStore) AddReveal(ctx context.Context, id, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return false, dErrors.New(dErrors.CodeNotFound, "message not found")
	}
	for _, existing := range msg.RevealedTo {
		if existing == userID {
			return false, nil
		}
	}
	msg.RevealedTo = append(msg.RevealedTo, userID)
	return true, nil
}

func (s *InMemoryStore) AddReport(ctx context.Context, id string, report relay.Report) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return false, dErrors.New(dErrors.CodeNotFound, "message not found")
	}
	msg.Reports = append(msg.Reports, report)
	if msg.Status != relay.StatusExpired && len(msg.Reports) >= relay.ReportThreshold {
		msg.Status = relay.StatusExpired
		return true, nil
	}
	return false, nil
}

func (s *InMemoryStore) AddReply(ctx context.Context, id string, reply relay.Reply) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return false, dErrors.New(dErrors.CodeNotFound, "message not found")
	}
	msg.Replies = append(msg.Replies, reply)
	return true, nil
}

func (s *InMemoryStore) CountToday(ctx context.Context, senderID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := requestcontext.Now(ctx)
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	count := 0
	for _, msg := range s.messages {
		if msg.SenderID == senderID && !msg.CreatedAt.Before(midnight) {
			count++
		}
	}
	return count, nil
}

func cloneMessage(msg *relay.AnonymousMessage) *relay.AnonymousMessage {
	clone := *msg
	if msg.PublishedAt != nil {
		t := *msg.PublishedAt
		clone.PublishedAt = &t
	}
	if msg.ExpiresAt != nil {
		t := *msg.ExpiresAt
		clone.ExpiresAt = &t
	}
	clone.RevealedTo = append([]string(nil), msg.RevealedTo...)
	clone.Reports = append([]relay.Report(nil), msg.Reports...)
	clone.Replies = append([]relay.Reply(nil), msg.Replies...)
	return &clone
}
