// Package redis stores pending reply associations in Redis with a TTL so
// abandoned replies clean themselves up.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"correio/internal/reply"
	dErrors "correio/pkg/domain-errors"
)

const keyPrefix = "reply:assoc:"

// Store is a Redis-backed reply.AssociationStore.
type Store struct {
	client *goredis.Client
}

// New creates a Redis association store.
func New(client *goredis.Client) *Store {
	return &Store{client: client}
}

func key(replierID string) string {
	return keyPrefix + replierID
}

// Set binds the replier to a message. SET overwrites, so starting a new
// reply replaces the old binding and resets the TTL.
func (s *Store) Set(ctx context.Context, assoc reply.Association) error {
	err := s.client.Set(ctx, key(assoc.ReplierID), assoc.MessageID, reply.AssociationTTL).Err()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storing reply association")
	}
	return nil
}

// Get returns the replier's pending association.
func (s *Store) Get(ctx context.Context, replierID string) (*reply.Association, error) {
	messageID, err := s.client.Get(ctx, key(replierID)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no pending reply for user %s", replierID))
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "fetching reply association")
	}
	return &reply.Association{ReplierID: replierID, MessageID: messageID}, nil
}

// Clear removes the replier's pending association.
func (s *Store) Clear(ctx context.Context, replierID string) error {
	if err := s.client.Del(ctx, key(replierID)).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "clearing reply association")
	}
	return nil
}
