// Package ratelimit enforces the per-sender daily message quota. The count
// comes from the relay store, so the quota survives restarts and is shared by
// every instance; the window resets at local midnight.
package ratelimit

import (
	"context"

	"correio/internal/relay"
)

// DefaultDailyQuota is how many messages one sender may submit per calendar
// day when no override is configured.
const DefaultDailyQuota = 2

// Limiter answers whether a sender may submit another message today.
type Limiter struct {
	store relay.Store
	quota int
}

// New builds a Limiter over the relay store. A non-positive quota falls back
// to DefaultDailyQuota.
func New(store relay.Store, quota int) *Limiter {
	if quota <= 0 {
		quota = DefaultDailyQuota
	}
	return &Limiter{store: store, quota: quota}
}

// Allow returns true while the sender is under today's quota.
func (l *Limiter) Allow(ctx context.Context, senderID string) (bool, error) {
	count, err := l.store.CountToday(ctx, senderID)
	if err != nil {
		return false, err
	}
	return count < l.quota, nil
}

// Quota exposes the configured limit for retry-after messaging.
func (l *Limiter) Quota() int { return l.quota }
