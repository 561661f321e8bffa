// Package service gates anonymous message submissions: quota, content filter,
// then durable create. Publication is the scheduler's job.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"correio/internal/platform/metrics"
	"correio/internal/relay"
	"correio/internal/relay/filter"
	"correio/internal/relay/ratelimit"
	dErrors "correio/pkg/domain-errors"
)

// Service accepts submissions into the pending queue.
type Service struct {
	store   relay.Store
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New builds the submission service.
func New(store relay.Store, limiter *ratelimit.Limiter, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("relay store is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	svc := &Service{
		store:   store,
		limiter: limiter,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Submit validates and persists a new anonymous message. Sender identity is
// captured here and never changes. Rejections leave no state behind.
func (s *Service) Submit(ctx context.Context, senderID, senderName, recipientHandle, body string) (*relay.AnonymousMessage, error) {
	if n := utf8.RuneCountInString(body); n < relay.BodyMinLen || n > relay.BodyMaxLen {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("message body must be between %d and %d characters", relay.BodyMinLen, relay.BodyMaxLen))
	}
	if recipientHandle == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "recipient is required")
	}
	if filter.IsOffensive(body) {
		return nil, dErrors.New(dErrors.CodeOffensiveContent, "message contains blocked terms")
	}

	allowed, err := s.limiter.Allow(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, dErrors.New(dErrors.CodeRateLimited,
			fmt.Sprintf("daily limit of %d messages reached, try again tomorrow", s.limiter.Quota()))
	}

	msg := &relay.AnonymousMessage{
		SenderID:        senderID,
		SenderName:      senderName,
		RecipientHandle: recipientHandle,
		Body:            body,
	}
	if err := s.store.Create(ctx, msg); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.MessagesSubmitted.Inc()
	}
	s.logger.InfoContext(ctx, "anonymous message accepted",
		"message_id", msg.ID,
		"recipient", recipientHandle,
	)
	return msg, nil
}
