// Package service relays replies from recipients back to anonymous senders.
// Submitting is a two-step flow: the replier first names the message, then
// sends the body, which keeps the chat commands short.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"correio/internal/platform/metrics"
	"correio/internal/relay"
	"correio/internal/relay/filter"
	"correio/internal/reply"
	"correio/internal/transport"
	dErrors "correio/pkg/domain-errors"
	"correio/pkg/requestcontext"
)

// Service coordinates the reply flow across the association store, the
// message store and the chat transport.
type Service struct {
	associations reply.AssociationStore
	messages     relay.Store
	chat         transport.Transport
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New builds the reply relay service.
func New(associations reply.AssociationStore, messages relay.Store, chat transport.Transport, opts ...Option) (*Service, error) {
	if associations == nil {
		return nil, fmt.Errorf("association store is required")
	}
	if messages == nil {
		return nil, fmt.Errorf("relay store is required")
	}
	if chat == nil {
		return nil, fmt.Errorf("chat transport is required")
	}
	svc := &Service{
		associations: associations,
		messages:     messages,
		chat:         chat,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Initiate opens a reply to the given message. The message must exist and not
// be expired; starting a new reply replaces any earlier pending one.
func (s *Service) Initiate(ctx context.Context, replierID, messageID string) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.Status == relay.StatusExpired {
		return dErrors.New(dErrors.CodeNotFound, "message not found")
	}

	if err := s.associations.Set(ctx, reply.Association{ReplierID: replierID, MessageID: messageID}); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "reply initiated", "replier_id", replierID, "message_id", messageID)
	return nil
}

// Submit validates and persists the pending reply, then forwards it to the
// original sender. The durable append happens before delivery: a failed DM
// loses the notification, never the reply. Validation failures keep the
// association alive so the replier can resend a corrected body.
//
// A submit without a pending association returns NotFound rather than
// silently succeeding: the orchestrator needs the signal to tell the user
// their reply window closed, and it can downgrade to a no-op itself.
func (s *Service) Submit(ctx context.Context, replierID, replierName, body string) error {
	assoc, err := s.associations.Get(ctx, replierID)
	if err != nil {
		return err
	}

	if n := utf8.RuneCountInString(body); n < reply.BodyMinLen || n > reply.BodyMaxLen {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("reply must be between %d and %d characters", reply.BodyMinLen, reply.BodyMaxLen))
	}
	if filter.IsOffensive(body) {
		return dErrors.New(dErrors.CodeOffensiveContent, "reply contains blocked content")
	}

	msg, err := s.messages.Get(ctx, assoc.MessageID)
	if err != nil {
		return err
	}

	r := relay.Reply{
		Body:       body,
		SenderID:   replierID,
		SenderName: replierName,
		SentAt:     requestcontext.Now(ctx),
	}
	if _, err := s.messages.AddReply(ctx, assoc.MessageID, r); err != nil {
		return err
	}

	// The reply is stored; from here on the association is spent whether or
	// not delivery works out.
	if err := s.associations.Clear(ctx, replierID); err != nil {
		s.logger.WarnContext(ctx, "reply association clear failed", "replier_id", replierID, "error", err)
	}

	if s.metrics != nil {
		s.metrics.RepliesRelayed.Inc()
	}

	text := fmt.Sprintf("💬 Resposta ao seu correio para %s:\n\n%q", msg.RecipientHandle, body)
	if _, err := s.chat.SendDM(ctx, msg.SenderID, text); err != nil {
		s.logger.WarnContext(ctx, "reply delivery failed",
			"message_id", assoc.MessageID, "sender_id", msg.SenderID, "error", err)
	}
	s.logger.InfoContext(ctx, "reply relayed", "message_id", assoc.MessageID, "replier_id", replierID)
	return nil
}
