// Package service drives the paid identity-reveal workflow. The approval step
// sits behind the Confirmer so a real payment gateway can later replace the
// human path without touching the state machine.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"correio/internal/audit"
	"correio/internal/platform/config"
	"correio/internal/platform/metrics"
	"correio/internal/relay"
	"correio/internal/reveal"
	"correio/internal/transport"
	dErrors "correio/pkg/domain-errors"
)

var tracer = otel.Tracer("correio/reveal/service")

// Confirmer asks the configured authority to confirm or deny an asserted
// payment. The production implementation DMs the human approver.
type Confirmer interface {
	RequestConfirmation(ctx context.Context, req *reveal.PaymentRequest) error
}

// Outcome is the result of a reveal request: either the message with sender
// identity (requester already paid) or a payment request to complete.
type Outcome struct {
	Revealed *relay.AnonymousMessage
	Payment  *reveal.PaymentRequest
}

// Service implements the reveal state machine over the payment and relay
// stores. It holds only transient ids; every mutation re-fetches persisted
// state first because independent tasks may race on the same id.
type Service struct {
	payments  reveal.Store
	messages  relay.Store
	chat      transport.Transport
	confirmer Confirmer
	cfg       config.RevealConfig
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     *audit.Publisher
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher *audit.Publisher) Option {
	return func(s *Service) { s.audit = publisher }
}

// New builds the reveal workflow service.
func New(payments reveal.Store, messages relay.Store, chat transport.Transport, confirmer Confirmer, cfg config.RevealConfig, opts ...Option) (*Service, error) {
	if payments == nil {
		return nil, fmt.Errorf("payment store is required")
	}
	if messages == nil {
		return nil, fmt.Errorf("relay store is required")
	}
	if chat == nil {
		return nil, fmt.Errorf("chat transport is required")
	}
	if confirmer == nil {
		return nil, fmt.Errorf("confirmer is required")
	}
	if cfg.ApproverID == "" {
		return nil, fmt.Errorf("approver id is required")
	}
	svc := &Service{
		payments:  payments,
		messages:  messages,
		chat:      chat,
		confirmer: confirmer,
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Request opens a payment request for the message, or short-circuits with the
// message content when the requester already paid (idempotent reveal for
// repeat viewers). A lazily expired message behaves as NotFound.
func (s *Service) Request(ctx context.Context, userID, messageID string) (*Outcome, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Status == relay.StatusExpired {
		return nil, dErrors.New(dErrors.CodeNotFound, "message not found")
	}

	if msg.RevealedFor(userID) {
		return &Outcome{Revealed: msg}, nil
	}

	req := &reveal.PaymentRequest{
		RequesterID:    userID,
		MessageID:      messageID,
		Amount:         s.cfg.FeeAmount,
		DestinationKey: s.cfg.PixKey,
	}
	if err := s.payments.Create(ctx, req); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RevealsRequested.Inc()
	}
	s.emit(ctx, audit.Event{
		ActorID: userID,
		Subject: req.ID,
		Action:  audit.ActionRevealRequested,
	})
	return &Outcome{Payment: req}, nil
}

// AssertPaid moves the request to AwaitingConfirmation and notifies the
// confirmer. The durable transition happens before the notification: human
// notification is best-effort, the state is not.
func (s *Service) AssertPaid(ctx context.Context, pixID string) error {
	ctx, span := tracer.Start(ctx, "reveal.assert_paid")
	defer span.End()

	req, err := s.payments.Get(ctx, pixID)
	if err != nil {
		return err
	}
	if req.Status == reveal.StatusExpired {
		return dErrors.New(dErrors.CodeNotFound, "payment request expired")
	}

	ok, err := s.payments.MarkAwaiting(ctx, pixID)
	if err != nil {
		return err
	}
	if !ok {
		// Already asserted or resolved; nothing to redo.
		return nil
	}

	s.emit(ctx, audit.Event{
		ActorID: req.RequesterID,
		Subject: pixID,
		Action:  audit.ActionPaymentAsserted,
	})

	req.Status = reveal.StatusAwaitingConfirmation
	if err := s.confirmer.RequestConfirmation(ctx, req); err != nil {
		s.logger.WarnContext(ctx, "approver notification failed",
			"pix_id", pixID, "error", err)
	}
	return nil
}

// Approve confirms the payment and applies the reveal side-effect exactly
// once. Only the configured approver may call it; an expired request behaves
// as NotFound, an already resolved one as a no-op.
func (s *Service) Approve(ctx context.Context, pixID, approverID string) error {
	ctx, span := tracer.Start(ctx, "reveal.approve")
	defer span.End()

	if err := s.authorize(ctx, pixID, approverID); err != nil {
		return err
	}

	req, err := s.payments.Get(ctx, pixID)
	if err != nil {
		return err
	}
	switch req.Status {
	case reveal.StatusExpired:
		return dErrors.New(dErrors.CodeNotFound, "payment request expired")
	case reveal.StatusConfirmed, reveal.StatusDenied:
		return nil
	case reveal.StatusPending:
		return dErrors.New(dErrors.CodeConflict, "payment not yet asserted")
	}

	// The reveal goes first because it is idempotent and Confirm is not: a
	// failure here leaves the payment awaiting, so a retried approval
	// reapplies the reveal and converges. The reverse order would strand a
	// confirmed payment with no reveal behind the resolved no-op above.
	if _, err := s.messages.AddReveal(ctx, req.MessageID, req.RequesterID); err != nil {
		return err
	}

	ok, err := s.payments.Confirm(ctx, pixID)
	if err != nil {
		return err
	}
	if !ok {
		// Lost the race to another approval or an expiry; idempotent no-op.
		return nil
	}

	if s.metrics != nil {
		s.metrics.RevealsConfirmed.Inc()
	}
	s.emit(ctx, audit.Event{
		ActorID: approverID,
		Subject: pixID,
		Action:  audit.ActionPaymentConfirmed,
	})

	// The reveal is durable at this point; delivery is best-effort.
	msg, err := s.messages.Get(ctx, req.MessageID)
	if err != nil {
		s.logger.WarnContext(ctx, "revealed message fetch failed", "message_id", req.MessageID, "error", err)
		return nil
	}
	text := fmt.Sprintf(
		"✅ Pagamento confirmado!\n\nRemetente: %s\nPara: %s\n\n%q",
		msg.SenderName, msg.RecipientHandle, msg.Body,
	)
	if _, err := s.chat.SendDM(ctx, req.RequesterID, text); err != nil {
		s.logger.WarnContext(ctx, "reveal delivery failed",
			"pix_id", pixID, "requester_id", req.RequesterID, "error", err)
	}
	return nil
}

// Deny rejects the payment. Same authorization and expiry rules as Approve.
func (s *Service) Deny(ctx context.Context, pixID, approverID string) error {
	ctx, span := tracer.Start(ctx, "reveal.deny")
	defer span.End()

	if err := s.authorize(ctx, pixID, approverID); err != nil {
		return err
	}

	req, err := s.payments.Get(ctx, pixID)
	if err != nil {
		return err
	}
	switch req.Status {
	case reveal.StatusExpired:
		return dErrors.New(dErrors.CodeNotFound, "payment request expired")
	case reveal.StatusConfirmed, reveal.StatusDenied:
		return nil
	case reveal.StatusPending:
		return dErrors.New(dErrors.CodeConflict, "payment not yet asserted")
	}

	ok, err := s.payments.Deny(ctx, pixID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if s.metrics != nil {
		s.metrics.RevealsDenied.Inc()
	}
	s.emit(ctx, audit.Event{
		ActorID: approverID,
		Subject: pixID,
		Action:  audit.ActionPaymentDenied,
	})

	if _, err := s.chat.SendDM(ctx, req.RequesterID,
		"❌ O pagamento não foi confirmado. Verifique o comprovante e tente novamente.",
	); err != nil {
		s.logger.WarnContext(ctx, "denial notification failed",
			"pix_id", pixID, "requester_id", req.RequesterID, "error", err)
	}
	return nil
}

// authorize enforces the single-approver rule. Failures are security
// relevant: audited and logged, with no state change.
func (s *Service) authorize(ctx context.Context, pixID, approverID string) error {
	if approverID == s.cfg.ApproverID {
		return nil
	}
	s.logger.WarnContext(ctx, "unauthorized approval attempt",
		"pix_id", pixID, "actor_id", approverID)
	s.emit(ctx, audit.Event{
		ActorID: approverID,
		Subject: pixID,
		Action:  audit.ActionApproveUnauthorized,
		Reason:  "actor is not the configured approver",
	})
	return dErrors.New(dErrors.CodeUnauthorized, "only the configured approver may resolve payments")
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
