// Package moderation lets readers denounce published messages. Enough
// reports retire the message without human review.
package moderation

import (
	"context"
	"fmt"
	"log/slog"

	"correio/internal/audit"
	"correio/internal/platform/metrics"
	"correio/internal/relay"
	"correio/pkg/requestcontext"
)

// Service files reports against messages. The store performs the append and
// the threshold check in one atomic step; this layer adds observability.
type Service struct {
	store   relay.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Publisher
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

// New builds the moderation service.
func New(store relay.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("relay store is required")
	}
	svc := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Report files a denunciation against the message. When this report reaches
// the threshold the message is already expired by the time we return.
func (s *Service) Report(ctx context.Context, messageID, userID, userName string) error {
	report := relay.Report{
		UserID:     userID,
		UserName:   userName,
		ReportedAt: requestcontext.Now(ctx),
	}
	expired, err := s.store.AddReport(ctx, messageID, report)
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ReportsFiled.Inc()
	}
	s.emit(ctx, audit.Event{
		ActorID: userID,
		Subject: messageID,
		Action:  audit.ActionMessageReported,
	})
	s.logger.InfoContext(ctx, "report filed", "message_id", messageID, "user_id", userID)

	if expired {
		if s.metrics != nil {
			s.metrics.MessagesExpired.Inc()
		}
		s.emit(ctx, audit.Event{
			ActorID: userID,
			Subject: messageID,
			Action:  audit.ActionMessageAutoExpired,
			Reason:  fmt.Sprintf("report threshold of %d reached", relay.ReportThreshold),
		})
		s.logger.InfoContext(ctx, "message auto-expired by reports", "message_id", messageID)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
