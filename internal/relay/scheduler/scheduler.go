// Package scheduler moves messages Pending -> Published on a periodic loop
// with on-demand triggers. At-most-once publication state is guaranteed by the
// store's conditional transition, not by coordination between callers.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"correio/internal/platform/metrics"
	"correio/internal/relay"
	"correio/internal/transport"
	dErrors "correio/pkg/domain-errors"
	"correio/pkg/requestcontext"
)

const (
	// DefaultPeriod is the sleep between publication cycles.
	DefaultPeriod = time.Hour
	// DefaultStagger is the pause between consecutive channel posts within
	// one cycle.
	DefaultStagger = 2 * time.Second
)

var tracer = otel.Tracer("correio/relay/scheduler")

// Scheduler owns the periodic publication loop. On-demand PublishOne and
// PublishAll share the per-message path and may run concurrently with it.
type Scheduler struct {
	store       relay.Store
	chat        transport.Transport
	channelName string
	period      time.Duration
	stagger     time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithPeriod(period time.Duration) Option {
	return func(s *Scheduler) {
		if period > 0 {
			s.period = period
		}
	}
}

func WithStagger(stagger time.Duration) Option {
	return func(s *Scheduler) {
		if stagger >= 0 {
			s.stagger = stagger
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New builds a stopped scheduler.
func New(store relay.Store, chat transport.Transport, channelName string, opts ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, fmt.Errorf("relay store is required")
	}
	if chat == nil {
		return nil, fmt.Errorf("chat transport is required")
	}
	s := &Scheduler{
		store:       store,
		chat:        chat,
		channelName: channelName,
		period:      DefaultPeriod,
		stagger:     DefaultStagger,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handle is the owned lifecycle of a running loop. Stop cancels the pending
// sleep or iteration and waits for the loop to drain; an in-flight post is
// allowed to finish because the conditional transition makes rollback
// unnecessary.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the loop and blocks until it has exited.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Start launches the periodic loop and returns its handle. The loop sleeps
// first, so the initial batch goes out one period after start.
func (s *Scheduler) Start(ctx context.Context) *Handle {
	loopCtx, cancel := context.WithCancel(ctx)
	handle := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(handle.done)
		ticker := time.NewTicker(s.period)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if err := s.runCycle(loopCtx); err != nil {
					// Infra trouble is logged and the loop lives on to its
					// next cycle.
					s.logger.ErrorContext(loopCtx, "publication cycle failed", "error", err)
				}
			}
		}
	}()

	return handle
}

// PublishAll publishes every pending message immediately, independent of the
// timer. Safe to call while the loop runs.
func (s *Scheduler) PublishAll(ctx context.Context) (int, error) {
	return s.publishPending(ctx)
}

// PublishOne publishes a single pending message immediately. Returns false
// without error when another caller already published it.
func (s *Scheduler) PublishOne(ctx context.Context, id string) (bool, error) {
	channelID, err := s.chat.ResolveChannel(ctx, s.channelName)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeNotFound, "relay channel not resolved")
	}

	// Re-fetch current persisted state; the record may have raced to
	// Published or Expired since the caller last saw it.
	msg, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if msg.Status != relay.StatusPending {
		return false, nil
	}
	return s.publishMessage(ctx, channelID, msg)
}

// runCycle is one pass of the periodic loop.
func (s *Scheduler) runCycle(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "scheduler.cycle")
	defer span.End()

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.SchedulerCycles.Observe(time.Since(start).Seconds())
		}
	}()

	published, err := s.publishPending(ctx)
	span.SetAttributes(attribute.Int("published", published))
	return err
}

// publishPending is the shared batch path for the loop and PublishAll.
func (s *Scheduler) publishPending(ctx context.Context) (int, error) {
	channelID, err := s.chat.ResolveChannel(ctx, s.channelName)
	if err != nil {
		// An unresolved channel skips the batch; nothing propagates.
		s.logger.WarnContext(ctx, "relay channel not resolved, skipping batch",
			"channel", s.channelName, "error", err)
		return 0, nil
	}

	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	published := 0
	for i, msg := range pending {
		if ctx.Err() != nil {
			return published, nil
		}
		ok, err := s.publishMessage(ctx, channelID, msg)
		if err != nil {
			// The message stays Pending for the next cycle; the rest of the
			// batch proceeds.
			s.logger.WarnContext(ctx, "publish failed, message retried next cycle",
				"message_id", msg.ID, "error", err)
			if s.metrics != nil {
				s.metrics.PublishFailures.Inc()
			}
		} else if ok {
			published++
		}

		if i < len(pending)-1 {
			select {
			case <-ctx.Done():
				return published, nil
			case <-time.After(s.stagger):
			}
		}
	}
	return published, nil
}

// publishMessage posts one message and records the transition. A false return
// with nil error means another publisher won the conditional update.
func (s *Scheduler) publishMessage(ctx context.Context, channelID string, msg *relay.AnonymousMessage) (bool, error) {
	channelMessageID, err := s.chat.Send(ctx, channelID, RenderPost(msg))
	if err != nil {
		return false, err
	}

	ctx = requestcontext.WithTime(ctx, time.Now())
	ok, err := s.store.MarkPublished(ctx, msg.ID, channelMessageID)
	if err != nil {
		return false, err
	}
	if !ok {
		// Someone else already handled it: an expected race, not an error.
		s.logger.InfoContext(ctx, "message already published by another caller",
			"message_id", msg.ID)
		return false, nil
	}

	if s.metrics != nil {
		s.metrics.MessagesPublished.Inc()
	}
	s.logger.InfoContext(ctx, "message published",
		"message_id", msg.ID, "channel_message_id", channelMessageID)
	return true, nil
}
