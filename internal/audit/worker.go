package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// OutboxSource is the slice of the postgres store the worker needs.
type OutboxSource interface {
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
}

// OutboxEntry is one unpublished row awaiting relay.
type OutboxEntry struct {
	ID      uuid.UUID
	Payload []byte
}

// Sink is where relayed payloads go; in production the Kafka publisher.
type Sink interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Worker drains the outbox into the sink. Relay is at-least-once: a crash
// between Publish and MarkPublished re-sends the row, and consumers dedupe
// on event id.
type Worker struct {
	source   OutboxSource
	sink     Sink
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

func NewWorker(source OutboxSource, sink Sink, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Worker{source: source, sink: sink, interval: interval, batch: 100, logger: logger}
}

// Run drains the outbox until the context is canceled. A failed batch is
// logged and retried on the next tick rather than terminating the worker.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	entries, err := w.source.FetchUnpublished(ctx, w.batch)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := w.sink.Publish(ctx, entry.ID.String(), entry.Payload); err != nil {
			return err
		}
		if err := w.source.MarkPublished(ctx, entry.ID); err != nil {
			return err
		}
	}
	return nil
}
