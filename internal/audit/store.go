package audit

import "context"

// Store is the append-only sink for audit events. The postgres
// implementation writes an outbox row; the worker relays outbox rows to
// Kafka, which is the source of truth downstream.
type Store interface {
	Append(ctx context.Context, event Event) error
}
