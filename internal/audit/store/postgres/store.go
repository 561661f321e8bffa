// Package postgres implements the audit store using the transactional outbox
// pattern. Events are written to the outbox table and relayed to Kafka by the
// outbox worker; Kafka is the source of truth for audit consumers.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"correio/internal/audit"
)

//go:embed schema.sql
var schema string

// Store writes audit events to the outbox table.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the outbox table when missing. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// audit.Event for proper deserialization by consumers.
type outboxPayload struct {
	ID        string `json:"ID"`
	Timestamp string `json:"Timestamp"`
	ActorID   string `json:"ActorID,omitempty"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Reason    string `json:"Reason,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload := outboxPayload{
		ID:        event.ID,
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		ActorID:   event.ActorID,
		Subject:   event.Subject,
		Action:    event.Action,
		Reason:    event.Reason,
		RequestID: event.RequestID,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_outbox (id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.New(),
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// FetchUnpublished returns up to limit unpublished outbox rows, oldest first.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	query := `
		SELECT id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var e audit.OutboxEntry
		if err := rows.Scan(&e.ID, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps an outbox row as relayed. Safe to call twice; the
// relay is at-least-once and consumers dedupe on event id.
func (s *Store) MarkPublished(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE audit_outbox SET published_at = $1 WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("mark outbox entry published: %w", err)
	}
	return nil
}
