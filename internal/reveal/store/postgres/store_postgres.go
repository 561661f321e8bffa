// Package postgres provides the production payment request store. Transitions
// are conditional single-statement updates.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"correio/internal/reveal"
	dErrors "correio/pkg/domain-errors"
	"correio/pkg/requestcontext"
)

//go:embed schema.sql
var schema string

// Store implements reveal.Store on PostgreSQL.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

// New creates a PostgreSQL-backed payment request store. Requests stay
// actionable for ttl; zero or negative uses the default.
func New(db *sql.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = reveal.RequestTTL
	}
	return &Store{db: db, ttl: ttl}
}

// EnsureSchema creates the payment tables when missing. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure reveal schema: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, req *reveal.PaymentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := requestcontext.Now(ctx)
	req.Status = reveal.StatusPending
	req.CreatedAt = now
	req.ExpiresAt = now.Add(s.ttl)

	query := `
		INSERT INTO payment_requests (
			id, requester_id, message_id, amount, destination_key,
			status, created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		req.ID, req.RequesterID, req.MessageID, req.Amount, req.DestinationKey,
		string(req.Status), req.CreatedAt, req.ExpiresAt,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "insert payment request")
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*reveal.PaymentRequest, error) {
	now := requestcontext.Now(ctx)

	// Lazy expiry: only non-terminal requests flip.
	flip := `
		UPDATE payment_requests
		SET status = $1
		WHERE id = $2 AND status IN ($3, $4) AND expires_at < $5
	`
	_, err := s.db.ExecContext(ctx, flip,
		string(reveal.StatusExpired), id,
		string(reveal.StatusPending), string(reveal.StatusAwaitingConfirmation), now,
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "expire payment request")
	}

	query := `
		SELECT id, requester_id, message_id, amount, destination_key,
		       status, created_at, expires_at, confirmed_at
		FROM payment_requests
		WHERE id = $1
	`
	var (
		req         reveal.PaymentRequest
		status      string
		confirmedAt sql.NullTime
	)
	err = s.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID, &req.RequesterID, &req.MessageID, &req.Amount, &req.DestinationKey,
		&status, &req.CreatedAt, &req.ExpiresAt, &confirmedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, "payment request not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "query payment request")
	}

	req.Status = reveal.Status(status)
	if confirmedAt.Valid {
		t := confirmedAt.Time
		req.ConfirmedAt = &t
	}
	return &req, nil
}

// Transitions carry the expiry guard inline so a request past its deadline
// cannot move even when the caller skipped the lazy-expiry read.
func (s *Store) MarkAwaiting(ctx context.Context, id string) (bool, error) {
	return s.transition(ctx,
		`UPDATE payment_requests SET status = $1 WHERE id = $2 AND status = $3 AND expires_at >= $4`,
		string(reveal.StatusAwaitingConfirmation), id, string(reveal.StatusPending),
		requestcontext.Now(ctx))
}

func (s *Store) Confirm(ctx context.Context, id string) (bool, error) {
	now := requestcontext.Now(ctx)
	return s.transition(ctx,
		`UPDATE payment_requests SET status = $1, confirmed_at = $4 WHERE id = $2 AND status = $3 AND expires_at >= $5`,
		string(reveal.StatusConfirmed), id, string(reveal.StatusAwaitingConfirmation),
		now, now)
}

func (s *Store) Deny(ctx context.Context, id string) (bool, error) {
	return s.transition(ctx,
		`UPDATE payment_requests SET status = $1 WHERE id = $2 AND status = $3 AND expires_at >= $4`,
		string(reveal.StatusDenied), id, string(reveal.StatusAwaitingConfirmation),
		requestcontext.Now(ctx))
}

func (s *Store) transition(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "transition payment request")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "transition payment request")
	}
	return affected == 1, nil
}
