// Package postgres provides the production relay store. Every mutation is a
// single statement (insert, conditional update, or insert-on-conflict) so the
// store never read-modify-writes on behalf of callers.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"correio/internal/relay"
	dErrors "correio/pkg/domain-errors"
	"correio/pkg/requestcontext"
)

//go:embed schema.sql
var schema string

// Store implements relay.Store on PostgreSQL via database/sql (pgx stdlib
// driver). Reveals, reports and replies live in child tables so appends and
// set-adds stay atomic without touching the parent row.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed relay store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the relay tables when missing. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure relay schema: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, msg *relay.AnonymousMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Status = relay.StatusPending
	msg.CreatedAt = requestcontext.Now(ctx)

	query := `
		INSERT INTO anonymous_messages (
			id, sender_id, sender_name, recipient_handle, body,
			status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.SenderID,
		msg.SenderName,
		msg.RecipientHandle,
		msg.Body,
		string(msg.Status),
		msg.CreatedAt,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "insert anonymous message")
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*relay.AnonymousMessage, error) {
	now := requestcontext.Now(ctx)

	// Lazy expiry first: flip a published message past its deadline before
	// reading. The WHERE clause keeps the transition one-way.
	flip := `
		UPDATE anonymous_messages
		SET status = $1
		WHERE id = $2 AND status = $3 AND expires_at IS NOT NULL AND expires_at < $4
	`
	if _, err := s.db.ExecContext(ctx, flip, string(relay.StatusExpired), id, string(relay.StatusPublished), now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "expire anonymous message")
	}

	query := `
		SELECT id, sender_id, sender_name, recipient_handle, body,
		       status, created_at, published_at, expires_at,
		       published_channel_message_id
		FROM anonymous_messages
		WHERE id = $1
	`
	var (
		msg         relay.AnonymousMessage
		status      string
		publishedAt sql.NullTime
		expiresAt   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.SenderName,
		&msg.RecipientHandle,
		&msg.Body,
		&status,
		&msg.CreatedAt,
		&publishedAt,
		&expiresAt,
		&msg.PublishedChannelMessageID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, "message not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "query anonymous message")
	}

	msg.Status = relay.Status(status)
	if publishedAt.Valid {
		t := publishedAt.Time
		msg.PublishedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		msg.ExpiresAt = &t
	}

	if err := s.loadChildren(ctx, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Store) ListPending(ctx context.Context) ([]*relay.AnonymousMessage, error) {
	query := `
		SELECT id, sender_id, sender_name, recipient_handle, body, created_at
		FROM anonymous_messages
		WHERE status = $1
	`
	rows, err := s.db.QueryContext(ctx, query, string(relay.StatusPending))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "query pending messages")
	}
	defer rows.Close()

	var pending []*relay.AnonymousMessage
	for rows.Next() {
		msg := &relay.AnonymousMessage{Status: relay.StatusPending}
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.SenderName, &msg.RecipientHandle, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "scan pending message")
		}
		pending = append(pending, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "iterate pending messages")
	}
	return pending, nil
}

func (s *Store) MarkPublished(ctx context.Context, id, channelMessageID string) (bool, error) {
	now := requestcontext.Now(ctx)
	expires := now.Add(relay.PublishedTTL)

	// Conditional transition: only the caller that still observes Pending
	// wins. The loser sees zero rows and treats it as an expected race.
	query := `
		UPDATE anonymous_messages
		SET status = $1, published_at = $2, expires_at = $3,
		    published_channel_message_id = $4
		WHERE id = $5 AND status = $6
	`
	res, err := s.db.ExecContext(ctx, query,
		string(relay.StatusPublished), now, expires, channelMessageID,
		id, string(relay.StatusPending),
	)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "mark message published")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "mark message published")
	}
	return affected == 1, nil
}

func (s *Store) AddReveal(ctx context.Context, id, userID string) (bool, error) {
	if err := s.requireMessage(ctx, id); err != nil {
		return false, err
	}

	query := `
		INSERT INTO message_reveals (message_id, user_id, revealed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, id, userID, requestcontext.Now(ctx))
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "insert reveal")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "insert reveal")
	}
	return affected == 1, nil
}

func (s *Store) AddReport(ctx context.Context, id string, report relay.Report) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "begin report tx")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Lock the parent row so concurrent reporters serialize and the third
	// one always observes the full count.
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM anonymous_messages WHERE id = $1 FOR UPDATE`, id,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, dErrors.New(dErrors.CodeNotFound, "message not found")
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "lock reported message")
	}

	insert := `
		INSERT INTO message_reports (message_id, user_id, user_name, reported_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.ExecContext(ctx, insert, id, report.UserID, report.UserName, report.ReportedAt); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "insert report")
	}

	// The threshold check rides in the same transaction so three concurrent
	// reporters cannot leave the message unexpired.
	expire := `
		UPDATE anonymous_messages
		SET status = $1
		WHERE id = $2
		  AND status <> $1
		  AND (SELECT COUNT(*) FROM message_reports WHERE message_id = $2) >= $3
	`
	res, err := tx.ExecContext(ctx, expire, string(relay.StatusExpired), id, relay.ReportThreshold)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "expire reported message")
	}
	expired, err := res.RowsAffected()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "expire reported message")
	}

	if err := tx.Commit(); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "commit report tx")
	}
	return expired == 1, nil
}

func (s *Store) AddReply(ctx context.Context, id string, reply relay.Reply) (bool, error) {
	query := `
		INSERT INTO message_replies (message_id, body, sender_id, sender_name, sent_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.ExecContext(ctx, query, id, reply.Body, reply.SenderID, reply.SenderName, reply.SentAt); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "insert reply")
	}
	return true, nil
}

func (s *Store) CountToday(ctx context.Context, senderID string) (int, error) {
	now := requestcontext.Now(ctx)
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	query := `
		SELECT COUNT(*)
		FROM anonymous_messages
		WHERE sender_id = $1 AND created_at >= $2
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, senderID, midnight).Scan(&count); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "count today's messages")
	}
	return count, nil
}

// requireMessage maps a missing parent row to CodeNotFound before a child
// insert would surface it as a foreign key violation.
func (s *Store) requireMessage(ctx context.Context, id string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM anonymous_messages WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "check message exists")
	}
	if !exists {
		return dErrors.New(dErrors.CodeNotFound, "message not found")
	}
	return nil
}

func (s *Store) loadChildren(ctx context.Context, msg *relay.AnonymousMessage) error {
	reveals, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM message_reveals WHERE message_id = $1 ORDER BY revealed_at`, msg.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "query reveals")
	}
	defer reveals.Close()
	for reveals.Next() {
		var userID string
		if err := reveals.Scan(&userID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "scan reveal")
		}
		msg.RevealedTo = append(msg.RevealedTo, userID)
	}
	if err := reveals.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "iterate reveals")
	}

	reports, err := s.db.QueryContext(ctx,
		`SELECT user_id, user_name, reported_at FROM message_reports WHERE message_id = $1 ORDER BY reported_at`, msg.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "query reports")
	}
	defer reports.Close()
	for reports.Next() {
		var r relay.Report
		if err := reports.Scan(&r.UserID, &r.UserName, &r.ReportedAt); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "scan report")
		}
		msg.Reports = append(msg.Reports, r)
	}
	if err := reports.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "iterate reports")
	}

	replies, err := s.db.QueryContext(ctx,
		`SELECT body, sender_id, sender_name, sent_at FROM message_replies WHERE message_id = $1 ORDER BY sent_at`, msg.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "query replies")
	}
	defer replies.Close()
	for replies.Next() {
		var r relay.Reply
		if err := replies.Scan(&r.Body, &r.SenderID, &r.SenderName, &r.SentAt); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "scan reply")
		}
		msg.Replies = append(msg.Replies, r)
	}
	if err := replies.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "iterate replies")
	}

	return nil
}
