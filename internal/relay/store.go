package relay

import "context"

// Store is the durable home of anonymous messages. It owns the records
// exclusively: services hold ids, never cached copies, and every mutation is
// a single atomic field-level operation so concurrent callers never
// read-modify-write.
//
// The request-scoped clock (requestcontext.Now) drives every expiry decision,
// which keeps lazy expiry deterministic under test.
type Store interface {
	// Create persists a new Pending message. Bounds checking happens in the
	// calling layer.
	Create(ctx context.Context, msg *AnonymousMessage) error

	// Get returns the message, flipping Published records past their
	// expires_at to Expired before returning. Returns CodeNotFound when the
	// id is unknown.
	Get(ctx context.Context, id string) (*AnonymousMessage, error)

	// ListPending returns all Pending messages in no particular order.
	// Callers must not assume FIFO.
	ListPending(ctx context.Context) ([]*AnonymousMessage, error)

	// MarkPublished transitions Pending -> Published only if the persisted
	// status is still Pending, recording the channel message id and setting
	// expires_at = published_at + PublishedTTL exactly once. A false return
	// means someone else already handled the message; callers treat it as an
	// expected race outcome, not an error.
	MarkPublished(ctx context.Context, id, channelMessageID string) (bool, error)

	// AddReveal adds the user to the revealed_to set. Idempotent; true when
	// newly added.
	AddReveal(ctx context.Context, id, userID string) (bool, error)

	// AddReport appends a denunciation and, once the count reaches
	// ReportThreshold, atomically sets status = Expired. Returns true when
	// this report is the one that expired the message.
	AddReport(ctx context.Context, id string, report Report) (bool, error)

	// AddReply appends a reply to the message.
	AddReply(ctx context.Context, id string, reply Reply) (bool, error)

	// CountToday returns how many messages the sender created since local
	// midnight, feeding the daily quota.
	CountToday(ctx context.Context, senderID string) (int, error)
}
