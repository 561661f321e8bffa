package reveal

import "context"

// Store persists payment requests. Transitions are conditional single-field
// updates so concurrent approvals and expiries cannot double-apply; a false
// return means the persisted state already moved on.
type Store interface {
	// Create persists a new Pending request with its expiry already set.
	Create(ctx context.Context, req *PaymentRequest) error

	// Get returns the request, lazily flipping a non-terminal record past
	// its expires_at to Expired first. Returns CodeNotFound for unknown ids.
	Get(ctx context.Context, id string) (*PaymentRequest, error)

	// MarkAwaiting transitions Pending -> AwaitingConfirmation.
	MarkAwaiting(ctx context.Context, id string) (bool, error)

	// Confirm transitions AwaitingConfirmation -> Confirmed and stamps
	// confirmed_at.
	Confirm(ctx context.Context, id string) (bool, error)

	// Deny transitions AwaitingConfirmation -> Denied.
	Deny(ctx context.Context, id string) (bool, error)
}
