package reveal

import "time"

// Status is the lifecycle state of a payment request. Forward-only:
// Pending -> AwaitingConfirmation -> {Confirmed, Denied}; a request past its
// expires_at lazily flips to Expired and becomes inert.
type Status string

const (
	StatusPending              Status = "pending"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusConfirmed            Status = "confirmed"
	StatusDenied               Status = "denied"
	StatusExpired              Status = "expired"
)

// RequestTTL is how long a payment request stays actionable.
const RequestTTL = 30 * time.Minute

// PaymentRequest tracks one paid reveal attempt. Confirmation is a human
// decision relayed through the Confirmer, not a verified transaction.
type PaymentRequest struct {
	ID          string
	RequesterID string
	MessageID   string

	// Amount is the fixed fee displayed to the requester, and
	// DestinationKey the PIX key it should be sent to.
	Amount         string
	DestinationKey string

	Status      Status
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ConfirmedAt *time.Time
}

// Terminal reports whether the request can no longer move.
func (p *PaymentRequest) Terminal() bool {
	return p.Status == StatusConfirmed || p.Status == StatusDenied || p.Status == StatusExpired
}

// ExpiredAt reports whether the request should be treated as Expired at the
// given instant, regardless of the stored status.
func (p *PaymentRequest) ExpiredAt(now time.Time) bool {
	if p.Status == StatusExpired {
		return true
	}
	return !p.Terminal() && now.After(p.ExpiresAt)
}
