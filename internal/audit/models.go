package audit

import "time"

// Action names the auditable things that happen in the relay.
const (
	ActionMessageSubmitted    = "message_submitted"
	ActionMessagePublished    = "message_published"
	ActionMessageReported     = "message_reported"
	ActionMessageAutoExpired  = "message_auto_expired"
	ActionRevealRequested     = "reveal_requested"
	ActionPaymentAsserted     = "payment_asserted"
	ActionPaymentConfirmed    = "payment_confirmed"
	ActionPaymentDenied       = "payment_denied"
	ActionApproveUnauthorized = "approve_unauthorized"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string
	Timestamp time.Time
	ActorID   string
	Subject   string
	Action    string
	Reason    string
	RequestID string
}
