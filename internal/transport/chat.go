// Package transport defines the chat collaborator surface the relay consumes.
// Implementations wrap a concrete chat platform; services depend only on this
// interface so delivery stays best-effort and swappable.
package transport

import "context"

// Transport is the outbound chat surface. Calls use bounded timeouts; a
// timeout is a failure, and retries happen only where the caller explicitly
// schedules them (the publication loop's next cycle).
type Transport interface {
	// Send posts text to a channel and returns the platform message id.
	Send(ctx context.Context, channelID, text string) (string, error)

	// SendDM delivers a direct message to a user. Returns CodeDelivery when
	// the platform refuses or times out.
	SendDM(ctx context.Context, userID, text string) (string, error)

	// ResolveChannel maps a configured channel name to a platform id.
	// Returns CodeNotFound when the channel cannot be resolved; callers skip
	// the cycle rather than propagate.
	ResolveChannel(ctx context.Context, name string) (string, error)
}
