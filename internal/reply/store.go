package reply

import "context"

// AssociationStore keeps the short-lived replier-to-message bindings.
// Implementations expire entries after AssociationTTL.
type AssociationStore interface {
	// Set binds the replier to a message, replacing any previous binding.
	Set(ctx context.Context, assoc Association) error

	// Get returns the replier's pending association. Returns a NotFound
	// error when none exists or it has expired.
	Get(ctx context.Context, replierID string) (*Association, error)

	// Clear removes the replier's pending association, if any.
	Clear(ctx context.Context, replierID string) error
}
