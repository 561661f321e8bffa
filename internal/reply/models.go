// Package reply relays anonymous answers back to a message's original sender
// without exposing either party's identity to the other.
package reply

import "time"

const (
	// BodyMinLen and BodyMaxLen bound the reply body, measured in runes.
	BodyMinLen = 5
	BodyMaxLen = 300

	// AssociationTTL is how long an initiated reply waits for its body
	// before the pending association is dropped.
	AssociationTTL = 10 * time.Minute
)

// Association links a replier to the message they are answering. One pending
// association per replier: starting a new reply replaces the previous one.
type Association struct {
	ReplierID string
	MessageID string
}
