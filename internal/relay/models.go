package relay

import "time"

// Status is the lifecycle state of an anonymous message. Transitions only
// move forward: Pending -> Published -> Expired, or Pending -> Expired.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusExpired   Status = "expired"
)

const (
	// PublishedTTL is how long a message stays visible after publication.
	// expires_at is set exactly once, at publish time.
	PublishedTTL = 24 * time.Hour

	// ReportThreshold is the number of denunciations that force-expires a
	// published message.
	ReportThreshold = 3

	// BodyMinLen and BodyMaxLen bound the message body. Checked by the
	// submission service, not by stores.
	BodyMinLen = 10
	BodyMaxLen = 500
)

// AnonymousMessage is a user-submitted note addressed to a named recipient,
// published without revealing the sender unless paid-for. Sender identity is
// fixed at creation; the recipient handle is free text and never validated.
type AnonymousMessage struct {
	ID              string
	SenderID        string
	SenderName      string
	RecipientHandle string
	Body            string
	Status          Status
	CreatedAt       time.Time
	PublishedAt     *time.Time
	ExpiresAt       *time.Time

	// PublishedChannelMessageID is the chat transport's id for the channel
	// post, set by the conditional publish transition.
	PublishedChannelMessageID string

	// RevealedTo is the append-only set of users who paid to learn the
	// sender identity.
	RevealedTo []string

	Reports []Report
	Replies []Reply
}

// Report is one denunciation raised by a viewer against a published message.
type Report struct {
	UserID     string
	UserName   string
	ReportedAt time.Time
}

// Reply is one anonymous reply relayed back to the original sender.
type Reply struct {
	Body       string
	SenderID   string
	SenderName string
	SentAt     time.Time
}

// IsExpired reports whether the message should be treated as Expired at the
// given instant, regardless of the stored status (lazy expiry).
func (m *AnonymousMessage) IsExpired(now time.Time) bool {
	if m.Status == StatusExpired {
		return true
	}
	return m.Status == StatusPublished && m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

// RevealedFor reports whether the given user already paid for this message.
func (m *AnonymousMessage) RevealedFor(userID string) bool {
	for _, id := range m.RevealedTo {
		if id == userID {
			return true
		}
	}
	return false
}
