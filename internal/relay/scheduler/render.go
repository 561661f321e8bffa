package scheduler

import (
	"fmt"
	"strings"

	"correio/internal/relay"
)

// RenderPost formats a message for the shared channel. The embedded commands
// carry the message id; readers trigger replies, reveals and reports through
// them.
func RenderPost(msg *relay.AnonymousMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💌 Correio Elegante para %s\n\n", msg.RecipientHandle)
	fmt.Fprintf(&b, "%q\n\n", msg.Body)
	fmt.Fprintf(&b, "Responder anonimamente: /responder %s\n", msg.ID)
	fmt.Fprintf(&b, "Descobrir quem enviou: /revelar %s\n", msg.ID)
	fmt.Fprintf(&b, "Denunciar: /denunciar %s", msg.ID)
	return b.String()
}
