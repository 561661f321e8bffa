package service

import (
	"context"
	"fmt"
	"log/slog"

	"correio/internal/reveal"
	"correio/internal/transport"
)

// ManualConfirmer routes payment assertions to a human approver over chat.
// The approver answers with the approve or deny command carrying the pix id.
type ManualConfirmer struct {
	chat       transport.Transport
	approverID string
	logger     *slog.Logger
}

// NewManualConfirmer builds a confirmer that DMs the given approver.
func NewManualConfirmer(chat transport.Transport, approverID string, logger *slog.Logger) (*ManualConfirmer, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat transport is required")
	}
	if approverID == "" {
		return nil, fmt.Errorf("approver id is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ManualConfirmer{chat: chat, approverID: approverID, logger: logger}, nil
}

// RequestConfirmation DMs the approver with the payment details and the
// commands that resolve it.
func (c *ManualConfirmer) RequestConfirmation(ctx context.Context, req *reveal.PaymentRequest) error {
	text := fmt.Sprintf(
		"💰 Pagamento aguardando confirmação\n\nPix: %s\nValor: R$ %s\nSolicitante: %s\n\nConfirmar: /aprovar %s\nRecusar: /recusar %s",
		req.ID, req.Amount, req.RequesterID, req.ID, req.ID,
	)
	if _, err := c.chat.SendDM(ctx, c.approverID, text); err != nil {
		return fmt.Errorf("notifying approver: %w", err)
	}
	c.logger.InfoContext(ctx, "approver notified", "pix_id", req.ID)
	return nil
}
