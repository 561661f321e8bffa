package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	revealservice "correio/internal/reveal/service"
	"correio/internal/transport/http/shared"
	dErrors "correio/pkg/domain-errors"
	"correio/pkg/requestcontext"
)

// RevealService runs the paid reveal workflow.
type RevealService interface {
	Request(ctx context.Context, userID, messageID string) (*revealservice.Outcome, error)
	AssertPaid(ctx context.Context, pixID string) error
	Approve(ctx context.Context, pixID, approverID string) error
	Deny(ctx context.Context, pixID, approverID string) error
}

type revealHandler struct {
	svc    RevealService
	logger *slog.Logger
}

func (h *revealHandler) Register(r chi.Router) {
	r.Post("/reveal/requests", h.handleRequest)
	r.Post("/reveal/{pixID}/paid", h.handlePaid)
	r.Post("/reveal/{pixID}/approve", h.resolve(h.svc.Approve, "approve"))
	r.Post("/reveal/{pixID}/deny", h.resolve(h.svc.Deny, "deny"))
}

type revealRequest struct {
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
}

type revealedMessage struct {
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Recipient  string `json:"recipient"`
	Body       string `json:"body"`
}

type paymentResponse struct {
	PixID          string    `json:"pix_id"`
	Amount         string    `json:"amount"`
	DestinationKey string    `json:"destination_key"`
	Status         string    `json:"status"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type revealOutcomeResponse struct {
	Revealed *revealedMessage `json:"revealed,omitempty"`
	Payment  *paymentResponse `json:"payment,omitempty"`
}

func (h *revealHandler) handleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req revealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.UserID == "" || req.MessageID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "user_id and message_id are required"))
		return
	}

	outcome, err := h.svc.Request(ctx, req.UserID, req.MessageID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resp := revealOutcomeResponse{}
	if outcome.Revealed != nil {
		resp.Revealed = &revealedMessage{
			SenderID:   outcome.Revealed.SenderID,
			SenderName: outcome.Revealed.SenderName,
			Recipient:  outcome.Revealed.RecipientHandle,
			Body:       outcome.Revealed.Body,
		}
		shared.WriteJSON(w, http.StatusOK, resp)
		return
	}
	resp.Payment = &paymentResponse{
		PixID:          outcome.Payment.ID,
		Amount:         outcome.Payment.Amount,
		DestinationKey: outcome.Payment.DestinationKey,
		Status:         string(outcome.Payment.Status),
		ExpiresAt:      outcome.Payment.ExpiresAt,
	}
	shared.WriteJSON(w, http.StatusCreated, resp)
}

// handlePaid records the requester's claim of payment and pings the approver.
func (h *revealHandler) handlePaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pixID := chi.URLParam(r, "pixID")

	if err := h.svc.AssertPaid(ctx, pixID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolve shares the approve and deny plumbing; the acting approver is the
// authenticated JWT subject, so the service keeps the authorization decision.
func (h *revealHandler) resolve(fn func(ctx context.Context, pixID, approverID string) error, verb string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		pixID := chi.URLParam(r, "pixID")

		actorID := requestcontext.ActorID(ctx)
		if actorID == "" {
			h.logger.ErrorContext(ctx, "actor missing from context despite auth middleware", "pix_id", pixID)
			shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
			return
		}

		if err := fn(ctx, pixID, actorID); err != nil {
			h.logger.WarnContext(ctx, "payment resolution failed",
				"verb", verb, "pix_id", pixID, "actor_id", actorID, "error", err)
			shared.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
