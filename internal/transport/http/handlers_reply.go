package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"correio/internal/transport/http/shared"
	dErrors "correio/pkg/domain-errors"
)

// ReplyService runs the two-step reply flow.
type ReplyService interface {
	Initiate(ctx context.Context, replierID, messageID string) error
	Submit(ctx context.Context, replierID, replierName, body string) error
}

type replyHandler struct {
	svc ReplyService
}

func (h *replyHandler) Register(r chi.Router) {
	r.Post("/reply/initiate", h.handleInitiate)
	r.Post("/reply/submit", h.handleSubmit)
}

type initiateReplyRequest struct {
	ReplierID string `json:"replier_id"`
	MessageID string `json:"message_id"`
}

func (h *replyHandler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.ReplierID == "" || req.MessageID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "replier_id and message_id are required"))
		return
	}

	if err := h.svc.Initiate(r.Context(), req.ReplierID, req.MessageID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitReplyRequest struct {
	ReplierID   string `json:"replier_id"`
	ReplierName string `json:"replier_name"`
	Body        string `json:"body"`
}

func (h *replyHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.ReplierID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "replier_id is required"))
		return
	}

	if err := h.svc.Submit(r.Context(), req.ReplierID, req.ReplierName, req.Body); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
