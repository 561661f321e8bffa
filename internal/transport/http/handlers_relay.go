package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"correio/internal/relay"
	"correio/internal/transport/http/shared"
	dErrors "correio/pkg/domain-errors"
)

// SubmissionService accepts new anonymous messages.
type SubmissionService interface {
	Submit(ctx context.Context, senderID, senderName, recipientHandle, body string) (*relay.AnonymousMessage, error)
}

// PublicationService triggers publication outside the scheduler's ticker.
type PublicationService interface {
	PublishAll(ctx context.Context) (int, error)
	PublishOne(ctx context.Context, id string) (bool, error)
}

// ModerationService files denunciations.
type ModerationService interface {
	Report(ctx context.Context, messageID, userID, userName string) error
}

// MessageReader fetches messages with lazy expiry applied.
type MessageReader interface {
	Get(ctx context.Context, id string) (*relay.AnonymousMessage, error)
}

type relayHandler struct {
	submission  SubmissionService
	publication PublicationService
	moderation  ModerationService
	messages    MessageReader
	logger      *slog.Logger
}

func (h *relayHandler) Register(r chi.Router) {
	r.Post("/relay/messages", h.handleSubmit)
	r.Get("/relay/messages/{id}", h.handleGet)
	r.Post("/relay/messages/{id}/report", h.handleReport)
	r.Post("/relay/publish", h.handlePublishAll)
	r.Post("/relay/publish/{id}", h.handlePublishOne)
}

type submitRequest struct {
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Recipient  string `json:"recipient"`
	Body       string `json:"body"`
}

// messageResponse deliberately omits sender identity; reveals go through the
// paid workflow only.
type messageResponse struct {
	ID          string     `json:"id"`
	Recipient   string     `json:"recipient"`
	Body        string     `json:"body"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Reports     int        `json:"reports"`
	Replies     int        `json:"replies"`
}

func toMessageResponse(msg *relay.AnonymousMessage) messageResponse {
	return messageResponse{
		ID:          msg.ID,
		Recipient:   msg.RecipientHandle,
		Body:        msg.Body,
		Status:      string(msg.Status),
		CreatedAt:   msg.CreatedAt,
		PublishedAt: msg.PublishedAt,
		ExpiresAt:   msg.ExpiresAt,
		Reports:     len(msg.Reports),
		Replies:     len(msg.Replies),
	}
}

func (h *relayHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.SenderID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "sender_id is required"))
		return
	}

	msg, err := h.submission.Submit(ctx, req.SenderID, req.SenderName, req.Recipient, req.Body)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *relayHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	msg, err := h.messages.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toMessageResponse(msg))
}

type reportRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

func (h *relayHandler) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.UserID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "user_id is required"))
		return
	}

	if err := h.moderation.Report(ctx, id, req.UserID, req.UserName); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePublishAll runs a publication cycle outside the ticker, for operators
// who do not want to wait out the period.
func (h *relayHandler) handlePublishAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	published, err := h.publication.PublishAll(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "manual publish cycle failed", "error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"published": published})
}

func (h *relayHandler) handlePublishOne(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	published, err := h.publication.PublishOne(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "manual publish failed", "message_id", id, "error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"published": published})
}
