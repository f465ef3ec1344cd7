package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/martinsmelkis/bartering-app-backend-sub000/internal/errors"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/httputil"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/service"
)

// ReceiptHandler exposes delivery status to senders that were offline when
// the status frames were pushed.
type ReceiptHandler struct {
	receipts *service.Receipts
}

func NewReceiptHandler(receipts *service.Receipts) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts}
}

func (h *ReceiptHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{messageID}", h.GetStatus)

	return r
}

// GET /v1/receipts/{messageID}?recipientId=...
func (h *ReceiptHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	recipientID := r.URL.Query().Get("recipientId")
	if messageID == "" || recipientID == "" {
		httputil.WriteError(w, apperrors.InvalidInput("request", "messageID and recipientId are required"))
		return
	}

	receipt, err := h.receipts.Status(r.Context(), messageID, recipientID)
	if err != nil {
		log.Error().Err(err).Str("messageId", messageID).Msg("failed to load receipt")
		httputil.WriteError(w, err)
		return
	}
	if receipt == nil {
		httputil.WriteError(w, apperrors.NotFound("Receipt"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"messageId":       receipt.MessageID,
		"recipientId":     receipt.RecipientID,
		"senderId":        receipt.SenderID,
		"status":          receipt.Status,
		"statusChangedAt": receipt.StatusChangedAt,
	})
}
