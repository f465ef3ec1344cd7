package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/martinsmelkis/bartering-app-backend-sub000/internal/errors"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/httputil"
)

type pendingFileQueue interface {
	QueuePendingFile(ctx context.Context, userID string, notice json.RawMessage) error
}

// FileNoticeHandler is the intake boundary for the file-transfer collaborator.
// It queues a notice that the recipient's streaming session picks up on its
// next connect.
type FileNoticeHandler struct {
	queue pendingFileQueue
}

func NewFileNoticeHandler(queue pendingFileQueue) *FileNoticeHandler {
	return &FileNoticeHandler{queue: queue}
}

func (h *FileNoticeHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/pending/{userID}", h.QueueNotice)

	return r
}

// POST /v1/files/pending/{userID}
func (h *FileNoticeHandler) QueueNotice(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		httputil.WriteError(w, apperrors.InvalidInput("request", "userID is required"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil || !json.Valid(body) {
		httputil.WriteError(w, apperrors.InvalidInput("body", "must be a JSON notice"))
		return
	}

	if err := h.queue.QueuePendingFile(r.Context(), userID, body); err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("failed to queue file notice")
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
