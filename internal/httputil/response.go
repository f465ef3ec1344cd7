package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/martinsmelkis/bartering-app-backend-sub000/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    apperrors.ErrorCode `json:"code"`
	Details any                 `json:"details,omitempty"`
}

// WriteError writes an AppError as an HTTP response with appropriate status code
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		// Wrap unknown errors as internal errors
		appErr = apperrors.Internal("An unexpected error occurred")
	}

	status := statusFromCode(appErr.Code)
	response := ErrorResponse{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	}

	WriteJSON(w, status, response)
}

// statusFromCode maps ErrorCode to HTTP status code
func statusFromCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeProtocol,
		apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest

	case apperrors.ErrCodeUnauthenticated,
		apperrors.ErrCodeTimestampExpired,
		apperrors.ErrCodeKeyMismatch,
		apperrors.ErrCodeBadSignature:
		return http.StatusUnauthorized

	case apperrors.ErrCodeBlocked:
		return http.StatusForbidden

	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound

	case apperrors.ErrCodeExternal:
		return http.StatusBadGateway

	case apperrors.ErrCodeInternal,
		apperrors.ErrCodeDatabase,
		apperrors.ErrCodeStorage:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
