package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"devotion-go/internal/logger"
	"devotion-go/internal/middleware"
	"devotion-go/internal/services"
)

var validate = validator.New()

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the body of mutations that return nothing else.
type MessageResponse struct {
	Message string `json:"message"`
}

// SessionProvider resolves the per-user session that owns a user's state.
type SessionProvider interface {
	Get(ctx context.Context, userID string) (*services.Session, error)
}

// sessionHandler is embedded by handlers that operate on the caller's session.
type sessionHandler struct {
	sessions SessionProvider
}

func (h sessionHandler) session(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	s, err := h.sessions.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "open session")
		return nil, false
	}
	return s, true
}

// decodeAndValidate reads a JSON body into v and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeJSONError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeServiceError maps service errors to HTTP status codes. Unknown errors
// are logged and reported as 500 without details.
func writeServiceError(w http.ResponseWriter, err error, op string) {
	status := http.StatusInternalServerError
	message := "internal error"
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrSelfReference):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrInvalidToken):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrDuplicateRelation), errors.Is(err, services.ErrAlreadyInvited),
		errors.Is(err, services.ErrInvalidState):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrExpired):
		status, message = http.StatusGone, err.Error()
	case errors.Is(err, services.ErrDeliveryFailed):
		status, message = http.StatusBadGateway, services.ErrDeliveryFailed.Error()
	case errors.Is(err, services.ErrTransport):
		status, message = http.StatusBadGateway, services.ErrTransport.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("op", op).Int("status", status).Msg("request failed")
	}
	writeJSONError(w, message, status)
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; nothing else can be reported to the client.
			logger.Warn().Err(err).Msg("failed to encode JSON response")
		}
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}
