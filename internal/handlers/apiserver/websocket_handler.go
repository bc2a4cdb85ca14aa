package apiserver

import (
	"context"
	"encoding/json"
	"net/http"

	"devotion-go/internal/config"
	"devotion-go/internal/logger"
	"devotion-go/internal/middleware"
	"devotion-go/internal/services"
	ws "devotion-go/internal/websocket"
)

// SessionLease pins a session for the lifetime of a websocket connection.
type SessionLease interface {
	Acquire(ctx context.Context, userID string) (*services.Session, error)
	Release(userID string)
}

// WebSocketHandler upgrades authenticated requests to the push channel that
// carries view updates to the browser.
type WebSocketHandler struct {
	hub      *ws.Hub
	sessions SessionLease
	wsCfg    config.WebSocketConfig
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(hub *ws.Hub, sessions SessionLease, wsCfg config.WebSocketConfig) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, sessions: sessions, wsCfg: wsCfg}
}

// ClientCommand is a text frame sent by the browser.
type ClientCommand struct {
	Action string `json:"action"` // "open_thread" or "close_thread"
	PeerID string `json:"peer_id,omitempty"`
}

// ServeWS handles GET /api/v1/ws
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	session, err := h.sessions.Acquire(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "open session")
		return
	}

	onMessage := func(ctx context.Context, userID string, payload []byte) {
		var cmd ClientCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			logger.Debug().Err(err).Str("user_id", userID).Msg("ignoring malformed websocket command")
			return
		}
		switch cmd.Action {
		case "open_thread":
			if _, err := session.Conversations.FetchMessages(ctx, cmd.PeerID); err != nil {
				logger.Warn().Err(err).Str("user_id", userID).Str("peer_id", cmd.PeerID).Msg("open thread failed")
			}
		case "close_thread":
			session.Conversations.CloseThread()
		default:
			logger.Debug().Str("user_id", userID).Str("action", cmd.Action).Msg("unknown websocket command")
		}
	}
	onClose := func() { h.sessions.Release(userID) }

	if err := ws.ServeWs(h.hub, userID, w, r, h.wsCfg, onMessage, onClose); err != nil {
		// The upgrader has already written an HTTP error.
		logger.Warn().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		h.sessions.Release(userID)
	}
}
