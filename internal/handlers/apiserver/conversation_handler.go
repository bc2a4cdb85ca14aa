package apiserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"devotion-go/internal/models"
	"devotion-go/internal/services"
)

// ConversationHandler handles direct messages and the conversation list.
type ConversationHandler struct {
	sessionHandler
}

func NewConversationHandler(sessions SessionProvider) *ConversationHandler {
	return &ConversationHandler{sessionHandler{sessions}}
}

// SendMessagePayload is the body of POST /conversations/{peerID}/messages.
type SendMessagePayload struct {
	Content string `json:"content" validate:"required"`
}

// ConversationListResponse carries the list and the aggregate unread count.
type ConversationListResponse struct {
	Conversations []services.Conversation `json:"conversations"`
	UnreadTotal   int                     `json:"unread_total"`
}

// ListConversationsHandler handles GET /api/v1/conversations
func (h *ConversationHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	convs, err := s.Conversations.FetchConversations(r.Context())
	if err != nil {
		writeServiceError(w, err, "list conversations")
		return
	}
	if convs == nil {
		convs = []services.Conversation{}
	}
	writeJSONResponse(w, http.StatusOK, ConversationListResponse{Conversations: convs, UnreadTotal: s.Conversations.UnreadTotal()})
}

// GetMessagesHandler handles GET /api/v1/conversations/{peerID}/messages
// Opening a thread marks the peer's messages read in the background.
func (h *ConversationHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	msgs, err := s.Conversations.FetchMessages(r.Context(), mux.Vars(r)["peerID"])
	if err != nil {
		writeServiceError(w, err, "get messages")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeJSONResponse(w, http.StatusOK, msgs)
}

// SendMessageHandler handles POST /api/v1/conversations/{peerID}/messages
func (h *ConversationHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var payload SendMessagePayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	m, err := s.Conversations.SendMessage(r.Context(), mux.Vars(r)["peerID"], payload.Content)
	if err != nil {
		writeServiceError(w, err, "send message")
		return
	}
	writeJSONResponse(w, http.StatusCreated, m)
}
