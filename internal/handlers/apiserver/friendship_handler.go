package apiserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"devotion-go/internal/services"
)

// FriendshipHandler handles HTTP requests related to friends and friend requests.
type FriendshipHandler struct {
	sessionHandler
}

// NewFriendshipHandler creates a new FriendshipHandler.
func NewFriendshipHandler(sessions SessionProvider) *FriendshipHandler {
	return &FriendshipHandler{sessionHandler{sessions}}
}

// SendFriendRequestPayload defines the expected JSON body for sending a friend request.
type SendFriendRequestPayload struct {
	Email string `json:"email" validate:"required,email"`
}

// ListFriendsHandler handles GET /api/v1/friends
func (h *FriendshipHandler) ListFriendsHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	friends, err := s.Social.FetchFriends(r.Context())
	if err != nil {
		writeServiceError(w, err, "list friends")
		return
	}
	if friends == nil {
		friends = []services.Friend{}
	}
	writeJSONResponse(w, http.StatusOK, friends)
}

// SendFriendRequestHandler handles POST /api/v1/friend-requests
func (h *FriendshipHandler) SendFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	var payload SendFriendRequestPayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	f, err := s.Social.SendFriendRequest(r.Context(), payload.Email)
	if err != nil {
		writeServiceError(w, err, "send friend request")
		return
	}
	writeJSONResponse(w, http.StatusCreated, f)
}

// ListPendingRequestsHandler handles GET /api/v1/friend-requests/pending
func (h *FriendshipHandler) ListPendingRequestsHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	pending, err := s.Social.FetchPendingRequests(r.Context())
	if err != nil {
		writeServiceError(w, err, "list pending requests")
		return
	}
	if pending == nil {
		pending = []services.FriendRequest{}
	}
	writeJSONResponse(w, http.StatusOK, pending)
}

// AcceptFriendRequestHandler handles POST /api/v1/friend-requests/{requestID}/accept
func (h *FriendshipHandler) AcceptFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Social.AcceptFriendRequest(r.Context(), mux.Vars(r)["requestID"]); err != nil {
		writeServiceError(w, err, "accept friend request")
		return
	}
	writeJSONResponse(w, http.StatusOK, s.Social.Friends())
}

// RejectFriendRequestHandler handles POST /api/v1/friend-requests/{requestID}/reject
func (h *FriendshipHandler) RejectFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Social.RejectFriendRequest(r.Context(), mux.Vars(r)["requestID"]); err != nil {
		writeServiceError(w, err, "reject friend request")
		return
	}
	writeJSONResponse(w, http.StatusOK, MessageResponse{Message: "friend request rejected"})
}
