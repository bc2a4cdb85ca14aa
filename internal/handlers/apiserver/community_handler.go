package apiserver

import (
	"errors"
	"net/http"

	"devotion-go/internal/services"
)

// CommunityHandler drives the community gate.
type CommunityHandler struct {
	sessionHandler
}

func NewCommunityHandler(sessions SessionProvider) *CommunityHandler {
	return &CommunityHandler{sessionHandler{sessions}}
}

// AcceptInvitePayload is the body of POST /community/accept.
type AcceptInvitePayload struct {
	Token string `json:"token" validate:"required"`
}

// AccessResponse reports the gate state.
type AccessResponse struct {
	State services.AccessState `json:"state"`
}

// AccessHandler handles GET /api/v1/community/access
func (h *CommunityHandler) AccessHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	state, err := s.Community.CheckAccess(r.Context())
	if err != nil {
		writeServiceError(w, err, "check community access")
		return
	}
	writeJSONResponse(w, http.StatusOK, AccessResponse{State: state})
}

// RequestHandler handles POST /api/v1/community/request
// A failed email still leaves the invite in place, so that case is 502 with
// the resulting state rather than a plain error.
func (h *CommunityHandler) RequestHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if s.Community.State() == services.AccessUnknown {
		if _, err := s.Community.CheckAccess(r.Context()); err != nil {
			writeServiceError(w, err, "check community access")
			return
		}
	}
	_, err := s.Community.RequestAccess(r.Context())
	if errors.Is(err, services.ErrDeliveryFailed) {
		writeJSONResponse(w, http.StatusBadGateway, struct {
			ErrorResponse
			AccessResponse
		}{ErrorResponse{Error: err.Error()}, AccessResponse{State: s.Community.State()}})
		return
	}
	if err != nil {
		writeServiceError(w, err, "request community access")
		return
	}
	writeJSONResponse(w, http.StatusAccepted, AccessResponse{State: s.Community.State()})
}

// AcceptHandler handles POST /api/v1/community/accept
func (h *CommunityHandler) AcceptHandler(w http.ResponseWriter, r *http.Request) {
	var payload AcceptInvitePayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Community.AcceptInvite(r.Context(), payload.Token); err != nil {
		writeServiceError(w, err, "accept community invite")
		return
	}
	writeJSONResponse(w, http.StatusOK, AccessResponse{State: s.Community.State()})
}
