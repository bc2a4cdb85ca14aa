package apiserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"devotion-go/internal/services"
)

// PrayerHandler serves the prayer wall.
type PrayerHandler struct {
	sessionHandler
}

func NewPrayerHandler(sessions SessionProvider) *PrayerHandler {
	return &PrayerHandler{sessionHandler{sessions}}
}

// SharePrayerPayload is the body of POST /prayers.
type SharePrayerPayload struct {
	Title    string `json:"title" validate:"required,max=255"`
	Content  string `json:"content" validate:"max=10000"`
	IsShared bool   `json:"is_shared"`
}

// ListSharedHandler handles GET /api/v1/prayers
func (h *PrayerHandler) ListSharedHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	prayers, err := s.Prayers.FetchShared(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeServiceError(w, err, "list prayers")
		return
	}
	if prayers == nil {
		prayers = []services.SharedPrayer{}
	}
	writeJSONResponse(w, http.StatusOK, prayers)
}

// ShareHandler handles POST /api/v1/prayers
func (h *PrayerHandler) ShareHandler(w http.ResponseWriter, r *http.Request) {
	var payload SharePrayerPayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	p, err := s.Prayers.ShareRequest(r.Context(), payload.Title, payload.Content, payload.IsShared)
	if err != nil {
		writeServiceError(w, err, "share prayer")
		return
	}
	writeJSONResponse(w, http.StatusCreated, p)
}

// SupportHandler handles POST /api/v1/prayers/{id}/support
func (h *PrayerHandler) SupportHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Prayers.OfferSupport(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err, "offer prayer support")
		return
	}
	writeJSONResponse(w, http.StatusCreated, MessageResponse{Message: "praying"})
}
