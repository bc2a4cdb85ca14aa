package apiserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"devotion-go/internal/services"
)

// NotificationHandler serves the caller's notification feed.
type NotificationHandler struct {
	sessionHandler
}

func NewNotificationHandler(sessions SessionProvider) *NotificationHandler {
	return &NotificationHandler{sessionHandler{sessions}}
}

// NotificationListResponse is the feed plus its unread counter.
type NotificationListResponse struct {
	Notifications []services.NotificationView `json:"notifications"`
	Unread        int                         `json:"unread"`
}

// ListNotificationsHandler handles GET /api/v1/notifications
func (h *NotificationHandler) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	items, err := s.Notifications.FetchNotifications(r.Context())
	if err != nil {
		writeServiceError(w, err, "list notifications")
		return
	}
	if items == nil {
		items = []services.NotificationView{}
	}
	writeJSONResponse(w, http.StatusOK, NotificationListResponse{Notifications: items, Unread: s.Notifications.UnreadCount()})
}

// MarkReadHandler handles POST /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Notifications.MarkAsRead(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err, "mark notification read")
		return
	}
	writeJSONResponse(w, http.StatusOK, MessageResponse{Message: "ok"})
}

// MarkAllReadHandler handles POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllReadHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Notifications.MarkAllAsRead(r.Context()); err != nil {
		writeServiceError(w, err, "mark all notifications read")
		return
	}
	writeJSONResponse(w, http.StatusOK, MessageResponse{Message: "ok"})
}
